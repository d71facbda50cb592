package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"qdbreport/internal/config"
)

// contextKey is a type for context keys
type contextKey string

// RunIDContextKey is the key for storing the report run id in context
const RunIDContextKey contextKey = "run_id"

// RunLog is the JSON logger of one qdbreport invocation together with the
// log file it appends to, if any.
type RunLog struct {
	*slog.Logger
	file *os.File
}

// OpenRunLog builds the logger described by cfg. Console records go to
// console; the CLI passes stderr so report lines on stdout stay parseable.
// Debug level also records source locations.
func OpenRunLog(cfg config.LoggingConfig, console io.Writer) (*RunLog, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	rl := &RunLog{}
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "console":
		output = console
	case "file", "both":
		if rl.file, err = openLogFile(cfg.FilePath); err != nil {
			return nil, err
		}
		output = rl.file
		if strings.EqualFold(cfg.Output, "both") {
			output = io.MultiWriter(console, rl.file)
		}
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		AddSource: level <= slog.LevelDebug,
		Level:     level,
	})
	rl.Logger = slog.New(&runHandler{Handler: handler})
	return rl, nil
}

// Close closes the log file. It is safe to call more than once.
func (rl *RunLog) Close() error {
	if rl.file == nil {
		return nil
	}
	err := rl.file.Close()
	rl.file = nil
	return err
}

// runHandler wraps a slog.Handler to inject run_id from context
type runHandler struct {
	slog.Handler
}

// Handle adds run_id to the record if present in context
func (h *runHandler) Handle(ctx context.Context, r slog.Record) error {
	if runID := GetRunID(ctx); runID != "" {
		r.AddAttrs(slog.String(string(RunIDContextKey), runID))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *runHandler) WithGroup(name string) slog.Handler {
	return &runHandler{Handler: h.Handler.WithGroup(name)}
}

// parseLogLevel accepts the slog level names plus "warning". Empty means info.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// openLogFile opens or creates a log file in append mode
func openLogFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return nil, errors.New("log file path is not configured")
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
	}
	return file, nil
}
