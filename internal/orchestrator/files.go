package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"qdbreport/pkg/contracts/domain"
)

const keepFile = ".gitignore"

// ReportFilename returns the workbook name for a unit and period, e.g.
// DIIT_Software_Development_2021_01.xlsx.
func ReportFilename(unitName string, period domain.Period) string {
	return fmt.Sprintf("%s_%04d_%02d.xlsx", strings.ReplaceAll(unitName, " ", "_"), period.Year, period.Month)
}

// GenerateFilename returns the workbook path inside the reports directory.
func (o *Orchestrator) GenerateFilename(unitName string, period domain.Period) string {
	return filepath.Join(o.cfg.Reports.Dir, ReportFilename(unitName, period))
}

// ListUnits renders every unit as an "ID | Name" table, ordered by name.
func (o *Orchestrator) ListUnits(ctx context.Context) (string, error) {
	units, err := o.dir.Units(ctx)
	if err != nil {
		return "", fmt.Errorf("list units: %w", err)
	}
	units = sortedByName(units)

	width := 0
	for _, u := range units {
		width = max(width, len(u.Name))
	}

	var b strings.Builder
	b.WriteString("\nID | Name\n")
	b.WriteString("---|" + strings.Repeat("-", width))
	for _, u := range units {
		fmt.Fprintf(&b, "\n%2d | %s", u.ID, u.Name)
	}
	return b.String(), nil
}

// CleanupReportsDir removes generated files from the reports directory,
// keeping .gitignore. A missing directory is not an error.
func (o *Orchestrator) CleanupReportsDir() error {
	entries, err := os.ReadDir(o.cfg.Reports.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read reports dir: %w", err)
	}

	var errs []error
	for _, e := range entries {
		if e.Name() == keepFile || e.IsDir() {
			continue
		}
		path := filepath.Join(o.cfg.Reports.Dir, e.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			o.logger.Error("Could not delete from reports directory", slog.String("file", path), slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
