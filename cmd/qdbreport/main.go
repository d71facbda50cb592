package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"qdbreport/internal/config"
	"qdbreport/internal/directory"
	apperrors "qdbreport/internal/errors"
	"qdbreport/internal/fetcher"
	"qdbreport/internal/infrastructure"
	"qdbreport/internal/orchestrator"
	"qdbreport/internal/sender"
	"qdbreport/pkg/contracts"
	"qdbreport/pkg/contracts/domain"
)

// options holds the parsed command line.
type options struct {
	year           int
	month          int
	units          []int
	email          bool
	listUnits      bool
	listRecipients bool
	recipients     []string
	cleanup        bool
	seedFile       string
	configFile     string
	version        bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("qdbreport", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		opts       options
		units      string
		recipients string
	)
	fs.IntVar(&opts.year, "year", 0, "report year (defaults with -month to the previous month)")
	fs.IntVar(&opts.month, "month", 0, "report month, 1-12")
	fs.StringVar(&units, "units", "", "comma-separated unit ids (all units when omitted)")
	fs.BoolVar(&opts.email, "email", false, "email each report and remove the local file")
	fs.BoolVar(&opts.listUnits, "list-units", false, "print the unit table and exit")
	fs.BoolVar(&opts.listRecipients, "list-recipients", false, "print each unit's recipients without generating reports")
	fs.StringVar(&recipients, "recipients", "", "comma-separated addresses replacing the resolved recipients")
	fs.BoolVar(&opts.cleanup, "cleanup", false, "remove generated reports and exit")
	fs.StringVar(&opts.seedFile, "seed", "", "load the unit directory from this YAML seed before running")
	fs.StringVar(&opts.configFile, "config", "", "config file (defaults to qdbreport.yaml or configs/qdbreport.yaml)")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if opts.units, err = parseUnitIDs(units); err != nil {
		return nil, err
	}
	opts.recipients = parseRecipients(recipients)
	return &opts, nil
}

// parseUnitIDs parses "1, 3,21" into unit ids.
func parseUnitIDs(s string) ([]int, error) {
	var ids []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.Atoi(field)
		if err != nil || id < 1 {
			return nil, fmt.Errorf("invalid unit id %q", field)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseRecipients returns nil for an empty list so resolution is not
// overridden.
func parseRecipients(s string) []string {
	var out []string
	for _, field := range strings.Split(s, ",") {
		if field = strings.TrimSpace(field); field != "" {
			out = append(out, field)
		}
	}
	return out
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return 0
	}

	_ = godotenv.Load()

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	runLog, err := infrastructure.OpenRunLog(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer runLog.Close()
	logger := runLog.Logger
	slog.SetDefault(logger)

	telemetry, err := infrastructure.InitializeTelemetry(cfg.Telemetry, cfg.Environment, stderr, logger)
	if err != nil {
		logger.Error("Failed to initialize telemetry", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := telemetry.WriteMetrics(); err != nil {
			logger.Warn("Failed to write metrics", slog.String("error", err.Error()))
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	dir, err := openDirectory(ctx, cfg, opts.seedFile, logger)
	if err != nil {
		logger.Error("Failed to open unit directory", slog.String("error", err.Error()))
		return 1
	}
	defer dir.Close()

	var fetch orchestrator.Fetcher = offlineFetcher{}
	if !opts.listUnits && !opts.cleanup && !opts.listRecipients {
		warehouse, err := fetcher.Open(ctx, cfg.Warehouse, logger)
		if err != nil {
			logger.Error("Failed to connect to warehouse", slog.String("error", err.Error()))
			fmt.Fprintln(stdout, apperrors.UserMessage(apperrors.ClassifyDelivery(err)))
			return 1
		}
		defer warehouse.Close()
		fetch = warehouse
	}

	var send orchestrator.Sender
	if opts.email {
		smtp, err := sender.New(cfg.Mail, cfg.Environment, logger)
		if err != nil {
			logger.Error("Failed to configure mail", slog.String("error", err.Error()))
			return 1
		}
		send = smtp
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Config:    cfg,
		Directory: dir,
		Fetcher:   fetch,
		Sender:    send,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("Failed to create orchestrator", slog.String("error", err.Error()))
		return 1
	}

	switch {
	case opts.cleanup:
		if err := orch.CleanupReportsDir(); err != nil {
			logger.Error("Cleanup failed", slog.String("error", err.Error()))
			return 1
		}
		fmt.Fprintf(stdout, "Removed reports from %s\n", cfg.Reports.Dir)
		return 0
	case opts.listUnits:
		table, err := orch.ListUnits(ctx)
		if err != nil {
			logger.Error("Failed to list units", slog.String("error", err.Error()))
			return 1
		}
		fmt.Fprintln(stdout, table)
		return 0
	}

	period, err := orch.ValidateDate(opts.year, opts.month)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	units, err := orch.ResolveUnits(ctx, opts.units...)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	report, err := orch.Run(ctx, orchestrator.RunRequest{
		Period:             period,
		Units:              units,
		SendEmail:          opts.email,
		OverrideRecipients: opts.recipients,
		ListRecipientsOnly: opts.listRecipients,
	})
	printReport(stdout, report)
	if err != nil {
		return 1
	}
	return 0
}

// openDirectory opens the directory database and loads seedFile, falling
// back to the configured seed, when one is given.
func openDirectory(ctx context.Context, cfg *config.Config, seedFile string, logger *slog.Logger) (*directory.SQLite, error) {
	dir, err := directory.OpenSQLite(cfg.Directory.Path, logger)
	if err != nil {
		return nil, err
	}

	if seedFile == "" {
		seedFile = cfg.Directory.SeedFile
	}
	if seedFile == "" {
		return dir, nil
	}

	seed, err := directory.LoadSeedFile(seedFile)
	if err == nil {
		err = dir.Load(ctx, seed)
	}
	if err != nil {
		dir.Close()
		return nil, fmt.Errorf("load seed %s: %w", seedFile, err)
	}
	logger.Info("Unit directory seeded",
		slog.String("seed", seedFile),
		slog.Int("units", len(seed.Units)),
		slog.Int("accounts", len(seed.Accounts)))
	return dir, nil
}

// offlineFetcher stands in for the warehouse in modes that never query it.
type offlineFetcher struct{}

func (offlineFetcher) FetchLedger(context.Context, domain.Period, string, []string) ([]domain.LedgerRow, error) {
	return nil, errors.New("warehouse is not connected in this mode")
}

// printReport writes one line per unit outcome, followed by the user-facing
// explanation of any failure.
func printReport(w io.Writer, report *orchestrator.RunReport) {
	if report == nil {
		return
	}

	fmt.Fprintf(w, "Reports for %s (run %s)\n", report.Period, report.RunID)
	for _, o := range report.Outcomes {
		switch o.Status {
		case orchestrator.StatusListed:
			fmt.Fprintf(w, "%s: %s\n", o.Unit.Name, strings.Join(o.Recipients, ", "))
		case orchestrator.StatusCompleted:
			if o.Delivered {
				fmt.Fprintf(w, "%s: sent to %s\n", o.Unit.Name, strings.Join(o.Recipients, ", "))
			} else {
				fmt.Fprintf(w, "%s: %s\n", o.Unit.Name, o.File)
			}
		case orchestrator.StatusSkippedEmpty:
			fmt.Fprintf(w, "%s: no data, no report generated\n", o.Unit.Name)
		case orchestrator.StatusFailed:
			fmt.Fprintf(w, "%s: failed: %v\n", o.Unit.Name, o.Err)
		}
	}

	if failed := report.Failed(); len(failed) > 0 {
		fmt.Fprintln(w, apperrors.UserMessage(apperrors.ClassifyDelivery(failed[0].Err)))
	}
}
