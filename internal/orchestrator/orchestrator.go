// Package orchestrator coordinates a report run: it validates the period,
// resolves units, accounts and recipients, and drives fetch, parse, render and
// delivery for one unit at a time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"qdbreport/internal/config"
	"qdbreport/internal/formatter"
	"qdbreport/internal/infrastructure"
	"qdbreport/internal/rules"
	"qdbreport/internal/validation"
	"qdbreport/pkg/contracts/domain"
)

// Fetcher returns the ledger rows of one account, grouped by FAU then sub code.
type Fetcher interface {
	FetchLedger(ctx context.Context, period domain.Period, account string, costCenters []string) ([]domain.LedgerRow, error)
}

// Sender delivers a rendered report.
type Sender interface {
	SendReport(ctx context.Context, summary domain.ReportSummary, filePath string, recipients []string) error
}

// Directory answers questions about units and their bindings.
type Directory interface {
	Units(ctx context.Context) ([]domain.Unit, error)
	AccountBindings(ctx context.Context, unitID int) ([]domain.AccountBinding, error)
	RecipientBindings(ctx context.Context, unitID int) ([]domain.RecipientBinding, error)
}

// Renderer writes a report tree to a workbook file.
type Renderer interface {
	WriteFile(tree *domain.ReportTree, now time.Time, path string) error
	SheetNames(tree *domain.ReportTree) []string
}

// Options configures an Orchestrator. Config, Directory and Fetcher are
// required. Sender is only needed for runs that send email.
type Options struct {
	Config    *config.Config
	Directory Directory
	Fetcher   Fetcher
	Sender    Sender
	Formatter Renderer
	Clock     func() time.Time
	Logger    *slog.Logger
}

// Orchestrator runs report batches. Runs on the same Orchestrator are
// serialized because they share the reports directory.
type Orchestrator struct {
	cfg       *config.Config
	dir       Directory
	fetcher   Fetcher
	sender    Sender
	formatter Renderer
	validator *validation.FileValidator
	registry  *domain.SubcodeRegistry
	policy    *rules.FundComboPolicy
	now       func() time.Time
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *infrastructure.RunMetrics

	mu sync.Mutex
}

// New validates opts and returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, errors.New("orchestrator: config is required")
	}
	if opts.Directory == nil {
		return nil, errors.New("orchestrator: directory is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("orchestrator: fetcher is required")
	}

	registry := opts.Config.SubcodeRegistry()
	if opts.Formatter == nil {
		opts.Formatter = formatter.New(registry, opts.Config.Reports.LibraryMaterialsCode)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	metrics, err := infrastructure.NewRunMetrics(otel.Meter(infrastructure.InstrumentationName))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	return &Orchestrator{
		cfg:       opts.Config,
		dir:       opts.Directory,
		fetcher:   opts.Fetcher,
		sender:    opts.Sender,
		formatter: opts.Formatter,
		validator: validation.NewFileValidator(opts.Logger),
		registry:  registry,
		policy:    rules.PolicyFromConfig(opts.Config.Exclusion),
		now:       opts.Clock,
		logger:    opts.Logger.With(slog.String("component", "orchestrator")),
		tracer:    otel.Tracer(infrastructure.InstrumentationName),
		metrics:   metrics,
	}, nil
}
