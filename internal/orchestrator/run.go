package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	apperrors "qdbreport/internal/errors"
	"qdbreport/internal/infrastructure"
	"qdbreport/internal/parser"
	"qdbreport/pkg/contracts/domain"
)

// Status is the terminal state of one unit in a run.
type Status string

const (
	StatusCompleted    Status = "completed"
	StatusSkippedEmpty Status = "skipped_empty"
	StatusListed       Status = "listed"
	StatusFailed       Status = "failed"
)

// RunRequest describes one batch.
type RunRequest struct {
	Period domain.Period
	Units  []domain.Unit
	// SendEmail delivers each report and removes the local file once sent.
	SendEmail bool
	// OverrideRecipients, when non-nil, replaces recipient resolution.
	OverrideRecipients []string
	// ListRecipientsOnly resolves recipients and stops there.
	ListRecipientsOnly bool
}

// Outcome is what happened to one unit.
type Outcome struct {
	Unit       domain.Unit
	Status     Status
	File       string
	Delivered  bool
	Recipients []string
	Accounts   []string
	Err        error
}

// RunReport collects the outcomes of a batch in unit order.
type RunReport struct {
	RunID    string
	Period   domain.Period
	Outcomes []Outcome
}

// Count returns the number of outcomes with status s.
func (r *RunReport) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Failed returns the failed outcomes.
func (r *RunReport) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// Run processes req.Units one at a time. A unit that fails to fetch, render or
// deliver is recorded as failed and the batch moves on; the returned error
// joins every unit failure. Empty units are skipped without error.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx = infrastructure.EnsureRunID(ctx)
	report := &RunReport{RunID: infrastructure.GetRunID(ctx), Period: req.Period}

	ctx, span := o.tracer.Start(ctx, "qdb.run", trace.WithAttributes(
		attribute.String("qdb.period", req.Period.String()),
		attribute.Int("qdb.units", len(req.Units)),
		attribute.Bool("qdb.send_email", req.SendEmail),
	))
	defer span.End()

	o.logger.InfoContext(ctx, "Report run started",
		slog.String("period", req.Period.String()),
		slog.Int("units", len(req.Units)),
		slog.Bool("send_email", req.SendEmail),
		slog.Bool("list_recipients_only", req.ListRecipientsOnly))

	var errs []error
	for _, unit := range req.Units {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		outcome := o.runUnit(ctx, req, unit)
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Err != nil {
			errs = append(errs, outcome.Err)
		}
	}

	o.logger.InfoContext(ctx, "Report run finished",
		slog.Int("completed", report.Count(StatusCompleted)),
		slog.Int("skipped", report.Count(StatusSkippedEmpty)),
		slog.Int("listed", report.Count(StatusListed)),
		slog.Int("failed", report.Count(StatusFailed)))

	err := errors.Join(errs...)
	if err != nil {
		infrastructure.RecordError(ctx, err)
	}
	return report, err
}

func (o *Orchestrator) runUnit(ctx context.Context, req RunRequest, unit domain.Unit) Outcome {
	attrs := infrastructure.UnitAttributes(unit.ID, unit.Name)
	ctx, span := o.tracer.Start(ctx, "qdb.unit", trace.WithAttributes(attrs...))
	defer span.End()

	logger := o.logger.With(slog.Int("unit_id", unit.ID), slog.String("unit", unit.Name))
	outcome := Outcome{Unit: unit}
	fail := func(err error) Outcome {
		outcome.Status = StatusFailed
		outcome.Err = err
		infrastructure.RecordError(ctx, err)
		o.metrics.UnitsFailed.Add(ctx, 1, metric.WithAttributes(attrs...))
		logger.ErrorContext(ctx, "Unit report failed", slog.String("error", err.Error()))
		return outcome
	}

	if req.OverrideRecipients != nil {
		outcome.Recipients = normalizeRecipients(req.OverrideRecipients)
	} else {
		recipients, err := o.ResolveRecipients(ctx, unit.ID, unit.Name)
		if err != nil {
			return fail(err)
		}
		outcome.Recipients = recipients
	}
	if req.ListRecipientsOnly {
		outcome.Status = StatusListed
		return outcome
	}

	selections, err := o.AccountsForUnit(ctx, unit.ID)
	if err != nil {
		return fail(err)
	}

	p := parser.New(req.Period, unit.Name, o.registry, o.policy, logger)
	for _, sel := range selections {
		logger.InfoContext(ctx, "Fetching account",
			slog.String("account", sel.Account),
			slog.Any("cost_centers", sel.CostCenters))

		rows, err := o.fetcher.FetchLedger(ctx, req.Period, sel.Account, sel.CostCenters)
		if err != nil {
			return fail(apperrors.NewFetchFailure(unit.Name, sel.Account, err))
		}
		if len(rows) == 0 {
			o.metrics.AccountsSkipped.Add(ctx, 1, metric.WithAttributes(attrs...))
			logger.WarnContext(ctx, "No ledger data for account", slog.String("account", sel.Account), slog.Any("cost_centers", sel.CostCenters))
			continue
		}
		if !p.AddAccount(unit.ID, sel.Account, sel.CostCenters, rows) {
			o.metrics.AccountsSkipped.Add(ctx, 1, metric.WithAttributes(attrs...))
			logger.WarnContext(ctx, "Account is empty, excluded from report", slog.String("account", sel.Account))
		}
	}

	tree := p.Tree()
	outcome.Accounts = tree.Summary().Accounts
	if tree.IsEmpty() {
		outcome.Status = StatusSkippedEmpty
		o.metrics.UnitsSkipped.Add(ctx, 1, metric.WithAttributes(attrs...))
		logger.WarnContext(ctx, "All accounts empty, no report generated")
		return outcome
	}

	path := o.GenerateFilename(unit.Name, req.Period)
	if err := o.validator.ValidateOutputDirectory(o.cfg.Reports.Dir); err != nil {
		return fail(apperrors.NewRenderFailure(unit.Name, path, err))
	}
	if err := o.formatter.WriteFile(tree, o.now(), path); err != nil {
		return fail(apperrors.NewRenderFailure(unit.Name, path, err))
	}
	if err := o.validator.ValidateWorkbook(path, o.formatter.SheetNames(tree)); err != nil {
		return fail(apperrors.NewRenderFailure(unit.Name, path, err))
	}
	outcome.File = path

	if req.SendEmail {
		if err := o.deliver(ctx, tree, path, outcome.Recipients); err != nil {
			return fail(apperrors.NewDeliveryFailure(unit.Name, path, err))
		}
		outcome.Delivered = true
		o.metrics.ReportsDelivered.Add(ctx, 1, metric.WithAttributes(attrs...))
		if err := os.Remove(path); err != nil {
			logger.WarnContext(ctx, "Could not remove sent report", slog.String("file", path), slog.String("error", err.Error()))
		}
		logger.InfoContext(ctx, "Sent report", slog.String("file", path), slog.Any("recipients", outcome.Recipients))
	} else {
		logger.InfoContext(ctx, "Generated report", slog.String("file", path))
	}

	outcome.Status = StatusCompleted
	o.metrics.UnitsCompleted.Add(ctx, 1, metric.WithAttributes(attrs...))
	return outcome
}

func (o *Orchestrator) deliver(ctx context.Context, tree *domain.ReportTree, path string, recipients []string) error {
	if o.sender == nil {
		return fmt.Errorf("no sender configured")
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients")
	}
	return o.sender.SendReport(ctx, tree.Summary(), path, recipients)
}
