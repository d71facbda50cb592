// Package fetcher reads aggregated general-ledger rows from the financial
// warehouse.
package fetcher

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	// Registers the "sqlserver" driver.
	_ "github.com/microsoft/go-mssqldb"

	"qdbreport/internal/config"
	"qdbreport/pkg/contracts/domain"
)

// ErrRowContract is returned when the warehouse yields a duplicate
// (FAU, sub code) pair.
var ErrRowContract = errors.New("ledger rows violate uniqueness contract")

// Warehouse implements the report fetcher against the ledger tables.
type Warehouse struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
	logger  *slog.Logger
}

// Open connects to the warehouse described by cfg.
func Open(ctx context.Context, cfg config.WarehouseConfig, logger *slog.Logger) (*Warehouse, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("warehouse DSN is not configured")
	}

	db, err := sql.Open(dialect.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to warehouse: %w", err)
	}

	return New(db, dialect, cfg.QueryTimeout, logger), nil
}

// New wraps an open database handle. A zero timeout leaves queries bounded
// only by the caller's context.
func New(db *sql.DB, dialect Dialect, timeout time.Duration, logger *slog.Logger) *Warehouse {
	if logger == nil {
		logger = slog.Default()
	}
	return &Warehouse{
		db:      db,
		dialect: dialect,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "warehouse"), slog.String("dialect", dialect.Name)),
	}
}

// FetchLedger returns the ledger rows for one account and its cost centers,
// grouped by FAU and ordered by FAU then sub code.
func (w *Warehouse) FetchLedger(ctx context.Context, period domain.Period, account string, costCenters []string) ([]domain.LedgerRow, error) {
	if len(costCenters) == 0 {
		return nil, nil
	}
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	query := w.dialect.BuildQuery(period.IsFiscalYearEnd(), len(costCenters))
	args := make([]any, 0, len(costCenters)+2)
	args = append(args, period.YYYYMM(), account)
	for _, cc := range costCenters {
		args = append(args, cc)
	}

	start := time.Now()
	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerRow
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read ledger rows: %w", err)
	}

	w.logger.DebugContext(ctx, "Ledger query complete",
		slog.String("account", account),
		slog.Any("cost_centers", costCenters),
		slog.String("period", period.String()),
		slog.Int("rows", len(out)),
		slog.Duration("elapsed", time.Since(start)))

	if err := w.checkRows(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the database handle.
func (w *Warehouse) Close() error {
	return w.db.Close()
}

func scanRow(rows *sql.Rows) (domain.LedgerRow, error) {
	var (
		r                   domain.LedgerRow
		fau                 string
		accTitle, fundTitle sql.NullString
	)
	err := rows.Scan(
		&fau,
		&r.SubCode,
		&r.AccountNumber,
		&r.CostCenterCode,
		&r.FundNumber,
		&accTitle,
		&fundTitle,
		&r.YTDApprop,
		&r.YTDExpense,
		&r.Encumbrance,
		&r.MemoLien,
		&r.OperatingBalance,
	)
	if err != nil {
		return r, fmt.Errorf("scan ledger row: %w", err)
	}
	r.AccountTitle = accTitle.String
	r.FundTitle = fundTitle.String
	return r, nil
}

// checkRows rejects duplicate (FAU, sub code) pairs and warns when a FAU's
// rows are not contiguous. Collation decides the exact order, so only
// grouping is checked.
func (w *Warehouse) checkRows(ctx context.Context, rows []domain.LedgerRow) error {
	type key struct{ fau, sub string }
	seen := make(map[key]bool, len(rows))
	closed := make(map[string]bool)
	prev := ""

	for _, r := range rows {
		fau := r.FAU()
		k := key{fau, r.SubCode}
		if seen[k] {
			return fmt.Errorf("%w: fau %s sub code %s", ErrRowContract, fau, r.SubCode)
		}
		seen[k] = true

		if fau != prev {
			if closed[fau] {
				w.logger.WarnContext(ctx, "Ledger rows not grouped by FAU", slog.String("fau", fau))
			}
			if prev != "" {
				closed[prev] = true
			}
			prev = fau
		}
	}
	return nil
}
