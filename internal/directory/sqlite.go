package directory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"qdbreport/pkg/contracts/domain"
)

// MemoryPath opens a private in-memory database instead of a file.
const MemoryPath = ":memory:"

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// dsnFor maps a path to a modernc DSN. In-memory databases use a uniquely
// named shared cache so the migration connection and the pool see the same
// data.
func dsnFor(path string) string {
	if path == MemoryPath {
		return fmt.Sprintf("file:qdb-%s?mode=memory&cache=shared", uuid.NewString())
	}
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// OpenSQLite opens (creating if needed) the directory database at path and
// applies pending migrations.
func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := dsnFor(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("Directory database opened", slog.String("path", path))
	return &SQLite{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Units returns every unit ordered by name.
func (s *SQLite) Units(ctx context.Context) ([]domain.Unit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM units ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	var units []domain.Unit
	for rows.Next() {
		var u domain.Unit
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// AccountBindings returns the unit's account bindings in insertion order.
func (s *SQLite) AccountBindings(ctx context.Context, unitID int) ([]domain.AccountBinding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unit_id, account, cost_center, title
		FROM accounts
		WHERE unit_id = ?
		ORDER BY id`, unitID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.AccountBinding
	for rows.Next() {
		var a domain.AccountBinding
		if err := rows.Scan(&a.UnitID, &a.Account, &a.CostCenter, &a.Title); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecipientBindings returns the unit's recipients with their staff details.
func (s *SQLite) RecipientBindings(ctx context.Context, unitID int) ([]domain.RecipientBinding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.unit_id, r.role, st.name, st.email
		FROM recipients r
		JOIN staff st ON st.id = r.staff_id
		WHERE r.unit_id = ?
		ORDER BY r.id`, unitID)
	if err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.RecipientBinding
	for rows.Next() {
		var (
			r    domain.RecipientBinding
			role string
		)
		if err := rows.Scan(&r.UnitID, &role, &r.StaffName, &r.Email); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		r.Role = domain.Role(role)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Load replaces all directory data with seed in one transaction.
func (s *SQLite) Load(ctx context.Context, seed *Seed) (err error) {
	if err := seed.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"recipients", "accounts", "staff", "units"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for _, u := range seed.Units {
		if _, err = tx.ExecContext(ctx, `INSERT INTO units (id, name) VALUES (?, ?)`, u.ID, u.Name); err != nil {
			return fmt.Errorf("insert unit %d: %w", u.ID, err)
		}
	}
	for _, st := range seed.Staff {
		if _, err = tx.ExecContext(ctx, `INSERT INTO staff (id, name, email) VALUES (?, ?, ?)`, st.ID, st.Name, st.Email); err != nil {
			return fmt.Errorf("insert staff %d: %w", st.ID, err)
		}
	}
	for _, r := range seed.Recipients {
		if _, err = tx.ExecContext(ctx, `INSERT INTO recipients (unit_id, staff_id, role) VALUES (?, ?, ?)`, r.UnitID, r.StaffID, string(r.Role)); err != nil {
			return fmt.Errorf("insert recipient %d/%d: %w", r.UnitID, r.StaffID, err)
		}
	}
	for _, a := range seed.Accounts {
		if _, err = tx.ExecContext(ctx, `INSERT INTO accounts (account, cost_center, title, unit_id) VALUES (?, ?, ?, ?)`, a.Account, a.CostCenter, a.Title, a.UnitID); err != nil {
			return fmt.Errorf("insert account %s: %w", a.Account, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	s.logger.InfoContext(ctx, "Directory seeded",
		slog.Int("units", len(seed.Units)),
		slog.Int("staff", len(seed.Staff)),
		slog.Int("recipients", len(seed.Recipients)),
		slog.Int("accounts", len(seed.Accounts)))
	return nil
}
