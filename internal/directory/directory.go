// Package directory stores the organizational data a report run needs: units,
// staff, recipient roles and account bindings.
package directory

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"qdbreport/pkg/contracts/domain"
)

// Store is the read side used by the orchestrator.
type Store interface {
	Units(ctx context.Context) ([]domain.Unit, error)
	AccountBindings(ctx context.Context, unitID int) ([]domain.AccountBinding, error)
	RecipientBindings(ctx context.Context, unitID int) ([]domain.RecipientBinding, error)
}

// Loader replaces the whole directory with a seed.
type Loader interface {
	Load(ctx context.Context, seed *Seed) error
}

// Seed is a complete directory snapshot, as kept in the YAML seed file.
type Seed struct {
	Units      []domain.Unit   `yaml:"units" validate:"dive"`
	Staff      []domain.Staff  `yaml:"staff" validate:"dive"`
	Recipients []SeedRecipient `yaml:"recipients" validate:"dive"`
	Accounts   []SeedAccount   `yaml:"accounts" validate:"dive"`
}

// SeedRecipient binds a staff member to a unit.
type SeedRecipient struct {
	UnitID  int         `yaml:"unit_id" validate:"required"`
	StaffID int         `yaml:"staff_id" validate:"required"`
	Role    domain.Role `yaml:"role" validate:"required,oneof=aul head assoc"`
}

// SeedAccount assigns an account/cost center to a unit. Cost center may be
// blank; such rows are kept but never fetched.
type SeedAccount struct {
	UnitID     int    `yaml:"unit_id" validate:"required"`
	Account    string `yaml:"account" validate:"required,max=6"`
	CostCenter string `yaml:"cost_center" validate:"max=2"`
	Title      string `yaml:"title"`
}

var validate = validator.New()

// Validate checks field rules and that every binding references a known unit
// and staff member.
func (s *Seed) Validate() error {
	if err := validate.Struct(s); err != nil {
		return err
	}

	units := make(map[int]bool, len(s.Units))
	for _, u := range s.Units {
		if u.ID <= 0 || u.Name == "" {
			return fmt.Errorf("unit %d: id and name are required", u.ID)
		}
		if units[u.ID] {
			return fmt.Errorf("duplicate unit id %d", u.ID)
		}
		units[u.ID] = true
	}
	staff := make(map[int]bool, len(s.Staff))
	for _, st := range s.Staff {
		if st.ID <= 0 || st.Name == "" {
			return fmt.Errorf("staff %d: id and name are required", st.ID)
		}
		if staff[st.ID] {
			return fmt.Errorf("duplicate staff id %d", st.ID)
		}
		if st.Email != "" {
			if err := validate.Var(st.Email, "email"); err != nil {
				return fmt.Errorf("staff %d email %q: %w", st.ID, st.Email, err)
			}
		}
		staff[st.ID] = true
	}

	var errs []error
	for _, r := range s.Recipients {
		if !units[r.UnitID] {
			errs = append(errs, fmt.Errorf("recipient references unknown unit %d", r.UnitID))
		}
		if !staff[r.StaffID] {
			errs = append(errs, fmt.Errorf("recipient references unknown staff %d", r.StaffID))
		}
	}
	for _, a := range s.Accounts {
		if !units[a.UnitID] {
			errs = append(errs, fmt.Errorf("account %s references unknown unit %d", a.Account, a.UnitID))
		}
	}
	return errors.Join(errs...)
}

// ParseSeed decodes and validates a YAML seed.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.UnmarshalStrict(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	return &seed, nil
}

// LoadSeedFile reads and validates the seed file at path.
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// staffByID indexes seed staff for binding resolution.
func (s *Seed) staffByID() map[int]domain.Staff {
	out := make(map[int]domain.Staff, len(s.Staff))
	for _, st := range s.Staff {
		out[st.ID] = st
	}
	return out
}
