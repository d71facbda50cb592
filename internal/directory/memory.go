package directory

import (
	"context"
	"sort"
	"sync"

	"qdbreport/pkg/contracts/domain"
)

// Memory is an in-process Store, used by tests and dry runs from a seed file.
type Memory struct {
	mu         sync.RWMutex
	units      []domain.Unit
	accounts   map[int][]domain.AccountBinding
	recipients map[int][]domain.RecipientBinding
}

// NewMemory returns a store holding seed. A nil seed gives an empty store.
func NewMemory(seed *Seed) *Memory {
	m := &Memory{}
	if seed == nil {
		seed = &Seed{}
	}
	m.replace(seed)
	return m
}

// Load replaces the store contents with seed after validating it.
func (m *Memory) Load(_ context.Context, seed *Seed) error {
	if err := seed.Validate(); err != nil {
		return err
	}
	m.replace(seed)
	return nil
}

func (m *Memory) replace(seed *Seed) {
	units := append([]domain.Unit{}, seed.Units...)
	sort.SliceStable(units, func(i, j int) bool { return units[i].Name < units[j].Name })

	accounts := make(map[int][]domain.AccountBinding)
	for _, a := range seed.Accounts {
		accounts[a.UnitID] = append(accounts[a.UnitID], domain.AccountBinding{
			UnitID: a.UnitID, Account: a.Account, CostCenter: a.CostCenter, Title: a.Title,
		})
	}

	staff := seed.staffByID()
	recipients := make(map[int][]domain.RecipientBinding)
	for _, r := range seed.Recipients {
		st := staff[r.StaffID]
		recipients[r.UnitID] = append(recipients[r.UnitID], domain.RecipientBinding{
			UnitID: r.UnitID, Role: r.Role, StaffName: st.Name, Email: st.Email,
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.units, m.accounts, m.recipients = units, accounts, recipients
}

// Units returns every unit ordered by name.
func (m *Memory) Units(context.Context) ([]domain.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Unit{}, m.units...), nil
}

// AccountBindings returns the unit's account bindings in seed order.
func (m *Memory) AccountBindings(_ context.Context, unitID int) ([]domain.AccountBinding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.AccountBinding{}, m.accounts[unitID]...), nil
}

// RecipientBindings returns the unit's recipient bindings in seed order.
func (m *Memory) RecipientBindings(_ context.Context, unitID int) ([]domain.RecipientBinding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.RecipientBinding{}, m.recipients[unitID]...), nil
}
