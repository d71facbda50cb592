// Package rules holds the predicates that decide whether a ledger row
// contributes to a unit report.
package rules

import (
	"qdbreport/internal/config"
	apperrors "qdbreport/internal/errors"
	"qdbreport/pkg/contracts/domain"
)

// IsZeroRow reports whether every financial field of row is zero. Zero rows
// are closed or unused lines and never appear in a report.
func IsZeroRow(row domain.LedgerRow) bool {
	for _, v := range row.Amounts() {
		if !v.IsZero() {
			return false
		}
	}
	return true
}

// FundPredicate decides, for a row inside the shared fund slot, whether the
// row is excluded.
type FundPredicate func(fundNumber string) bool

// FundSlot is an account/cost-center pair whose funds are split between units.
type FundSlot struct {
	Account    string
	CostCenter string
}

// Contains reports whether row belongs to the slot.
func (s FundSlot) Contains(row domain.LedgerRow) bool {
	return row.AccountNumber == s.Account && row.CostCenterCode == s.CostCenter
}

// FundComboPolicy is the table of units whose share of a fund slot is
// restricted, keyed by unit id.
type FundComboPolicy struct {
	slot       FundSlot
	predicates map[int]FundPredicate
}

// NewFundComboPolicy builds an empty policy for slot.
func NewFundComboPolicy(slot FundSlot) *FundComboPolicy {
	return &FundComboPolicy{slot: slot, predicates: make(map[int]FundPredicate)}
}

// NewSplitFundPolicy builds the usual two-unit split: the primary unit never
// sees fund, the companion unit sees only fund.
func NewSplitFundPolicy(slot FundSlot, primaryUnitID, companionUnitID int, fund string) *FundComboPolicy {
	p := NewFundComboPolicy(slot)
	p.Register(primaryUnitID, func(f string) bool { return f == fund })
	p.Register(companionUnitID, func(f string) bool { return f != fund })
	return p
}

// PolicyFromConfig builds the split policy described by cfg.
func PolicyFromConfig(cfg config.ExclusionConfig) *FundComboPolicy {
	return NewSplitFundPolicy(
		FundSlot{Account: cfg.Account, CostCenter: cfg.CostCenter},
		cfg.PrimaryUnitID, cfg.CompanionUnitID, cfg.Fund,
	)
}

// Register installs the predicate for a unit. A zero unit id is ignored.
func (p *FundComboPolicy) Register(unitID int, pred FundPredicate) {
	if unitID == 0 || pred == nil {
		return
	}
	p.predicates[unitID] = pred
}

// Applies reports whether the policy has a rule for unitID.
func (p *FundComboPolicy) Applies(unitID int) bool {
	if p == nil {
		return false
	}
	_, ok := p.predicates[unitID]
	return ok
}

// IsExcluded applies the unit's rule to row. Rows outside the slot are never
// excluded. Asking about a unit without a rule is a caller bug and returns
// ErrExclusionRuleMisuse.
func (p *FundComboPolicy) IsExcluded(unitID int, row domain.LedgerRow) (bool, error) {
	if p == nil {
		return false, apperrors.NewExclusionRuleMisuse(unitID)
	}
	pred, ok := p.predicates[unitID]
	if !ok {
		return false, apperrors.NewExclusionRuleMisuse(unitID)
	}
	if !p.slot.Contains(row) {
		return false, nil
	}
	return pred(row.FundNumber), nil
}
