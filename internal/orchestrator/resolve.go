package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	apperrors "qdbreport/internal/errors"
	"qdbreport/pkg/contracts/domain"
)

// AccountSelection is one account and the cost centers fetched with it.
type AccountSelection struct {
	Account     string
	CostCenters []string
}

// ValidateDate checks a requested period. Zero year and month select the
// month before now. Supplying only one of them, a month outside 1-12 or a
// period after the current month is an ErrInvalidPeriod.
func (o *Orchestrator) ValidateDate(year, month int) (domain.Period, error) {
	now := o.now()
	switch {
	case year == 0 && month == 0:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return domain.PeriodOf(first.AddDate(0, -1, 0)), nil
	case year == 0 || month == 0:
		return domain.Period{}, apperrors.NewInvalidPeriod("you must supply both year and month or neither")
	case month < 1 || month > 12:
		return domain.Period{}, apperrors.NewInvalidPeriod("month must be a number from 1 to 12, got %d", month)
	case year < 1:
		return domain.Period{}, apperrors.NewInvalidPeriod("year must be positive, got %d", year)
	}

	period := domain.NewPeriod(year, month)
	if period.After(domain.PeriodOf(now)) {
		return domain.Period{}, apperrors.NewInvalidPeriod("cannot request a future report: %s", period)
	}
	return period, nil
}

// ResolveUnits maps unit ids to units. No ids, or an id naming the all-units
// sentinel, selects every unit ordered by name. Unknown ids are an
// ErrUnknownUnit listing all of them, even alongside the sentinel.
func (o *Orchestrator) ResolveUnits(ctx context.Context, unitIDs ...int) ([]domain.Unit, error) {
	units, err := o.dir.Units(ctx)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	if len(unitIDs) == 0 {
		return o.allUnits(units), nil
	}

	byID := make(map[int]domain.Unit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}

	var (
		selected []domain.Unit
		missing  []int
		all      bool
		seen     = make(map[int]bool, len(unitIDs))
	)
	for _, id := range unitIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		u, ok := byID[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case u.Name == o.cfg.Reports.AllUnitsName:
			all = true
		default:
			selected = append(selected, u)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewUnknownUnit(missing)
	}
	if all {
		return o.allUnits(units), nil
	}
	return selected, nil
}

// allUnits returns every real unit, ordered by name then id. The sentinel
// itself has no accounts and is left out.
func (o *Orchestrator) allUnits(units []domain.Unit) []domain.Unit {
	out := make([]domain.Unit, 0, len(units))
	for _, u := range units {
		if u.Name != o.cfg.Reports.AllUnitsName {
			out = append(out, u)
		}
	}
	return sortedByName(out)
}

func sortedByName(units []domain.Unit) []domain.Unit {
	out := append([]domain.Unit{}, units...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AccountsForUnit groups a unit's account bindings into fetchable selections.
// Library Materials cost centers get their own selection, other cost centers
// of an account are fetched together and blank ones are dropped. Selections
// are ordered by account, with the Library Materials one last.
func (o *Orchestrator) AccountsForUnit(ctx context.Context, unitID int) ([]AccountSelection, error) {
	bindings, err := o.dir.AccountBindings(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("account bindings for unit %d: %w", unitID, err)
	}

	lm := o.cfg.Reports.LibraryMaterialsCode
	regular := make(map[string][]string)
	withLM := make(map[string]bool)
	var accounts []string
	for _, b := range bindings {
		cc := strings.TrimSpace(b.CostCenter)
		if cc == "" {
			continue
		}
		if _, ok := regular[b.Account]; !ok && !withLM[b.Account] {
			accounts = append(accounts, b.Account)
		}
		if cc == lm {
			withLM[b.Account] = true
			continue
		}
		if !slices.Contains(regular[b.Account], cc) {
			regular[b.Account] = append(regular[b.Account], cc)
		}
	}
	sort.Strings(accounts)

	var out []AccountSelection
	for _, acct := range accounts {
		if ccs := regular[acct]; len(ccs) > 0 {
			sort.Strings(ccs)
			out = append(out, AccountSelection{Account: acct, CostCenters: ccs})
		}
		if withLM[acct] {
			out = append(out, AccountSelection{Account: acct, CostCenters: []string{lm}})
		}
	}
	return out, nil
}

// ResolveRecipients returns the default recipients for the environment plus
// the unit's bound staff, sorted and without duplicates. The top-level unit
// adds its head only. The excluded staff member is never added.
func (o *Orchestrator) ResolveRecipients(ctx context.Context, unitID int, unitName string) ([]string, error) {
	bindings, err := o.dir.RecipientBindings(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("recipient bindings for unit %d: %w", unitID, err)
	}

	headOnly := unitName == o.cfg.Reports.TopLevelUnitName
	recipients := append([]string{}, o.cfg.DefaultRecipients()...)
	for _, b := range bindings {
		if b.Email == "" || !b.Role.Valid() {
			continue
		}
		if o.cfg.Reports.ExcludedStaffName != "" && b.StaffName == o.cfg.Reports.ExcludedStaffName {
			continue
		}
		if headOnly && b.Role != domain.RoleHead {
			continue
		}
		recipients = append(recipients, b.Email)
	}
	return normalizeRecipients(recipients), nil
}

// normalizeRecipients trims, sorts and de-duplicates addresses.
func normalizeRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
