// Package parser aggregates warehouse ledger rows into a unit's report tree.
package parser

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"qdbreport/internal/rules"
	"qdbreport/pkg/contracts/domain"
)

// Policy decides unit-specific fund exclusions.
type Policy interface {
	Applies(unitID int) bool
	IsExcluded(unitID int, row domain.LedgerRow) (bool, error)
}

// Parser builds one ReportTree. It is not safe for concurrent use.
type Parser struct {
	tree     *domain.ReportTree
	registry *domain.SubcodeRegistry
	policy   Policy
	logger   *slog.Logger
}

// New returns a parser for unitName and period. A nil registry uses the
// default subcode table; a nil policy excludes nothing.
func New(period domain.Period, unitName string, registry *domain.SubcodeRegistry, policy Policy, logger *slog.Logger) *Parser {
	if registry == nil {
		registry = domain.NewSubcodeRegistry(domain.DefaultSubcodes())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		tree:     domain.NewReportTree(period, unitName),
		registry: registry,
		policy:   policy,
		logger:   logger.With(slog.String("unit", unitName), slog.String("period", period.String())),
	}
}

// Tree returns the tree built so far.
func (p *Parser) Tree() *domain.ReportTree {
	return p.tree
}

// AddAccount ingests the rows of one account and appends it to the tree.
// Totals are computed once all rows are in. It returns false and leaves the
// tree untouched when every row was zero or excluded.
func (p *Parser) AddAccount(unitID int, account string, costCenters []string, rows []domain.LedgerRow) bool {
	if len(rows) == 0 {
		return false
	}

	report := domain.NewAccountReport(account, strings.TrimSpace(rows[0].AccountTitle), costCenters)
	checkFunds := p.policy != nil && p.policy.Applies(unitID)
	var sub02s []domain.Sub02Entry

	for _, row := range rows {
		if rules.IsZeroRow(row) {
			continue
		}
		if checkFunds {
			excluded, err := p.policy.IsExcluded(unitID, row)
			if err != nil {
				// Applies was true, so this only happens with a broken policy.
				p.logger.Error("fund exclusion check failed", slog.Int("unit_id", unitID), slog.String("error", err.Error()))
			} else if excluded {
				continue
			}
		}

		fau := row.FAU()
		group := report.GroupFor(fau, row.FundTitle)
		line := p.lineFor(row)
		if prev, ok := group.Line(row.SubCode); ok {
			p.logger.Warn("duplicate sub code in FAU, keeping last row",
				slog.String("fau", fau),
				slog.String("sub_code", row.SubCode),
				slog.String("previous_amount", prev.Amount.String()),
				slog.String("new_amount", line.Amount.String()))
		}
		group.SetLine(line)

		if row.FundNumber == domain.Sub02Fund && row.SubCode == domain.Sub02Code {
			sub02s = append(sub02s, domain.Sub02Entry{FAU: fau, FundTitle: row.FundTitle, Line: line})
		}
	}

	if len(report.Groups()) == 0 {
		return false
	}
	for _, g := range report.Groups() {
		g.Totals = CalculateTotals(g.Lines())
	}
	p.tree.Accounts = append(p.tree.Accounts, report)
	p.tree.Sub02s = append(p.tree.Sub02s, sub02s...)
	return true
}

func (p *Parser) lineFor(row domain.LedgerRow) domain.SubcodeLine {
	name := row.SubCode
	if sc, ok := p.registry.Lookup(row.SubCode); ok {
		name = sc.Title
	} else {
		p.logger.Warn("unknown sub code", slog.String("sub_code", row.SubCode), slog.String("fau", row.FAU()))
	}
	return domain.SubcodeLine{
		Code:          row.SubCode,
		Name:          name,
		Appropriation: row.YTDApprop,
		Expense:       row.YTDExpense,
		Encumbrance:   row.Encumbrance,
		MemoLien:      row.MemoLien,
		Amount:        row.OperatingBalance,
		Percent:       CalculatePercentLeft(row.YTDApprop, row.OperatingBalance),
	}
}

// CalculatePercentLeft returns amount/appropriation, floored at zero. It is
// zero when the appropriation is not positive.
func CalculatePercentLeft(appropriation, amount decimal.Decimal) decimal.Decimal {
	if !appropriation.IsPositive() {
		return decimal.Zero
	}
	return decimal.Max(decimal.Zero, amount.Div(appropriation))
}

// CalculateTotals sums the money columns of lines. Percent is not summed.
func CalculateTotals(lines []domain.SubcodeLine) domain.Totals {
	var t domain.Totals
	for _, l := range lines {
		t.Appropriation = t.Appropriation.Add(l.Appropriation)
		t.Expense = t.Expense.Add(l.Expense)
		t.Encumbrance = t.Encumbrance.Add(l.Encumbrance)
		t.MemoLien = t.MemoLien.Add(l.MemoLien)
		t.Amount = t.Amount.Add(l.Amount)
	}
	return t
}
