package domain

import (
	"github.com/shopspring/decimal"
)

// Sub02Fund is the fund whose subcode 02 lines feed the supplemental report.
const Sub02Fund = "19900"

// Sub02Code is the general assistance subcode.
const Sub02Code = "02"

// SubcodeLine is the aggregate of one sub code within a FAU.
type SubcodeLine struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Appropriation decimal.Decimal `json:"appropriation"`
	Expense       decimal.Decimal `json:"expense"`
	Encumbrance   decimal.Decimal `json:"encumbrance"`
	MemoLien      decimal.Decimal `json:"memo_lien"`
	Amount        decimal.Decimal `json:"amount"`
	Percent       decimal.Decimal `json:"percent"`
}

// Totals is the column-wise sum of a FAU's subcode lines. Percent is per line
// only and is never totalled.
type Totals struct {
	Appropriation decimal.Decimal `json:"appropriation"`
	Expense       decimal.Decimal `json:"expense"`
	Encumbrance   decimal.Decimal `json:"encumbrance"`
	MemoLien      decimal.Decimal `json:"memo_lien"`
	Amount        decimal.Decimal `json:"amount"`
}

// FauGroup holds the subcode lines of one fund line, in insertion order.
type FauGroup struct {
	FAU       string `json:"fau"`
	FundTitle string `json:"fund_title"`
	Totals    Totals `json:"totals"`

	lines []SubcodeLine
	index map[string]int
}

// NewFauGroup returns an empty group.
func NewFauGroup(fau, fundTitle string) *FauGroup {
	return &FauGroup{FAU: fau, FundTitle: fundTitle, index: make(map[string]int)}
}

// SetLine stores line under its code, replacing any previous line with the
// same code in place. It reports whether a line was replaced.
func (g *FauGroup) SetLine(line SubcodeLine) bool {
	if i, ok := g.index[line.Code]; ok {
		g.lines[i] = line
		return true
	}
	g.index[line.Code] = len(g.lines)
	g.lines = append(g.lines, line)
	return false
}

// Line returns the line for a sub code.
func (g *FauGroup) Line(code string) (SubcodeLine, bool) {
	i, ok := g.index[code]
	if !ok {
		return SubcodeLine{}, false
	}
	return g.lines[i], true
}

// Lines returns the subcode lines in insertion order.
func (g *FauGroup) Lines() []SubcodeLine {
	return g.lines
}

// AccountReport is one account (or account + Library Materials split) of a
// unit's report.
type AccountReport struct {
	Account     string   `json:"account"`
	Title       string   `json:"title"`
	CostCenters []string `json:"cost_centers"`

	groups []*FauGroup
	index  map[string]int
}

// NewAccountReport returns an empty account report.
func NewAccountReport(account, title string, costCenters []string) *AccountReport {
	cc := make([]string, len(costCenters))
	copy(cc, costCenters)
	return &AccountReport{Account: account, Title: title, CostCenters: cc, index: make(map[string]int)}
}

// GroupFor returns the group for fau, creating it with fundTitle on first sight.
func (a *AccountReport) GroupFor(fau, fundTitle string) *FauGroup {
	if i, ok := a.index[fau]; ok {
		return a.groups[i]
	}
	g := NewFauGroup(fau, fundTitle)
	a.index[fau] = len(a.groups)
	a.groups = append(a.groups, g)
	return g
}

// Group returns an existing group.
func (a *AccountReport) Group(fau string) (*FauGroup, bool) {
	i, ok := a.index[fau]
	if !ok {
		return nil, false
	}
	return a.groups[i], true
}

// Groups returns the FAU groups in insertion order.
func (a *AccountReport) Groups() []*FauGroup {
	return a.groups
}

// LineCount returns the number of subcode lines across all groups.
func (a *AccountReport) LineCount() int {
	n := 0
	for _, g := range a.groups {
		n += len(g.lines)
	}
	return n
}

// HasCostCenter reports whether the account covers cost center cc.
func (a *AccountReport) HasCostCenter(cc string) bool {
	for _, c := range a.CostCenters {
		if c == cc {
			return true
		}
	}
	return false
}

// Sub02Entry is a copy of a fund 19900 subcode 02 line, collected across all
// accounts of a unit.
type Sub02Entry struct {
	FAU       string      `json:"fau"`
	FundTitle string      `json:"fund_title"`
	Line      SubcodeLine `json:"line"`
}

// ReportTree is the complete report for one unit and period. It is built
// fresh for every run and never persisted.
type ReportTree struct {
	Unit      string           `json:"unit"`
	Year      int              `json:"year"`
	Month     int              `json:"month"`
	MonthName string           `json:"month_name"`
	Accounts  []*AccountReport `json:"accounts"`
	Sub02s    []Sub02Entry     `json:"sub02s"`
}

// NewReportTree returns an empty tree for unit and period.
func NewReportTree(period Period, unit string) *ReportTree {
	return &ReportTree{
		Unit:      unit,
		Year:      period.Year,
		Month:     period.Month,
		MonthName: period.MonthName(),
	}
}

// Period returns the tree's reporting period.
func (t *ReportTree) Period() Period {
	return Period{Year: t.Year, Month: t.Month}
}

// IsEmpty reports whether no account produced data.
func (t *ReportTree) IsEmpty() bool {
	return len(t.Accounts) == 0
}

// Summary returns what a delivery channel needs to describe the report.
func (t *ReportTree) Summary() ReportSummary {
	accounts := make([]string, 0, len(t.Accounts))
	for _, a := range t.Accounts {
		accounts = append(accounts, a.Account)
	}
	return ReportSummary{Unit: t.Unit, Year: t.Year, MonthName: t.MonthName, Accounts: accounts}
}

// ReportSummary describes a rendered report for delivery.
type ReportSummary struct {
	Unit      string   `json:"unit"`
	Year      int      `json:"year"`
	MonthName string   `json:"month_name"`
	Accounts  []string `json:"accounts"`
}
