package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FiscalYearStartMonth is the first month of the fiscal year (July).
const FiscalYearStartMonth = 7

// Period identifies one reporting month.
type Period struct {
	Year  int `json:"year" yaml:"year"`
	Month int `json:"month" yaml:"month"`
}

// NewPeriod returns the period for the given year and month.
func NewPeriod(year, month int) Period {
	return Period{Year: year, Month: month}
}

// MonthName returns the English month name.
func (p Period) MonthName() string {
	return time.Month(p.Month).String()
}

// YYYYMM returns the period in the warehouse ledger_year_month format.
func (p Period) YYYYMM() string {
	return fmt.Sprintf("%04d%02d", p.Year, p.Month)
}

// IsFiscalYearEnd reports whether the period is the last month of the fiscal year.
func (p Period) IsFiscalYearEnd() bool {
	return p.Month == FiscalYearStartMonth-1
}

// After reports whether p falls strictly after other, at month granularity.
func (p Period) After(other Period) bool {
	if p.Year != other.Year {
		return p.Year > other.Year
	}
	return p.Month > other.Month
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// LedgerRow is one aggregated general-ledger line returned by the warehouse,
// unique per account, cost center, fund and sub code.
type LedgerRow struct {
	AccountNumber    string          `json:"account_number" db:"account_number"`
	AccountTitle     string          `json:"account_title" db:"account_title"`
	CostCenterCode   string          `json:"cost_center_code" db:"cost_center_code"`
	FundNumber       string          `json:"fund_number" db:"fund_number"`
	FundTitle        string          `json:"fund_title" db:"fund_title"`
	SubCode          string          `json:"sub_code" db:"sub_code"`
	YTDApprop        decimal.Decimal `json:"ytd_approp" db:"ytd_approp"`
	YTDExpense       decimal.Decimal `json:"ytd_expense" db:"ytd_expense"`
	Encumbrance      decimal.Decimal `json:"encumbrance" db:"encumbrance"`
	MemoLien         decimal.Decimal `json:"memo_lien" db:"memo_lien"`
	OperatingBalance decimal.Decimal `json:"operating_bal_am" db:"operating_bal_am"`
}

// FAU returns the fund-account-unit key "{account}-{cost_center}-{fund}".
func (r LedgerRow) FAU() string {
	return r.AccountNumber + "-" + r.CostCenterCode + "-" + r.FundNumber
}

// Amounts returns the five financial fields in report column order.
func (r LedgerRow) Amounts() []decimal.Decimal {
	return []decimal.Decimal{r.YTDApprop, r.YTDExpense, r.Encumbrance, r.MemoLien, r.OperatingBalance}
}
