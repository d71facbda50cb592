package testutil

import (
	"github.com/shopspring/decimal"

	"qdbreport/pkg/contracts/domain"
)

// Row builds a ledger row for account/cost center/fund/sub code with the
// amounts given as decimal strings, in column order: appropriation, expense,
// encumbrance, memo lien, operating balance. Missing amounts are zero.
func Row(account, costCenter, fund, subCode string, amounts ...string) domain.LedgerRow {
	vals := make([]decimal.Decimal, 5)
	for i := range vals {
		vals[i] = decimal.Zero
		if i < len(amounts) {
			vals[i] = decimal.RequireFromString(amounts[i])
		}
	}
	return domain.LedgerRow{
		AccountNumber:    account,
		AccountTitle:     "Account " + account + " ",
		CostCenterCode:   costCenter,
		FundNumber:       fund,
		FundTitle:        "Fund " + fund,
		SubCode:          subCode,
		YTDApprop:        vals[0],
		YTDExpense:       vals[1],
		Encumbrance:      vals[2],
		MemoLien:         vals[3],
		OperatingBalance: vals[4],
	}
}

// Dec parses a decimal literal and panics on bad input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// SampleUnits is a small directory used by orchestration tests.
func SampleUnits() []domain.Unit {
	return []domain.Unit{
		{ID: 1, Name: "LBS"},
		{ID: 21, Name: "DIIT Software Development"},
		{ID: 27, Name: "FTVA"},
		{ID: 35, Name: "HaDuong - AUL Discretionary Funds"},
		{ID: 99, Name: "All units"},
	}
}
