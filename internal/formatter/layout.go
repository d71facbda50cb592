package formatter

import (
	"github.com/shopspring/decimal"

	"qdbreport/pkg/contracts/domain"
)

// Sheet geometry shared by every report sheet.
const (
	firstColumn = "A"
	lastColumn  = "J"

	headerRows      = 7
	tableHeaderRow  = 5
	perGroupRows    = 3
	legendOverhead  = 4
	sub02EntryRows  = 4
	rowHeight       = 20.0
	letterPaperSize = 1

	// Sub02SheetName is the supplemental sheet listing general assistance lines.
	Sub02SheetName = "Sub02 Report"
	// DateLayout renders the run date in row 1.
	DateLayout = "January 02, 2006"
	// ReportTitle is printed in row 2 of every sheet.
	ReportTitle = "University Library and Associated Departments: General Ledger Summary"

	moneyFormat   = 3 // #,##0
	percentFormat = 9 // 0%
)

var (
	columns      = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
	columnWidths = []float64{5, 10, 5, 20, 20, 20, 20, 20, 20, 20}
	twelve       = decimal.NewFromInt(12)
)

// CalculateFiscalYearRemainder returns the share of the fiscal year still
// ahead after month, as a whole percentage such as "92%".
func CalculateFiscalYearRemainder(month int) string {
	offset := 6
	if month >= domain.FiscalYearStartMonth {
		offset = -6
	}
	elapsed := decimal.NewFromInt(int64(month + offset)).Div(twelve)
	remainder := decimal.NewFromInt(1).Sub(elapsed)
	return remainder.Shift(2).Round(0).String() + "%"
}

// TotalRows returns the formatted row extent of an account sheet: the header
// block, three rows per FAU group (title, totals, spacer), one row per subcode
// line and, unless the sheet is a Library Materials sheet, the legend.
func TotalRows(account *domain.AccountReport, isLibraryMaterials bool, registry *domain.SubcodeRegistry) int {
	total := headerRows
	total += perGroupRows * len(account.Groups())
	total += account.LineCount()
	if !isLibraryMaterials {
		total += registry.Len() + legendOverhead
	}
	return total
}

// Sub02Rows returns the formatted row extent of the supplemental sheet.
func Sub02Rows(entries int) int {
	return headerRows + sub02EntryRows*entries
}
