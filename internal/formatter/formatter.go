// Package formatter renders a unit's report tree as an Excel workbook: one
// sheet per account, plus a supplemental sheet for general assistance lines.
package formatter

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	apperrors "qdbreport/internal/errors"
	"qdbreport/pkg/contracts/domain"
)

const (
	defaultSheet       = "Sheet1"
	libraryMaterialsCC = "LM"
	creator            = "qdbreport"
)

// Formatter lays out report workbooks. It holds no per-run state and may be
// shared.
type Formatter struct {
	registry *domain.SubcodeRegistry
	lmCode   string
}

// New returns a formatter printing registry as the sheet legend. Accounts
// covering the libraryMaterials cost center get an "-LM" sheet without a
// legend.
func New(registry *domain.SubcodeRegistry, libraryMaterials string) *Formatter {
	if registry == nil {
		registry = domain.NewSubcodeRegistry(domain.DefaultSubcodes())
	}
	if libraryMaterials == "" {
		libraryMaterials = libraryMaterialsCC
	}
	return &Formatter{registry: registry, lmCode: libraryMaterials}
}

// IsLibraryMaterials reports whether account renders as a Library Materials sheet.
func (fm *Formatter) IsLibraryMaterials(account *domain.AccountReport) bool {
	return account.HasCostCenter(fm.lmCode)
}

// SheetName returns the worksheet name for account.
func (fm *Formatter) SheetName(account *domain.AccountReport) string {
	if fm.IsLibraryMaterials(account) {
		return account.Account + "-" + fm.lmCode
	}
	return account.Account
}

// SheetNames returns the worksheets Generate creates for tree, in order.
func (fm *Formatter) SheetNames(tree *domain.ReportTree) []string {
	names := make([]string, 0, len(tree.Accounts)+1)
	for _, account := range tree.Accounts {
		names = append(names, fm.SheetName(account))
	}
	if len(tree.Sub02s) > 0 {
		names = append(names, Sub02SheetName)
	}
	return names
}

// TotalRows returns the formatted row extent of account's sheet.
func (fm *Formatter) TotalRows(account *domain.AccountReport) int {
	return TotalRows(account, fm.IsLibraryMaterials(account), fm.registry)
}

// Generate builds the workbook for tree. now stamps the header date and the
// document properties, so equal inputs give equal workbooks. The caller owns
// the returned file and must Close it.
func (fm *Formatter) Generate(tree *domain.ReportTree, now time.Time) (*excelize.File, error) {
	if tree == nil || (tree.IsEmpty() && len(tree.Sub02s) == 0) {
		return nil, fmt.Errorf("generate workbook: %w", apperrors.ErrEmptyUnit)
	}

	f := excelize.NewFile()
	if err := fm.build(f, tree, now); err != nil {
		f.Close()
		return nil, fmt.Errorf("generate workbook for %s: %w", tree.Unit, err)
	}
	return f, nil
}

// WriteFile generates the workbook for tree and saves it to path.
func (fm *Formatter) WriteFile(tree *domain.ReportTree, now time.Time, path string) error {
	f, err := fm.Generate(tree, now)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func (fm *Formatter) build(f *excelize.File, tree *domain.ReportTree, now time.Time) error {
	styles := newStyleCache(f)

	for _, account := range tree.Accounts {
		w, err := addSheet(f, fm.SheetName(account), styles)
		if err != nil {
			return err
		}
		fm.writeAccount(w, tree, account, now)
		if w.err != nil {
			return fmt.Errorf("sheet %s: %w", w.sheet, w.err)
		}
	}

	if len(tree.Sub02s) > 0 {
		w, err := addSheet(f, Sub02SheetName, styles)
		if err != nil {
			return err
		}
		fm.writeSub02s(w, tree, now)
		if w.err != nil {
			return fmt.Errorf("sheet %s: %w", w.sheet, w.err)
		}
	}

	if err := f.DeleteSheet(defaultSheet); err != nil {
		return fmt.Errorf("remove default sheet: %w", err)
	}
	f.SetActiveSheet(0)

	stamp := now.UTC().Format(time.RFC3339)
	return f.SetDocProps(&excelize.DocProperties{
		Created:        stamp,
		Modified:       stamp,
		Creator:        creator,
		LastModifiedBy: creator,
		Title:          fmt.Sprintf("General Ledger Summary: %s", tree.Unit),
		Subject:        fmt.Sprintf("%s %d", tree.MonthName, tree.Year),
	})
}

func addSheet(f *excelize.File, name string, styles *styleCache) (*sheetWriter, error) {
	idx, err := f.GetSheetIndex(name)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", name, err)
	}
	if idx >= 0 {
		return nil, fmt.Errorf("duplicate sheet %s", name)
	}
	if _, err := f.NewSheet(name); err != nil {
		return nil, fmt.Errorf("create sheet %s: %w", name, err)
	}
	return newSheetWriter(f, name, styles), nil
}

func (fm *Formatter) writeAccount(w *sheetWriter, tree *domain.ReportTree, account *domain.AccountReport, now time.Time) {
	lastRow := fm.TotalRows(account)
	w.clear(lastRow)
	writeHeader(w, tree, now)

	row := writeTableHeader(w, tableHeaderRow)
	for _, g := range account.Groups() {
		row = writeGroup(w, g, row)
	}
	if !fm.IsLibraryMaterials(account) {
		fm.writeLegend(w, row)
	}
	w.finish(lastRow)
}

func writeHeader(w *sheetWriter, tree *domain.ReportTree, now time.Time) {
	w.merge("A", "F", 1)
	w.set("A", 1, now.Format(DateLayout))
	w.merge("G", "J", 1)
	w.heading("G", 1, "Report for: "+tree.Unit, fontH1Red, "right")
	w.underline(columns, 1, underlineThickBlack)

	w.merge(firstColumn, lastColumn, 2)
	w.heading("A", 2, ReportTitle, fontH1Red, "center")

	w.merge(firstColumn, lastColumn, 3)
	w.heading("A", 3, "YTD Financial Results Through the Month Ending: "+tree.MonthName, fontH2Red, "center")

	w.merge(firstColumn, lastColumn, 4)
	w.heading("A", 4, CalculateFiscalYearRemainder(tree.Month)+" of the fiscal year remains.", fontH3Red, "center")
	w.underline(columns, 4, underlineThickBlack)
}

// writeTableHeader writes the three column header rows starting at row and
// returns the first body row.
func writeTableHeader(w *sheetWriter, row int) int {
	w.merge("I", "J", row)
	for _, h := range [][2]string{{"E", "A"}, {"F", "B"}, {"G", "C"}, {"H", "D"}, {"I", "A-B-C-D"}} {
		w.heading(h[0], row, h[1], fontH2Red, "center")
	}
	row++

	w.merge("I", "J", row)
	w.heading("E", row, "YTD", fontH2, "center")
	w.heading("F", row, "YTD", fontH2, "center")
	w.heading("I", row, "Operating Balance", fontH2Red, "center")
	w.underline([]string{"I", "J"}, row, underlineMediumRed)
	row++

	labels := [][2]string{
		{"E", "Appropriation"}, {"F", "Expense"}, {"G", "Encumbrance"},
		{"H", "Memo Lien"}, {"I", "Amount"}, {"J", "Percent"},
	}
	for _, h := range labels {
		w.heading(h[0], row, h[1], fontH2, "center")
	}
	w.underline(columns, row, underlineThickRed)
	return row + 1
}

// writeGroup writes one FAU block and returns the row after its spacer.
func writeGroup(w *sheetWriter, g *domain.FauGroup, row int) int {
	w.merge(firstColumn, lastColumn, row)
	w.heading("A", row, g.FAU+" "+g.FundTitle, fontH2, "")
	row++

	first := row
	for _, line := range g.Lines() {
		w.set("C", row, line.Code)
		w.set("D", row, line.Name)
		w.money("E", row, line.Appropriation)
		w.money("F", row, line.Expense)
		w.money("G", row, line.Encumbrance)
		w.money("H", row, line.MemoLien)
		w.money("I", row, line.Amount)
		w.percent("J", row, line.Percent)
		row++
	}
	w.underline([]string{"E", "F", "G", "H", "I", "J"}, row-1, underlineMediumRed)

	totals := []struct {
		col string
		val decimal.Decimal
	}{
		{"E", g.Totals.Appropriation},
		{"F", g.Totals.Expense},
		{"G", g.Totals.Encumbrance},
		{"H", g.Totals.MemoLien},
		{"I", g.Totals.Amount},
	}
	for _, t := range totals {
		w.total(t.col, row, first, row-1, t.val)
	}
	return row + 2
}

func (fm *Formatter) writeLegend(w *sheetWriter, row int) int {
	row++
	legendHeading := func(s *cellStyle) {
		s.font = fontH3
		s.fill = true
	}
	w.set("A", row, "Sub")
	w.style("A", row, legendHeading)
	w.merge("B", "D", row)
	w.set("B", row, "Sub Title")
	w.styleCols([]string{"B", "C", "D"}, row, legendHeading)
	w.merge("E", "H", row)
	w.set("E", row, "Notes")
	w.styleCols([]string{"E", "F", "G", "H"}, row, legendHeading)
	row++

	for _, sc := range fm.registry.Entries() {
		w.heading("A", row, sc.Code, fontH3, "")
		w.merge("B", "D", row)
		w.heading("B", row, sc.Title, fontH3, "")
		w.merge("E", "H", row)
		w.heading("E", row, sc.Notes, fontH3, "")
		row++
	}
	return row
}

func (fm *Formatter) writeSub02s(w *sheetWriter, tree *domain.ReportTree, now time.Time) {
	lastRow := Sub02Rows(len(tree.Sub02s))
	w.clear(lastRow)
	writeHeader(w, tree, now)

	row := writeTableHeader(w, tableHeaderRow)
	for _, entry := range tree.Sub02s {
		w.merge(firstColumn, lastColumn, row)
		w.heading("A", row, entry.FAU+" "+entry.FundTitle, fontH2, "")
		row++

		w.set("C", row, domain.Sub02Code)
		w.set("D", row, entry.Line.Name)
		w.money("E", row, entry.Line.Appropriation)
		w.money("F", row, entry.Line.Expense)
		w.money("I", row, entry.Line.Amount)
		w.percent("J", row, entry.Line.Percent)
		row += 3
	}
	w.finish(lastRow)
}
