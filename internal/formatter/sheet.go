package formatter

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// sheetWriter writes one worksheet. The first failing call sets err and turns
// every later call into a no-op, so builders check the error once at the end.
type sheetWriter struct {
	f      *excelize.File
	sheet  string
	styles *styleCache
	cells  map[string]cellStyle
	err    error
}

func newSheetWriter(f *excelize.File, sheet string, styles *styleCache) *sheetWriter {
	return &sheetWriter{f: f, sheet: sheet, styles: styles, cells: make(map[string]cellStyle)}
}

func cellName(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// clear gives every cell up to lastRow the default font and white borders.
func (w *sheetWriter) clear(lastRow int) {
	if w.err != nil {
		return
	}
	id, err := w.styles.id(cellStyle{})
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellStyle(w.sheet, cellName(firstColumn, 1), cellName(lastColumn, lastRow), id)
}

func (w *sheetWriter) set(col string, row int, v any) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetCellValue(w.sheet, cellName(col, row), v)
}

func (w *sheetWriter) money(col string, row int, d decimal.Decimal) {
	w.set(col, row, d.InexactFloat64())
	w.style(col, row, func(s *cellStyle) { s.numFmt = moneyFormat })
}

func (w *sheetWriter) percent(col string, row int, d decimal.Decimal) {
	w.set(col, row, d.InexactFloat64())
	w.style(col, row, func(s *cellStyle) { s.numFmt = percentFormat })
}

// total writes the cached total and a SUM over the rows above it.
func (w *sheetWriter) total(col string, row, from, to int, d decimal.Decimal) {
	w.money(col, row, d)
	if w.err != nil {
		return
	}
	w.err = w.f.SetCellFormula(w.sheet, cellName(col, row),
		fmt.Sprintf("SUM(%s:%s)", cellName(col, from), cellName(col, to)))
}

func (w *sheetWriter) merge(fromCol, toCol string, row int) {
	if w.err != nil {
		return
	}
	w.err = w.f.MergeCell(w.sheet, cellName(fromCol, row), cellName(toCol, row))
}

// style applies mutate to the cell's current style and writes the result.
func (w *sheetWriter) style(col string, row int, mutate func(*cellStyle)) {
	if w.err != nil {
		return
	}
	cell := cellName(col, row)
	s := w.cells[cell]
	mutate(&s)
	w.cells[cell] = s
	id, err := w.styles.id(s)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellStyle(w.sheet, cell, cell, id)
}

func (w *sheetWriter) styleCols(cols []string, row int, mutate func(*cellStyle)) {
	for _, col := range cols {
		w.style(col, row, mutate)
	}
}

func (w *sheetWriter) underline(cols []string, row int, u underline) {
	w.styleCols(cols, row, func(s *cellStyle) { s.underline = u })
}

func (w *sheetWriter) heading(col string, row int, text string, font fontKind, align string) {
	w.set(col, row, text)
	w.style(col, row, func(s *cellStyle) {
		s.font = font
		s.align = align
	})
}

// finish applies column widths, row heights and print setup.
func (w *sheetWriter) finish(lastRow int) {
	for i, col := range columns {
		if w.err != nil {
			return
		}
		w.err = w.f.SetColWidth(w.sheet, col, col, columnWidths[i])
	}
	for row := 1; row <= lastRow && w.err == nil; row++ {
		w.err = w.f.SetRowHeight(w.sheet, row, rowHeight)
	}
	if w.err != nil {
		return
	}

	size, orientation := letterPaperSize, "landscape"
	fitWidth, fitHeight := 1, 0
	if w.err = w.f.SetPageLayout(w.sheet, &excelize.PageLayoutOptions{
		Size:        &size,
		Orientation: &orientation,
		FitToWidth:  &fitWidth,
		FitToHeight: &fitHeight,
	}); w.err != nil {
		return
	}
	fit := true
	w.err = w.f.SetSheetProps(w.sheet, &excelize.SheetPropsOptions{FitToPage: &fit})
}
