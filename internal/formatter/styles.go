package formatter

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

type fontKind int

const (
	fontDefault fontKind = iota
	fontH1Red
	fontH2
	fontH2Red
	fontH3
	fontH3Red
)

type underline int

const (
	underlineNone underline = iota
	underlineThickBlack
	underlineThickRed
	underlineMediumRed
)

const (
	fontFamily = "Calibri"
	white      = "FFFFFF"
	black      = "000000"
	red        = "800000"
	blueFill   = "99CCFF"

	// excelize border style codes
	borderMedium = 2
	borderThick  = 5
)

// cellStyle is the composable description of one cell's formatting. Every
// distinct value maps to one workbook style.
type cellStyle struct {
	font      fontKind
	align     string
	numFmt    int
	fill      bool
	underline underline
}

func (s cellStyle) fontSpec() *excelize.Font {
	f := &excelize.Font{Family: fontFamily, Size: 12}
	switch s.font {
	case fontH1Red:
		f.Size, f.Bold, f.Color = 14, true, red
	case fontH2:
		f.Bold = true
	case fontH2Red:
		f.Bold, f.Color = true, red
	case fontH3:
		f.Size, f.Bold = 10, true
	case fontH3Red:
		f.Size, f.Bold, f.Color = 10, true, red
	}
	return f
}

func (s cellStyle) borders() []excelize.Border {
	bottom := excelize.Border{Type: "bottom", Color: white, Style: borderMedium}
	switch s.underline {
	case underlineThickBlack:
		bottom = excelize.Border{Type: "bottom", Color: black, Style: borderThick}
	case underlineThickRed:
		bottom = excelize.Border{Type: "bottom", Color: red, Style: borderThick}
	case underlineMediumRed:
		bottom = excelize.Border{Type: "bottom", Color: red, Style: borderMedium}
	}
	return []excelize.Border{
		{Type: "left", Color: white, Style: borderMedium},
		{Type: "top", Color: white, Style: borderMedium},
		{Type: "right", Color: white, Style: borderMedium},
		bottom,
	}
}

func (s cellStyle) toExcelize() *excelize.Style {
	st := &excelize.Style{
		Font:   s.fontSpec(),
		Border: s.borders(),
		NumFmt: s.numFmt,
	}
	if s.align != "" {
		st.Alignment = &excelize.Alignment{Horizontal: s.align}
	}
	if s.fill {
		st.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{blueFill}}
	}
	return st
}

// styleCache registers each distinct cellStyle once per workbook.
type styleCache struct {
	f   *excelize.File
	ids map[cellStyle]int
}

func newStyleCache(f *excelize.File) *styleCache {
	return &styleCache{f: f, ids: make(map[cellStyle]int)}
}

func (c *styleCache) id(s cellStyle) (int, error) {
	if id, ok := c.ids[s]; ok {
		return id, nil
	}
	id, err := c.f.NewStyle(s.toExcelize())
	if err != nil {
		return 0, fmt.Errorf("create style: %w", err)
	}
	c.ids[s] = id
	return id, nil
}
