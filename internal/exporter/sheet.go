package exporter

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type colKind int

const (
	colText colKind = iota
	colInt
	colMoney
	colRate
	colDate
)

type column struct {
	title string
	kind  colKind
}

// pct 强制按百分比格式输出的数值（用于混合列）
type pct decimal.Decimal

const (
	maxColWidth  = 50
	headerHeight = 25
)

type styles struct {
	header  int
	text    int
	code    int
	integer int
	money   int
	rate    int
	date    int
}

func newStyles(f *excelize.File, dateFormat string) (*styles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	left := &excelize.Alignment{Horizontal: "left", Vertical: "center"}
	right := &excelize.Alignment{Horizontal: "right", Vertical: "center"}

	moneyFmt := `¥#,##0.00`
	rateFmt := `0.00"%"`
	intFmt := `#,##0`
	textFmt := "@"
	if dateFormat == "" {
		dateFormat = "yyyy-mm-dd"
	}

	s := &styles{}
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.header, &excelize.Style{
			Border:    border,
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		}},
		{&s.text, &excelize.Style{Border: border, Alignment: left}},
		{&s.code, &excelize.Style{Border: border, Alignment: left, CustomNumFmt: &textFmt}},
		{&s.integer, &excelize.Style{Border: border, Alignment: right, CustomNumFmt: &intFmt}},
		{&s.money, &excelize.Style{Border: border, Alignment: right, CustomNumFmt: &moneyFmt}},
		{&s.rate, &excelize.Style{Border: border, Alignment: right, CustomNumFmt: &rateFmt}},
		{&s.date, &excelize.Style{Border: border, Alignment: left, CustomNumFmt: &dateFormat}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return nil, fmt.Errorf("create style: %w", err)
		}
		*d.dst = id
	}
	return s, nil
}

func (s *styles) forKind(k colKind, title string) int {
	switch k {
	case colInt:
		return s.integer
	case colMoney:
		return s.money
	case colRate:
		return s.rate
	case colDate:
		return s.date
	default:
		if title == "商品编码" {
			return s.code
		}
		return s.text
	}
}

// writeSheet 写入一个表格：首行表头、冻结首行、按内容设置列宽
func writeSheet(f *excelize.File, st *styles, sheet string, cols []column, rows [][]interface{}) error {
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
	}

	widths := make([]int, len(cols))
	for i, c := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, c.title); err != nil {
			return err
		}
		widths[i] = displayWidth(c.title)
	}
	last, _ := excelize.CoordinatesToCellName(len(cols), 1)
	if err := f.SetCellStyle(sheet, "A1", last, st.header); err != nil {
		return err
	}
	if err := f.SetRowHeight(sheet, 1, headerHeight); err != nil {
		return err
	}

	for r, row := range rows {
		for i, v := range row {
			if i >= len(cols) {
				break
			}
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			style := st.forKind(cols[i].kind, cols[i].title)
			var text string
			switch val := v.(type) {
			case decimal.Decimal:
				if err := f.SetCellValue(sheet, cell, val.InexactFloat64()); err != nil {
					return err
				}
				text = val.StringFixed(2)
			case pct:
				d := decimal.Decimal(val)
				if err := f.SetCellValue(sheet, cell, d.InexactFloat64()); err != nil {
					return err
				}
				style = st.rate
				text = d.StringFixed(2) + "%"
			case time.Time:
				if val.IsZero() {
					text = ""
					break
				}
				if err := f.SetCellValue(sheet, cell, val); err != nil {
					return err
				}
				text = val.Format("2006-01-02")
			case string:
				if err := f.SetCellStr(sheet, cell, val); err != nil {
					return err
				}
				text = val
			default:
				if err := f.SetCellValue(sheet, cell, val); err != nil {
					return err
				}
				text = fmt.Sprint(val)
			}
			if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
				return err
			}
			if w := displayWidth(text); w > widths[i] {
				widths[i] = w
			}
		}
	}

	for i, w := range widths {
		name, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(w + 2)
		if width > maxColWidth {
			width = maxColWidth
		}
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
	}

	if len(rows) > 0 {
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return err
		}
	}
	return nil
}

// displayWidth 中文按两个字符宽度计
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if r < utf8.RuneSelf {
			w++
		} else {
			w += 2
		}
	}
	return w
}
