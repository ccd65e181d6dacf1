package model

import "strings"

// Table 从外部表格读取的原始二维数据（首行为表头）
type Table struct {
	Source  string     `json:"source"`
	Sheet   string     `json:"sheet"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ColumnIndex 返回列名所在下标，不存在返回 -1
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn 是否存在指定列
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Cell 读取单元格（越界返回空串）
func (t *Table) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// DataRowCount 非空数据行数
func (t *Table) DataRowCount() int {
	n := 0
	for _, r := range t.Rows {
		if !IsBlankRow(r) {
			n++
		}
	}
	return n
}

// Clone 深拷贝
func (t *Table) Clone() *Table {
	out := &Table{
		Source:  t.Source,
		Sheet:   t.Sheet,
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// IsBlankRow 整行均为空白
func IsBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
