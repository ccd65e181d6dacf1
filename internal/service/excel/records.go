package excel

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"marginanalyzer/internal/model"
	"marginanalyzer/internal/parser"
)

// DataError 单元格数据无法解析（数量 / 单价非数值等），整次计算中止
type DataError struct {
	Source string
	Sheet  string
	Row    int // 表格中的行号（表头为第 1 行）
	Column string
	Value  string
	Reason string
}

func (e *DataError) Error() string {
	where := e.Source
	if e.Sheet != "" {
		where += "/" + e.Sheet
	}
	return fmt.Sprintf("%s 第%d行 [%s] 值 %q %s", where, e.Row, e.Column, e.Value, e.Reason)
}

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

// dataError 列名取映射器当前同义词表中的显示名
func (r *Reader) dataError(t *model.Table, schema parser.Schema, rowNo int, field, value, reason string) *DataError {
	return &DataError{
		Source: t.Source,
		Sheet:  t.Sheet,
		Row:    rowNo,
		Column: r.mapper.Synonyms().Label(schema, field),
		Value:  value,
		Reason: reason,
	}
}

// ParseSales 将规范化后的销售表转换为销售记录。
// 空白行跳过；数量、单价为空或非数值时返回 *DataError。
func (r *Reader) ParseSales(t *model.Table) ([]model.SalesRecord, error) {
	idx := columnIndexes(t)
	out := make([]model.SalesRecord, 0, len(t.Rows))

	for i, row := range t.Rows {
		if model.IsBlankRow(row) {
			continue
		}
		rowNo := i + 2
		get := func(field string) string {
			return t.Cell(row, idx[field])
		}

		rawQty := get(parser.FieldQuantity)
		qty, err := parseQuantity(rawQty)
		if err != nil {
			return nil, r.dataError(t, parser.SchemaSales, rowNo, parser.FieldQuantity, rawQty, err.Error())
		}
		rawPrice := get(parser.FieldUnitPrice)
		price, err := parseMoney(rawPrice)
		if err != nil {
			return nil, r.dataError(t, parser.SchemaSales, rowNo, parser.FieldUnitPrice, rawPrice, err.Error())
		}

		rec := model.SalesRecord{
			RowNo:             rowNo,
			ProductCode:       normalizeCode(get(parser.FieldProductCode)),
			ProductName:       get(parser.FieldProductName),
			StoreName:         get(parser.FieldStoreName),
			PrimaryCategory:   get(parser.FieldPrimaryCategory),
			SecondaryCategory: get(parser.FieldSecondaryCategory),
			Quantity:          qty,
			UnitPrice:         price,
		}
		// 日期无法识别时视为缺失
		if d, ok := ParseTime(get(parser.FieldSaleDate)); ok {
			rec.SaleDate = d
		}
		out = append(out, rec)
	}
	return out, nil
}

// ParsePurchases 将规范化后的采购表转换为采购记录。
// requireTime 为 true 时（历史采购表）建单时间必须可解析；否则时间留空，由历史库合并时打戳。
// 商品编码为空的行被跳过，返回被跳过的行号。
func (r *Reader) ParsePurchases(t *model.Table, schema parser.Schema, requireTime bool) ([]model.PurchaseRecord, []int, error) {
	idx := columnIndexes(t)
	out := make([]model.PurchaseRecord, 0, len(t.Rows))
	var skipped []int

	for i, row := range t.Rows {
		if model.IsBlankRow(row) {
			continue
		}
		rowNo := i + 2
		get := func(field string) string {
			return t.Cell(row, idx[field])
		}

		code := normalizeCode(get(parser.FieldProductCode))
		if code == "" {
			skipped = append(skipped, rowNo)
			continue
		}
		rawPrice := get(parser.FieldPurchasePrice)
		price, err := parseMoney(rawPrice)
		if err != nil {
			return nil, nil, r.dataError(t, schema, rowNo, parser.FieldPurchasePrice, rawPrice, err.Error())
		}

		rec := model.PurchaseRecord{
			ProductCode: code,
			ProductName: get(parser.FieldProductName),
			Price:       price,
		}
		if requireTime {
			raw := get(parser.FieldRecordedAt)
			ts, ok := ParseTime(raw)
			if !ok {
				return nil, nil, r.dataError(t, schema, rowNo, parser.FieldRecordedAt, raw, "不是有效的时间")
			}
			rec.RecordedAt = ts
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

func columnIndexes(t *model.Table) map[string]int {
	idx := make(map[string]int, len(t.Columns))
	for _, f := range []string{
		parser.FieldProductCode, parser.FieldProductName, parser.FieldStoreName,
		parser.FieldPrimaryCategory, parser.FieldSecondaryCategory,
		parser.FieldQuantity, parser.FieldUnitPrice, parser.FieldSaleDate,
		parser.FieldPurchasePrice, parser.FieldRecordedAt,
	} {
		idx[f] = t.ColumnIndex(f)
	}
	return idx
}

// normalizeCode 数值型编码在表格中可能带 ".0" 后缀
func normalizeCode(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, ".0") && isDigits(strings.TrimSuffix(s, ".0")) {
		return strings.TrimSuffix(s, ".0")
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "¥")
	s = strings.TrimPrefix(s, "￥")
	return strings.TrimSpace(s)
}

func parseMoney(s string) (decimal.Decimal, error) {
	s = cleanNumber(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("为空")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("不是有效的数值")
	}
	return d, nil
}

// parseQuantity 接受 "10"、"10.0"；小数部分截断；负数拒绝
func parseQuantity(s string) (int64, error) {
	d, err := parseMoney(s)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("不能为负数")
	}
	if d.Truncate(0).GreaterThan(maxQuantity) {
		return 0, fmt.Errorf("数值超出范围")
	}
	return d.IntPart(), nil
}
