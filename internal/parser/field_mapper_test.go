package parser

import (
	"errors"
	"strings"
	"testing"

	"marginanalyzer/internal/model"
)

func TestNormalize_SalesSynonyms(t *testing.T) {
	t.Parallel()

	m := NewFieldMapper(nil)
	in := &model.Table{
		Columns: []string{"SKU", "品名", "门店", "数量", " unit price ", "Date"},
		Rows:    [][]string{{"SP001", "商品A", "门店1", "10", "100", "2025-01-02"}},
	}

	out, report := m.Normalize(in, SchemaSales)

	want := []string{FieldProductCode, FieldProductName, FieldStoreName, FieldQuantity, FieldUnitPrice, FieldSaleDate}
	for i, col := range want {
		if out.Columns[i] != col {
			t.Fatalf("column %d want=%s got=%s", i, col, out.Columns[i])
		}
	}
	if in.Columns[0] != "SKU" {
		t.Fatalf("input table must not be modified, got %v", in.Columns)
	}
	if len(report.Unmapped) != 2 {
		t.Fatalf("expected category fields unmapped, got %v", report.Unmapped)
	}
}

func TestNormalize_FirstSynonymWins(t *testing.T) {
	t.Parallel()

	m := NewFieldMapper(nil)
	// “单价”优先级低于“商品单价”，即使位置靠前也不应被选中
	in := &model.Table{Columns: []string{"编码", "单价", "商品单价", "数量"}}

	out, _ := m.Normalize(in, SchemaSales)

	if out.Columns[2] != FieldUnitPrice {
		t.Fatalf("expected 商品单价 mapped, got %v", out.Columns)
	}
	if out.Columns[1] != "单价" {
		t.Fatalf("second candidate must be left untouched, got %v", out.Columns)
	}
}

func TestNormalize_ExistingCanonicalColumnKept(t *testing.T) {
	t.Parallel()

	m := NewFieldMapper(nil)
	in := &model.Table{Columns: []string{"product_code", "商品编码", "采购价"}}

	out, _ := m.Normalize(in, SchemaPurchaseLatest)

	if out.Columns[0] != FieldProductCode || out.Columns[1] != "商品编码" {
		t.Fatalf("canonical column already present must win, got %v", out.Columns)
	}
	if out.Columns[2] != FieldPurchasePrice {
		t.Fatalf("expected purchase price mapped, got %v", out.Columns)
	}
}

func TestNormalize_HistoryDateColumn(t *testing.T) {
	t.Parallel()

	m := NewFieldMapper(nil)
	// 历史表中的“日期”列按同义词映射为建单时间
	in := &model.Table{Columns: []string{"货号", "进价", "日期"}}

	out, report := m.Normalize(in, SchemaPurchaseHistory)

	if out.Columns[2] != FieldRecordedAt {
		t.Fatalf("expected 日期 mapped to recorded_at, got %v", out.Columns)
	}
	if len(report.Mapped) != 3 {
		t.Fatalf("unexpected mapped: %+v", report.Mapped)
	}
}

func TestRequire_ListsAllMissingColumns(t *testing.T) {
	t.Parallel()

	m := NewFieldMapper(nil)
	table, _ := m.Normalize(&model.Table{Columns: []string{"商品名称"}}, SchemaPurchaseHistory)

	err := m.Require(table, SchemaPurchaseHistory)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Missing) != 3 {
		t.Fatalf("expected 3 missing columns, got %v", verr.Missing)
	}
	for _, label := range []string{"商品编码", "采购单价", "建单时间"} {
		if !strings.Contains(err.Error(), label) {
			t.Fatalf("error should name %s: %v", label, err)
		}
	}
}

func TestInferSaleDate(t *testing.T) {
	t.Parallel()

	m := NewFieldMapper(nil)
	table, _ := m.Normalize(&model.Table{Columns: []string{"编码", "数量", "单价", "出库时间"}}, SchemaSales)

	out, ok := m.InferSaleDate(table)
	if !ok {
		t.Fatalf("expected date column inferred")
	}
	if out.Columns[3] != FieldSaleDate {
		t.Fatalf("unexpected columns: %v", out.Columns)
	}
}

func TestLoadSynonyms_OverrideSchema(t *testing.T) {
	t.Parallel()

	table, err := ParseSynonyms([]byte(`
purchase_latest:
  - field: product_code
    label: 商品编码
    synonyms: [物料号]
  - field: purchase_price
    label: 采购单价
    synonyms: [含税进价]
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	m := NewFieldMapper(table)
	out, _ := m.Normalize(&model.Table{Columns: []string{"物料号", "含税进价"}}, SchemaPurchaseLatest)
	if err := m.Require(out, SchemaPurchaseLatest); err != nil {
		t.Fatalf("require: %v", err)
	}
}

func TestSheetRecognizer_Best(t *testing.T) {
	t.Parallel()

	r := NewSheetRecognizer(NewFieldMapper(nil))
	headers := map[string][]string{
		"说明":   {"备注"},
		"销售明细": {"商品编码", "数量", "单价"},
		"Sheet3": {"商品编码", "数量"},
	}

	best, ok := r.Best(headers, []string{"说明", "销售明细", "Sheet3"}, SchemaSales)
	if !ok || best.SheetName != "销售明细" {
		t.Fatalf("unexpected best sheet: %+v", best)
	}
	if best.Confidence < 1 {
		t.Fatalf("expected full confidence, got %v", best.Confidence)
	}
}

func TestNormalizeColumnName(t *testing.T) {
	t.Parallel()

	if got := NormalizeColumnName(" 采购单价\n（元） "); got != "采购单价(元)" {
		t.Fatalf("unexpected: %q", got)
	}
}
