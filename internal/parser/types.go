package parser

import (
	"fmt"
	"strings"
)

// Schema 目标表结构名称
type Schema string

const (
	SchemaSales           Schema = "sales"
	SchemaPurchaseLatest  Schema = "purchase_latest"
	SchemaPurchaseHistory Schema = "purchase_history"
)

// canonical 字段名
const (
	FieldProductCode       = "product_code"
	FieldProductName       = "product_name"
	FieldStoreName         = "store_name"
	FieldPrimaryCategory   = "primary_category"
	FieldSecondaryCategory = "secondary_category"
	FieldQuantity          = "quantity"
	FieldUnitPrice         = "unit_price"
	FieldSaleDate          = "sale_date"
	FieldPurchasePrice     = "purchase_price"
	FieldRecordedAt        = "recorded_at"
)

// RequiredFields 各表结构的必要列
var RequiredFields = map[Schema][]string{
	SchemaSales:           {FieldProductCode, FieldQuantity, FieldUnitPrice},
	SchemaPurchaseLatest:  {FieldProductCode, FieldPurchasePrice},
	SchemaPurchaseHistory: {FieldProductCode, FieldPurchasePrice, FieldRecordedAt},
}

// FieldSpec 单个 canonical 字段及其同义词（按优先级）
type FieldSpec struct {
	Field    string   `yaml:"field" json:"field"`
	Label    string   `yaml:"label" json:"label"`
	Synonyms []string `yaml:"synonyms" json:"synonyms"`
}

// FieldMapping 列映射结果
type FieldMapping struct {
	ColumnIndex int    `json:"columnIndex"` // 原表列索引
	ColumnName  string `json:"columnName"`  // 原表列名
	Field       string `json:"field"`       // canonical 字段
}

// MappingReport 规范化报告
type MappingReport struct {
	Schema   Schema         `json:"schema"`
	Mapped   []FieldMapping `json:"mapped"`
	Unmapped []string       `json:"unmapped"`
}

// ValidationError 必要列缺失
type ValidationError struct {
	Schema  Schema
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s 缺少必要列: %s", schemaTitle(e.Schema), strings.Join(e.Missing, ", "))
}

func schemaTitle(s Schema) string {
	switch s {
	case SchemaSales:
		return "销售数据"
	case SchemaPurchaseLatest:
		return "最新采购数据"
	case SchemaPurchaseHistory:
		return "历史采购数据"
	default:
		return string(s)
	}
}
