package parser

import (
	"sort"
	"strings"

	"marginanalyzer/internal/model"
)

// FieldMapper 字段映射器：按同义词表将任意表头映射到 canonical 字段
type FieldMapper struct {
	synonyms SynonymTable
}

// NewFieldMapper 创建字段映射器
func NewFieldMapper(synonyms SynonymTable) *FieldMapper {
	if synonyms == nil {
		synonyms = DefaultSynonyms()
	}
	return &FieldMapper{synonyms: synonyms}
}

// Synonyms 当前使用的同义词表
func (m *FieldMapper) Synonyms() SynonymTable {
	return m.synonyms
}

// Normalize 返回重命名后的表副本。
//
// 对每个尚未存在的 canonical 字段，按优先级扫描同义词（大小写、空白不敏感），
// 命中的第一列被重命名；同一原始列只会被一个字段占用。无法映射的字段不报错。
func (m *FieldMapper) Normalize(table *model.Table, schema Schema) (*model.Table, MappingReport) {
	out := table.Clone()
	report := MappingReport{Schema: schema}

	lookup := make(map[string]int, len(out.Columns))
	for i, col := range out.Columns {
		key := matchKey(col)
		if key == "" {
			continue
		}
		if _, ok := lookup[key]; !ok {
			lookup[key] = i
		}
	}

	consumed := make(map[int]bool)
	for _, syn := range m.synonyms[schema] {
		if idx := out.ColumnIndex(syn.Field); idx >= 0 {
			consumed[idx] = true
			report.Mapped = append(report.Mapped, FieldMapping{
				ColumnIndex: idx,
				ColumnName:  table.Columns[idx],
				Field:       syn.Field,
			})
		}
	}

	for _, syn := range m.synonyms[schema] {
		if out.HasColumn(syn.Field) {
			continue
		}
		mapped := false
		for _, name := range syn.Synonyms {
			idx, ok := lookup[matchKey(name)]
			if !ok || consumed[idx] {
				continue
			}
			consumed[idx] = true
			out.Columns[idx] = syn.Field
			report.Mapped = append(report.Mapped, FieldMapping{
				ColumnIndex: idx,
				ColumnName:  table.Columns[idx],
				Field:       syn.Field,
			})
			mapped = true
			break
		}
		if !mapped {
			report.Unmapped = append(report.Unmapped, syn.Field)
		}
	}

	sort.Slice(report.Mapped, func(i, j int) bool {
		return report.Mapped[i].ColumnIndex < report.Mapped[j].ColumnIndex
	})
	return out, report
}

// Require 校验必要列，缺失时返回 *ValidationError（列出全部缺失列）
func (m *FieldMapper) Require(table *model.Table, schema Schema, fields ...string) error {
	if len(fields) == 0 {
		fields = RequiredFields[schema]
	}
	var missing []string
	for _, f := range fields {
		if !table.HasColumn(f) {
			missing = append(missing, m.synonyms.Label(schema, f)+"("+f+")")
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Schema: schema, Missing: missing}
	}
	return nil
}

var dateHints = []string{"日期", "时间", "date"}

// InferSaleDate 销售表缺少销售日期列时，取第一个表头包含日期/时间/date 的列作为销售日期。
func (m *FieldMapper) InferSaleDate(table *model.Table) (*model.Table, bool) {
	if table.HasColumn(FieldSaleDate) {
		return table, false
	}
	canonical := make(map[string]bool)
	for _, syn := range m.synonyms[SchemaSales] {
		canonical[syn.Field] = true
	}
	for i, col := range table.Columns {
		if canonical[col] {
			continue
		}
		if ContainsAny(strings.ToLower(col), dateHints) {
			out := table.Clone()
			out.Columns[i] = FieldSaleDate
			return out, true
		}
	}
	return table, false
}

func matchKey(name string) string {
	return strings.ToLower(NormalizeColumnName(name))
}
