package parser

import (
	"marginanalyzer/internal/model"
)

// SheetRecognitionResult Sheet 识别结果
type SheetRecognitionResult struct {
	SheetName  string  `json:"sheetName"`
	Schema     Schema  `json:"schema"`
	Confidence float64 `json:"confidence"` // 必要列命中比例 0-1
	Matched    int     `json:"matched"`    // 命中的全部字段数
}

// SheetRecognizer 在多 Sheet 工作簿中挑选最符合目标表结构的 Sheet
type SheetRecognizer struct {
	mapper *FieldMapper
}

// NewSheetRecognizer 创建识别器
func NewSheetRecognizer(mapper *FieldMapper) *SheetRecognizer {
	return &SheetRecognizer{mapper: mapper}
}

// Recognize 计算单个 Sheet 与表结构的匹配度
func (r *SheetRecognizer) Recognize(sheetName string, columnNames []string, schema Schema) SheetRecognitionResult {
	table := &model.Table{Sheet: sheetName, Columns: columnNames}
	normalized, report := r.mapper.Normalize(table, schema)

	required := RequiredFields[schema]
	hit := 0
	for _, f := range required {
		if normalized.HasColumn(f) {
			hit++
		}
	}

	result := SheetRecognitionResult{
		SheetName: sheetName,
		Schema:    schema,
		Matched:   len(report.Mapped),
	}
	if len(required) > 0 {
		result.Confidence = float64(hit) / float64(len(required))
	}

	// Sheet 名带有明显提示时略微加权，便于在同分时挑中
	if schema == SchemaSales && MatchPattern(sheetName, `(?i)销售|sales`) {
		result.Confidence += 0.01
	}
	if schema != SchemaSales && MatchPattern(sheetName, `(?i)采购|进货|purchase`) {
		result.Confidence += 0.01
	}
	return result
}

// Best 从多个 Sheet 中挑出匹配度最高者；同分取靠前的 Sheet
func (r *SheetRecognizer) Best(headers map[string][]string, order []string, schema Schema) (SheetRecognitionResult, bool) {
	var best SheetRecognitionResult
	found := false
	for _, name := range order {
		cols, ok := headers[name]
		if !ok {
			continue
		}
		res := r.Recognize(name, cols, schema)
		if !found || res.Confidence > best.Confidence ||
			(res.Confidence == best.Confidence && res.Matched > best.Matched) {
			best = res
			found = true
		}
	}
	return best, found
}
