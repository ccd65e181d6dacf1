package parser

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed synonyms.yaml
var defaultSynonymsYAML []byte

// SynonymTable canonical 字段同义词表（按表结构区分，字段顺序即输出顺序）
type SynonymTable map[Schema][]FieldSpec

// DefaultSynonyms 返回内置同义词表
func DefaultSynonyms() SynonymTable {
	t, err := ParseSynonyms(defaultSynonymsYAML)
	if err != nil {
		panic(fmt.Sprintf("内置同义词表损坏: %v", err))
	}
	return t
}

// ParseSynonyms 解析 YAML 同义词表
func ParseSynonyms(data []byte) (SynonymTable, error) {
	var t SynonymTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse synonyms: %w", err)
	}
	for schema, specs := range t {
		for _, s := range specs {
			if s.Field == "" {
				return nil, fmt.Errorf("schema %s: field is required", schema)
			}
		}
	}
	return t, nil
}

// LoadSynonyms 读取外部同义词表，文件不存在时使用内置表。
// 外部表按 schema 覆盖内置表，未出现的 schema 保持内置定义。
func LoadSynonyms(path string) (SynonymTable, error) {
	base := DefaultSynonyms()
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return base, nil
		}
		return nil, err
	}
	override, err := ParseSynonyms(data)
	if err != nil {
		return nil, err
	}
	for schema, specs := range override {
		base[schema] = specs
	}
	return base, nil
}

// Spec 查找字段定义
func (t SynonymTable) Spec(schema Schema, field string) (FieldSpec, bool) {
	for _, s := range t[schema] {
		if s.Field == field {
			return s, true
		}
	}
	return FieldSpec{}, false
}

// Label 字段的展示名（未定义时返回字段名）
func (t SynonymTable) Label(schema Schema, field string) string {
	if s, ok := t.Spec(schema, field); ok && s.Label != "" {
		return s.Label
	}
	return field
}
