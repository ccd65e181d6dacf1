package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// 模板类型
const (
	TemplateSales    = "sales"
	TemplatePurchase = "purchase"
)

// TemplateFileName 模板文件名
func TemplateFileName(kind string) (string, error) {
	switch kind {
	case TemplateSales:
		return "销售数据模板.xlsx", nil
	case TemplatePurchase:
		return "采购数据模板.xlsx", nil
	default:
		return "", fmt.Errorf("unknown template kind: %s", kind)
	}
}

// Template 生成示例输入模板
func Template(kind string, now time.Time) (*excelize.File, error) {
	var cols []column
	var rows [][]interface{}
	switch kind {
	case TemplateSales:
		cols = []column{
			{"商品编码", colText}, {"商品名称", colText}, {"门店名称", colText},
			{"一级分类", colText}, {"二级分类", colText}, {"订货数量", colInt},
			{"商品单价", colMoney}, {"销售日期", colDate},
		}
		rows = [][]interface{}{
			{"SP001", "商品A", "门店1", "分类1", "子类1", 10, decimal.NewFromInt(100), now},
			{"SP002", "商品B", "门店1", "分类1", "子类2", 20, decimal.NewFromInt(50), now},
			{"SP003", "商品C", "门店2", "分类2", "子类1", 15, decimal.NewFromInt(80), now},
		}
	case TemplatePurchase:
		cols = []column{
			{"商品编码", colText}, {"商品名称", colText}, {"采购单价", colMoney}, {"建单时间", colDate},
		}
		rows = [][]interface{}{
			{"SP001", "商品A", decimal.NewFromInt(60), now},
			{"SP002", "商品B", decimal.NewFromInt(30), now},
			{"SP003", "商品C", decimal.NewFromInt(50), now},
		}
	default:
		return nil, fmt.Errorf("unknown template kind: %s", kind)
	}

	f := excelize.NewFile()
	st, err := newStyles(f, "yyyy-mm-dd hh:mm:ss")
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeSheet(f, st, "Sheet1", cols, rows); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// WriteTemplates 在 dir 下生成销售、采购两个模板，返回文件路径
func WriteTemplates(dir string, now time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create template dir: %w", err)
	}
	var out []string
	for _, kind := range []string{TemplateSales, TemplatePurchase} {
		name, _ := TemplateFileName(kind)
		f, err := Template(kind, now)
		if err != nil {
			return out, err
		}
		path := filepath.Join(dir, name)
		err = f.SaveAs(path)
		_ = f.Close()
		if err != nil {
			return out, fmt.Errorf("save template %s: %w", name, err)
		}
		out = append(out, path)
	}
	return out, nil
}
