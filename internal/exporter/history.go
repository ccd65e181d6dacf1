package exporter

import (
	"github.com/xuri/excelize/v2"

	"marginanalyzer/internal/model"
)

// SheetHistory 历史采购数据导出 Sheet
const SheetHistory = "历史采购数据"

// ExportHistory 导出历史采购库
func ExportHistory(records []model.PurchaseRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	st, err := newStyles(f, "yyyy-mm-dd hh:mm:ss")
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.SetSheetName("Sheet1", SheetHistory); err != nil {
		_ = f.Close()
		return nil, err
	}

	cols := []column{
		{"商品编码", colText}, {"商品名称", colText}, {"采购单价", colMoney}, {"建单时间", colDate},
	}
	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		rows = append(rows, []interface{}{r.ProductCode, r.ProductName, r.Price, r.RecordedAt})
	}
	if err := writeSheet(f, st, SheetHistory, cols, rows); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}
