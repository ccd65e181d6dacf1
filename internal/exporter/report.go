package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"marginanalyzer/internal/analysis"
	"marginanalyzer/internal/model"
)

// 报表 Sheet 名
const (
	SheetDetail     = "详细数据"
	SheetOverall    = "总体情况"
	SheetStores     = "门店分析"
	SheetCategories = "分类分析"
	SheetHistogram  = "毛利率分布"
	SheetTop        = "TOP商品"
	SheetEfficiency = "效率分析"
	SheetDaily      = "每日趋势"
	SheetMonthly    = "月度累计数据"
	SheetYearly     = "年度累计数据"
	SheetSource     = "数据来源"
)

// Provenance 数据来源信息
type Provenance struct {
	SalesFile      string
	PurchaseFile   string
	HistoryLoaded  bool
	HistoryRecords int
	GeneratedAt    time.Time
}

// Report 生成报表所需的全部数据
type Report struct {
	Lines    []model.CalculatedLine
	Analysis analysis.Report
	Rollups  model.Rollups
	Source   Provenance
}

// ExportOptions 导出选项
type ExportOptions struct {
	DateFormat string // 日期单元格格式，如 yyyy-mm-dd
	Progress   ProgressFunc
}

// Export 生成毛利分析工作簿
func Export(r Report, opts ExportOptions) (*excelize.File, error) {
	f := excelize.NewFile()
	st, err := newStyles(f, opts.DateFormat)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.SetSheetName("Sheet1", SheetDetail); err != nil {
		_ = f.Close()
		return nil, err
	}

	steps := []struct {
		stage string
		fn    func() error
	}{
		{"写入详细数据", func() error { return writeDetail(f, st, r.Lines) }},
		{"写入总体情况", func() error { return writeOverall(f, st, r.Analysis.Overall) }},
		{"写入门店分析", func() error { return writeGroups(f, st, SheetStores, "门店名称", r.Analysis.Stores, true) }},
		{"写入分类分析", func() error { return writeGroups(f, st, SheetCategories, "一级分类", r.Analysis.Categories, false) }},
		{"写入毛利率分布", func() error { return writeHistogram(f, st, r.Analysis.Histogram) }},
		{"写入TOP商品", func() error { return writeTop(f, st, r.Analysis.Top) }},
		{"写入效率分析", func() error { return writeEfficiency(f, st, r.Analysis.Efficiency) }},
		{"写入每日趋势", func() error { return writeDaily(f, st, r.Analysis.Daily) }},
		{"写入汇总", func() error { return writePeriodSummary(f, st, r.Analysis) }},
		{"写入累计数据", func() error { return writeRollups(f, st, r.Rollups) }},
		{"写入数据来源", func() error { return writeSource(f, st, r) }},
	}
	for i, step := range steps {
		reportProgress(opts.Progress, i*100/len(steps), step.stage)
		if err := step.fn(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%s失败: %w", step.stage, err)
		}
	}
	reportProgress(opts.Progress, 100, "报表生成完成")

	f.SetActiveSheet(0)
	return f, nil
}

// Save 生成并保存到 path（父目录不存在时创建）
func Save(path string, r Report, opts ExportOptions) error {
	f, err := Export(r, opts)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func writeDetail(f *excelize.File, st *styles, lines []model.CalculatedLine) error {
	cols := []column{
		{"商品编码", colText}, {"商品名称", colText}, {"门店名称", colText},
		{"一级分类", colText}, {"二级分类", colText}, {"订货数量", colInt},
		{"商品单价（元）", colMoney}, {"销售金额（元）", colMoney}, {"采购单价（元）", colMoney},
		{"采购成本（元）", colMoney}, {"销售毛利（元）", colMoney}, {"毛利率", colRate},
		{"销售日期", colDate},
	}
	rows := make([][]interface{}, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []interface{}{
			l.ProductCode, l.ProductName, l.StoreName, l.PrimaryCategory, l.SecondaryCategory,
			l.Quantity, l.UnitPrice, l.SaleAmount, l.PurchasePrice, l.PurchaseCost, l.Margin,
			l.MarginRate, l.SaleDate,
		})
	}
	return writeSheet(f, st, SheetDetail, cols, rows)
}

func writeOverall(f *excelize.File, st *styles, o analysis.Overall) error {
	cols := []column{
		{"数据日期", colText}, {"分析类型", colText},
		{"总销售金额（元）", colMoney}, {"总采购成本（元）", colMoney}, {"总销售毛利（元）", colMoney},
		{"综合毛利率", colRate}, {"商品种类数", colInt}, {"门店数量", colInt}, {"总记录数", colInt},
		{"平均毛利率", colRate}, {"毛利率中位数", colRate}, {"分析周期", colText},
	}
	row := []interface{}{
		o.DataDate, o.TypeLabel, o.TotalSales, o.TotalCost, o.TotalMargin, o.MarginRate,
		o.ProductKinds, o.StoreCount, o.Records, o.MeanMarginRate, o.MedianMarginRate, o.Cycle,
	}
	return writeSheet(f, st, SheetOverall, cols, [][]interface{}{row})
}

func writeGroups(f *excelize.File, st *styles, sheet, nameTitle string, groups []analysis.Group, withQty bool) error {
	if len(groups) == 0 {
		return nil
	}
	cols := []column{
		{nameTitle, colText}, {"销售金额（元）", colMoney}, {"采购成本（元）", colMoney},
		{"销售毛利（元）", colMoney}, {"商品种类", colInt},
	}
	if withQty {
		cols = append(cols, column{"销售数量", colInt})
	}
	cols = append(cols, column{"毛利率", colRate})

	rows := make([][]interface{}, 0, len(groups))
	for _, g := range groups {
		row := []interface{}{g.Name, g.Sales, g.Cost, g.Margin, g.ProductKinds}
		if withQty {
			row = append(row, g.Quantity)
		}
		rows = append(rows, append(row, g.MarginRate))
	}
	return writeSheet(f, st, sheet, cols, rows)
}

func writeHistogram(f *excelize.File, st *styles, bins []analysis.Bin) error {
	cols := []column{{"毛利率区间", colText}, {"商品数量", colInt}, {"占比", colRate}}
	rows := make([][]interface{}, 0, len(bins))
	for _, b := range bins {
		rows = append(rows, []interface{}{b.Label, b.Count, b.Share})
	}
	return writeSheet(f, st, SheetHistogram, cols, rows)
}

func writeTop(f *excelize.File, st *styles, items []analysis.TopItem) error {
	cols := []column{
		{"排名", colInt}, {"商品编码", colText}, {"商品名称", colText},
		{"销售金额（元）", colMoney}, {"销售毛利（元）", colMoney}, {"毛利率", colRate},
	}
	rows := make([][]interface{}, 0, len(items))
	for _, it := range items {
		rows = append(rows, []interface{}{it.Rank, it.ProductCode, it.ProductName, it.Sales, it.Margin, it.MarginRate})
	}
	return writeSheet(f, st, SheetTop, cols, rows)
}

func writeEfficiency(f *excelize.File, st *styles, eff []analysis.Efficiency) error {
	if len(eff) == 0 {
		return nil
	}
	cols := []column{
		{"门店名称", colText}, {"销售金额（元）", colMoney}, {"销售毛利（元）", colMoney},
		{"商品种类", colInt}, {"坪效", colMoney}, {"毛利贡献率", colRate},
	}
	rows := make([][]interface{}, 0, len(eff))
	for _, e := range eff {
		rows = append(rows, []interface{}{e.Store, e.Sales, e.Margin, e.ProductKinds, e.SalesPerKind, e.Contribution})
	}
	return writeSheet(f, st, SheetEfficiency, cols, rows)
}

func writeDaily(f *excelize.File, st *styles, points []analysis.DailyPoint) error {
	if len(points) == 0 {
		return nil
	}
	cols := []column{
		{"销售日期", colDate}, {"销售金额（元）", colMoney}, {"采购成本（元）", colMoney},
		{"销售毛利（元）", colMoney}, {"毛利率", colRate},
	}
	rows := make([][]interface{}, 0, len(points))
	for _, p := range points {
		rows = append(rows, []interface{}{p.Date, p.Sales, p.Cost, p.Margin, p.MarginRate})
	}
	return writeSheet(f, st, SheetDaily, cols, rows)
}

func writePeriodSummary(f *excelize.File, st *styles, a analysis.Report) error {
	o := a.Overall
	cols := []column{{"项目", colText}, {"金额", colMoney}, {"说明", colText}}
	rows := [][]interface{}{
		{"销售金额（元）", o.TotalSales, "所有商品销售总额"},
		{"采购成本（元）", o.TotalCost, "所有商品采购成本"},
		{"销售毛利（元）", o.TotalMargin, "销售利润总额"},
		{"毛利率", pct(o.MarginRate), "综合利润率"},
	}
	return writeSheet(f, st, a.Type.SummarySheet(), cols, rows)
}

func writeRollups(f *excelize.File, st *styles, r model.Rollups) error {
	for _, spec := range []struct {
		kind  model.PeriodKind
		sheet string
		title string
	}{
		{model.PeriodMonthly, SheetMonthly, "月份"},
		{model.PeriodYearly, SheetYearly, "年份"},
	} {
		buckets := r.Sorted(spec.kind)
		if len(buckets) == 0 {
			continue
		}
		cols := []column{
			{spec.title, colText}, {"销售金额（元）", colMoney}, {"采购成本（元）", colMoney},
			{"销售毛利（元）", colMoney}, {"毛利率", colRate}, {"商品种类数", colInt}, {"计算次数", colInt},
		}
		rows := make([][]interface{}, 0, len(buckets))
		for _, b := range buckets {
			rows = append(rows, []interface{}{b.Period, b.TotalSales, b.TotalCost, b.TotalMargin, b.MarginRate, b.ProductCount, b.Runs})
		}
		if err := writeSheet(f, st, spec.sheet, cols, rows); err != nil {
			return err
		}
	}
	return nil
}

func writeSource(f *excelize.File, st *styles, r Report) error {
	history := "未加载"
	if r.Source.HistoryLoaded {
		history = fmt.Sprintf("%d条记录", r.Source.HistoryRecords)
	}
	typeLabel := "当日分析"
	if r.Analysis.Type == analysis.Monthly || r.Analysis.Type == analysis.Yearly {
		typeLabel = r.Analysis.Type.Label()
	}
	cols := []column{{"项目", colText}, {"内容", colText}}
	rows := [][]interface{}{
		{"销售数据源", orDefault(filepath.Base(r.Source.SalesFile), "未选择")},
		{"最新采购数据源", orDefault(filepath.Base(r.Source.PurchaseFile), "未选择")},
		{"历史采购数据", history},
		{"分析日期", r.Source.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"数据日期", r.Analysis.Date.Format("2006-01-02")},
		{"分析类型", typeLabel},
		{"明细行数", fmt.Sprintf("%d", len(r.Lines))},
		{"缺少采购价商品数", fmt.Sprintf("%d", countMissing(r.Lines))},
	}
	return writeSheet(f, st, SheetSource, cols, rows)
}

func countMissing(lines []model.CalculatedLine) int {
	codes := make(map[string]struct{})
	for _, l := range lines {
		if !l.PriceFound {
			codes[l.ProductCode] = struct{}{}
		}
	}
	return len(codes)
}

func orDefault(s, def string) string {
	if s == "" || s == "." || s == string(filepath.Separator) {
		return def
	}
	return s
}
