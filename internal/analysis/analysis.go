// Package analysis 基于毛利明细生成报表所需的各类汇总。
package analysis

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"marginanalyzer/internal/calculator"
	"marginanalyzer/internal/model"
	"marginanalyzer/internal/rollup"
)

// DefaultTopN 毛利排行默认条数
const DefaultTopN = 20

var hundred = decimal.NewFromInt(100)

// Options 分析参数
type Options struct {
	Type    Type
	Date    time.Time     // 数据日期（最新销售日期）
	TopN    int           // <=0 时使用 DefaultTopN
	Rollups model.Rollups // 月度 / 年度口径从累计中取总额
}

// Analyze 生成全部分析结果
func Analyze(lines []model.CalculatedLine, opts Options) Report {
	if opts.Type == "" {
		opts.Type = Daily
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	totals := rollup.Totals(lines)
	return Report{
		Date:       opts.Date,
		Type:       opts.Type,
		Overall:    overall(lines, totals, opts),
		Stores:     Stores(lines),
		Categories: Categories(lines),
		Histogram:  Histogram(lines),
		Top:        Top(lines, topN),
		Efficiency: StoreEfficiency(lines, totals.Margin),
		Daily:      DailyTrend(lines),
	}
}

func overall(lines []model.CalculatedLine, totals rollup.PeriodTotals, opts Options) Overall {
	o := Overall{
		DataDate:     opts.Date.Format("2006年01月02日"),
		AnalysisType: opts.Type,
		TypeLabel:    opts.Type.Label(),
		Cycle:        opts.Type.Cycle(),
		TotalSales:   totals.Sales,
		TotalCost:    totals.Cost,
		TotalMargin:  totals.Margin,
		ProductKinds: totals.Products,
		Records:      len(lines),
	}

	var bucket model.RollupBucket
	var found bool
	switch opts.Type {
	case Monthly:
		key := rollup.MonthKey(opts.Date)
		bucket, found = opts.Rollups.Monthly[key]
		if found {
			o.DataDate = key + "月度累计"
		}
	case Yearly:
		key := rollup.YearKey(opts.Date)
		bucket, found = opts.Rollups.Yearly[key]
		if found {
			o.DataDate = key + "年度累计"
		}
	}
	if found {
		o.TotalSales = bucket.TotalSales
		o.TotalCost = bucket.TotalCost
		o.TotalMargin = bucket.TotalMargin
	}
	o.MarginRate = calculator.Rate(o.TotalMargin, o.TotalSales)

	stores := make(map[string]struct{})
	rates := make([]decimal.Decimal, 0, len(lines))
	for _, l := range lines {
		if l.StoreName != "" {
			stores[l.StoreName] = struct{}{}
		}
		rates = append(rates, l.MarginRate)
	}
	o.StoreCount = len(stores)
	o.MeanMarginRate = mean(rates)
	o.MedianMarginRate = median(rates)
	return o
}

type groupAcc struct {
	Group
	codes map[string]struct{}
}

func groupBy(lines []model.CalculatedLine, key func(model.CalculatedLine) string) []*groupAcc {
	idx := make(map[string]*groupAcc)
	var out []*groupAcc
	for _, l := range lines {
		k := key(l)
		if k == "" {
			continue
		}
		g, ok := idx[k]
		if !ok {
			g = &groupAcc{
				Group: Group{Name: k, Sales: decimal.Zero, Cost: decimal.Zero, Margin: decimal.Zero},
				codes: make(map[string]struct{}),
			}
			idx[k] = g
			out = append(out, g)
		}
		g.Sales = g.Sales.Add(l.SaleAmount)
		g.Cost = g.Cost.Add(l.PurchaseCost)
		g.Margin = g.Margin.Add(l.Margin)
		g.Quantity += l.Quantity
		if l.ProductCode != "" {
			g.codes[l.ProductCode] = struct{}{}
		}
	}
	for _, g := range out {
		g.ProductKinds = len(g.codes)
		g.MarginRate = calculator.Rate(g.Margin, g.Sales)
	}
	return out
}

func byMarginDesc(accs []*groupAcc) []Group {
	sort.SliceStable(accs, func(i, j int) bool { return accs[i].Margin.GreaterThan(accs[j].Margin) })
	out := make([]Group, len(accs))
	for i, g := range accs {
		out[i] = g.Group
	}
	return out
}

// Stores 按门店汇总，按毛利降序；没有门店信息时返回 nil
func Stores(lines []model.CalculatedLine) []Group {
	accs := groupBy(lines, func(l model.CalculatedLine) string { return l.StoreName })
	if len(accs) == 0 {
		return nil
	}
	return byMarginDesc(accs)
}

// Categories 按一级分类汇总，按毛利降序
func Categories(lines []model.CalculatedLine) []Group {
	accs := groupBy(lines, func(l model.CalculatedLine) string { return l.PrimaryCategory })
	if len(accs) == 0 {
		return nil
	}
	return byMarginDesc(accs)
}

type binSpec struct {
	label string
	upper decimal.Decimal // 右闭区间上界
	open  bool            // 无上界
}

var bins = []binSpec{
	{label: "亏损", upper: decimal.Zero},
	{label: "0-10%", upper: decimal.NewFromInt(10)},
	{label: "10-20%", upper: decimal.NewFromInt(20)},
	{label: "20-30%", upper: decimal.NewFromInt(30)},
	{label: "30-50%", upper: decimal.NewFromInt(50)},
	{label: "50%以上", open: true},
}

// BinLabel 毛利率所在区间：(-∞,0] (0,10] (10,20] (20,30] (30,50] (50,∞)
func BinLabel(rate decimal.Decimal) string {
	for _, b := range bins {
		if b.open || rate.LessThanOrEqual(b.upper) {
			return b.label
		}
	}
	return bins[len(bins)-1].label
}

// Histogram 毛利率分布，始终返回全部区间
func Histogram(lines []model.CalculatedLine) []Bin {
	counts := make(map[string]int, len(bins))
	for _, l := range lines {
		counts[BinLabel(l.MarginRate)]++
	}
	out := make([]Bin, 0, len(bins))
	for _, b := range bins {
		bin := Bin{Label: b.label, Count: counts[b.label], Share: decimal.Zero}
		if len(lines) > 0 {
			bin.Share = calculator.Round(decimal.NewFromInt(int64(bin.Count)).Div(decimal.NewFromInt(int64(len(lines)))).Mul(hundred))
		}
		out = append(out, bin)
	}
	return out
}

// Top 按毛利取前 n 行（毛利相同保持原顺序）
func Top(lines []model.CalculatedLine, n int) []TopItem {
	sorted := make([]model.CalculatedLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Margin.GreaterThan(sorted[j].Margin) })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]TopItem, len(sorted))
	for i, l := range sorted {
		out[i] = TopItem{
			Rank:        i + 1,
			ProductCode: l.ProductCode,
			ProductName: l.ProductName,
			Sales:       l.SaleAmount,
			Margin:      l.Margin,
			MarginRate:  l.MarginRate,
		}
	}
	return out
}

// StoreEfficiency 门店效率：坪效 = 销售额 / 商品种类，毛利贡献率 = 门店毛利 / 总毛利。按坪效降序
func StoreEfficiency(lines []model.CalculatedLine, totalMargin decimal.Decimal) []Efficiency {
	accs := groupBy(lines, func(l model.CalculatedLine) string { return l.StoreName })
	if len(accs) == 0 {
		return nil
	}
	out := make([]Efficiency, 0, len(accs))
	for _, g := range accs {
		e := Efficiency{
			Store:        g.Name,
			Sales:        g.Sales,
			Margin:       g.Margin,
			ProductKinds: g.ProductKinds,
			SalesPerKind: decimal.Zero,
			Contribution: decimal.Zero,
		}
		if g.ProductKinds > 0 {
			e.SalesPerKind = calculator.Round(g.Sales.Div(decimal.NewFromInt(int64(g.ProductKinds))))
		}
		if !totalMargin.IsZero() {
			e.Contribution = calculator.Round(g.Margin.Div(totalMargin).Mul(hundred))
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SalesPerKind.GreaterThan(out[j].SalesPerKind) })
	return out
}

// DailyTrend 按销售日期（天）汇总，日期升序；没有日期的行不计入
func DailyTrend(lines []model.CalculatedLine) []DailyPoint {
	idx := make(map[time.Time]*DailyPoint)
	for _, l := range lines {
		if !l.HasSaleDate() {
			continue
		}
		d := l.SaleDate
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
		p, ok := idx[day]
		if !ok {
			p = &DailyPoint{Date: day, Sales: decimal.Zero, Cost: decimal.Zero, Margin: decimal.Zero}
			idx[day] = p
		}
		p.Sales = p.Sales.Add(l.SaleAmount)
		p.Cost = p.Cost.Add(l.PurchaseCost)
		p.Margin = p.Margin.Add(l.Margin)
	}
	out := make([]DailyPoint, 0, len(idx))
	for _, p := range idx {
		p.MarginRate = calculator.Rate(p.Margin, p.Sales)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return calculator.Round(decimal.Sum(decimal.Zero, values...).Div(decimal.NewFromInt(int64(len(values)))))
}

func median(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return calculator.Round(sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2)))
}
