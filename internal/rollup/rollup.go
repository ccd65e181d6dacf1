// Package rollup 计算单次运行的周期合计，并累加到月度 / 年度累计中。
package rollup

import (
	"time"

	"github.com/shopspring/decimal"

	"marginanalyzer/internal/calculator"
	"marginanalyzer/internal/model"
)

// PeriodTotals 一次计算的合计
type PeriodTotals struct {
	Sales    decimal.Decimal `json:"sales"`
	Cost     decimal.Decimal `json:"cost"`
	Margin   decimal.Decimal `json:"margin"`
	Products int             `json:"products"` // 不同商品编码数
	Rows     int             `json:"rows"`
	Quantity int64           `json:"quantity"`
}

// MarginRate 合计毛利率
func (t PeriodTotals) MarginRate() decimal.Decimal {
	return calculator.Rate(t.Margin, t.Sales)
}

// Totals 汇总明细行
func Totals(lines []model.CalculatedLine) PeriodTotals {
	t := PeriodTotals{Sales: decimal.Zero, Cost: decimal.Zero, Margin: decimal.Zero}
	codes := make(map[string]struct{})
	for _, l := range lines {
		t.Sales = t.Sales.Add(l.SaleAmount)
		t.Cost = t.Cost.Add(l.PurchaseCost)
		t.Margin = t.Margin.Add(l.Margin)
		t.Quantity += l.Quantity
		// 空编码的行计入金额，但不算作一种商品
		if l.ProductCode != "" {
			codes[l.ProductCode] = struct{}{}
		}
	}
	t.Rows = len(lines)
	t.Products = len(codes)
	return t
}

// MonthKey 月度周期键 YYYY-MM
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// YearKey 年度周期键 YYYY
func YearKey(t time.Time) string {
	return t.Format("2006")
}

// PeriodOf 取明细中最新的销售日期；没有任何有效日期时使用 fallback
func PeriodOf(lines []model.CalculatedLine, fallback time.Time) time.Time {
	var latest time.Time
	for _, l := range lines {
		if l.HasSaleDate() && l.SaleDate.After(latest) {
			latest = l.SaleDate
		}
	}
	if latest.IsZero() {
		return fallback
	}
	return latest
}

// Accumulate 将本次合计累加到 at 所在的月度、年度 bucket，返回新的累计值（入参不被修改）。
// 金额累加，毛利率按累计值重算，商品数取历次最大值。
func Accumulate(r model.Rollups, lines []model.CalculatedLine, at time.Time) model.Rollups {
	out := r.Clone()
	totals := Totals(lines)
	out.Monthly[MonthKey(at)] = add(out.Monthly[MonthKey(at)], MonthKey(at), totals)
	out.Yearly[YearKey(at)] = add(out.Yearly[YearKey(at)], YearKey(at), totals)
	return out
}

func add(b model.RollupBucket, period string, t PeriodTotals) model.RollupBucket {
	b.Period = period
	b.TotalSales = b.TotalSales.Add(t.Sales)
	b.TotalCost = b.TotalCost.Add(t.Cost)
	b.TotalMargin = b.TotalMargin.Add(t.Margin)
	b.MarginRate = calculator.Rate(b.TotalMargin, b.TotalSales)
	if t.Products > b.ProductCount {
		b.ProductCount = t.Products
	}
	b.Runs++
	return b
}
