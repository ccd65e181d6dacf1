// Package calculator 将销售明细与最新采购价关联，计算逐行毛利。
package calculator

import (
	"github.com/shopspring/decimal"

	"marginanalyzer/internal/model"
)

// MoneyPlaces 金额与毛利率保留的小数位
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Round 金额统一四舍五入到两位小数
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// Rate 毛利率（百分比）：销售额大于 0 时为 margin/sales×100，否则为 0
func Rate(margin, sales decimal.Decimal) decimal.Decimal {
	if !sales.IsPositive() {
		return decimal.Zero
	}
	return Round(margin.Div(sales).Mul(hundred))
}

// Calculate 对每一行销售记录按商品编码左关联采购价。
// 找不到采购价的商品成本记 0（毛利率 100%），不会丢弃任何一行。
func Calculate(sales []model.SalesRecord, prices map[string]decimal.Decimal) []model.CalculatedLine {
	lines := make([]model.CalculatedLine, 0, len(sales))
	for _, s := range sales {
		lines = append(lines, Line(s, prices))
	}
	return lines
}

// Line 计算单行
func Line(s model.SalesRecord, prices map[string]decimal.Decimal) model.CalculatedLine {
	price, found := prices[s.ProductCode]
	if !found {
		price = decimal.Zero
	}
	qty := decimal.NewFromInt(s.Quantity)

	saleAmount := Round(qty.Mul(s.UnitPrice))
	cost := Round(qty.Mul(price))
	margin := saleAmount.Sub(cost)

	return model.CalculatedLine{
		SalesRecord:   s,
		PurchasePrice: price,
		PriceFound:    found,
		SaleAmount:    saleAmount,
		PurchaseCost:  cost,
		Margin:        margin,
		MarginRate:    Rate(margin, saleAmount),
	}
}

// Missing 返回没有采购价的商品编码（去重，按出现顺序）
func Missing(lines []model.CalculatedLine) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lines {
		if l.PriceFound || l.ProductCode == "" || seen[l.ProductCode] {
			continue
		}
		seen[l.ProductCode] = true
		out = append(out, l.ProductCode)
	}
	return out
}
