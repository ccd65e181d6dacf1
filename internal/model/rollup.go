package model

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PeriodKind 累计周期类型
type PeriodKind string

const (
	PeriodMonthly PeriodKind = "monthly"
	PeriodYearly  PeriodKind = "yearly"
)

// RollupBucket 某个周期（YYYY-MM / YYYY）的累计数据
//
// ProductCount 取历次计算的最大商品种类数，而非求和或并集。
type RollupBucket struct {
	Period       string          `json:"period" db:"period"`
	TotalSales   decimal.Decimal `json:"totalSales" db:"total_sales"`
	TotalCost    decimal.Decimal `json:"totalCost" db:"total_cost"`
	TotalMargin  decimal.Decimal `json:"totalMargin" db:"total_margin"`
	MarginRate   decimal.Decimal `json:"marginRate" db:"margin_rate"`
	ProductCount int             `json:"productCount" db:"product_count"`
	Runs         int             `json:"runs" db:"runs"`
}

// Rollups 月度与年度累计
type Rollups struct {
	Monthly map[string]RollupBucket `json:"monthly"`
	Yearly  map[string]RollupBucket `json:"yearly"`
}

// NewRollups 创建空累计
func NewRollups() Rollups {
	return Rollups{
		Monthly: map[string]RollupBucket{},
		Yearly:  map[string]RollupBucket{},
	}
}

// Clone 深拷贝（bucket 为值类型，复制 map 即可）
func (r Rollups) Clone() Rollups {
	out := NewRollups()
	for k, v := range r.Monthly {
		out.Monthly[k] = v
	}
	for k, v := range r.Yearly {
		out.Yearly[k] = v
	}
	return out
}

// Buckets 返回指定类型的 bucket map
func (r Rollups) Buckets(kind PeriodKind) map[string]RollupBucket {
	if kind == PeriodYearly {
		return r.Yearly
	}
	return r.Monthly
}

// Sorted 按周期升序返回 bucket 列表
func (r Rollups) Sorted(kind PeriodKind) []RollupBucket {
	m := r.Buckets(kind)
	out := make([]RollupBucket, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

// IsEmpty 是否没有任何累计数据
func (r Rollups) IsEmpty() bool {
	return len(r.Monthly) == 0 && len(r.Yearly) == 0
}
