package analysis

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Type 分析口径
type Type string

const (
	Daily   Type = "daily"
	Monthly Type = "monthly"
	Yearly  Type = "yearly"
)

// ParseType 解析分析口径，空串按当日处理
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case "", Daily:
		return Daily, nil
	case Monthly, Yearly:
		return Type(s), nil
	default:
		return "", fmt.Errorf("unknown analysis type: %q", s)
	}
}

// Label 口径中文名
func (t Type) Label() string {
	switch t {
	case Monthly:
		return "月度累计"
	case Yearly:
		return "年度累计"
	default:
		return "当日"
	}
}

// Cycle 分析周期描述
func (t Type) Cycle() string {
	switch t {
	case Monthly:
		return "本月累计"
	case Yearly:
		return "本年累计"
	default:
		return "当日"
	}
}

// SummarySheet 汇总 Sheet 名
func (t Type) SummarySheet() string {
	if t == Daily || t == "" {
		return "当日汇总"
	}
	return t.Label()
}

// Overall 总体情况
type Overall struct {
	DataDate         string          `json:"dataDate"`
	AnalysisType     Type            `json:"analysisType"`
	TypeLabel        string          `json:"typeLabel"`
	Cycle            string          `json:"cycle"`
	TotalSales       decimal.Decimal `json:"totalSales"`
	TotalCost        decimal.Decimal `json:"totalCost"`
	TotalMargin      decimal.Decimal `json:"totalMargin"`
	MarginRate       decimal.Decimal `json:"marginRate"`
	ProductKinds     int             `json:"productKinds"`
	StoreCount       int             `json:"storeCount"`
	Records          int             `json:"records"`
	MeanMarginRate   decimal.Decimal `json:"meanMarginRate"`
	MedianMarginRate decimal.Decimal `json:"medianMarginRate"`
}

// Group 门店 / 分类汇总行
type Group struct {
	Name         string          `json:"name"`
	Sales        decimal.Decimal `json:"sales"`
	Cost         decimal.Decimal `json:"cost"`
	Margin       decimal.Decimal `json:"margin"`
	ProductKinds int             `json:"productKinds"`
	Quantity     int64           `json:"quantity"`
	MarginRate   decimal.Decimal `json:"marginRate"`
}

// Bin 毛利率分布区间
type Bin struct {
	Label string          `json:"label"`
	Count int             `json:"count"`
	Share decimal.Decimal `json:"share"` // 占比（%）
}

// TopItem 毛利排行
type TopItem struct {
	Rank        int             `json:"rank"`
	ProductCode string          `json:"productCode"`
	ProductName string          `json:"productName"`
	Sales       decimal.Decimal `json:"sales"`
	Margin      decimal.Decimal `json:"margin"`
	MarginRate  decimal.Decimal `json:"marginRate"`
}

// Efficiency 门店效率
type Efficiency struct {
	Store        string          `json:"store"`
	Sales        decimal.Decimal `json:"sales"`
	Margin       decimal.Decimal `json:"margin"`
	ProductKinds int             `json:"productKinds"`
	SalesPerKind decimal.Decimal `json:"salesPerKind"` // 坪效：销售额 / 商品种类
	Contribution decimal.Decimal `json:"contribution"` // 毛利贡献率（%）
}

// DailyPoint 每日趋势
type DailyPoint struct {
	Date       time.Time       `json:"date"`
	Sales      decimal.Decimal `json:"sales"`
	Cost       decimal.Decimal `json:"cost"`
	Margin     decimal.Decimal `json:"margin"`
	MarginRate decimal.Decimal `json:"marginRate"`
}

// Report 一次计算的全部分析结果
type Report struct {
	Date       time.Time    `json:"date"`
	Type       Type         `json:"type"`
	Overall    Overall      `json:"overall"`
	Stores     []Group      `json:"stores"`
	Categories []Group      `json:"categories"`
	Histogram  []Bin        `json:"histogram"`
	Top        []TopItem    `json:"top"`
	Efficiency []Efficiency `json:"efficiency"`
	Daily      []DailyPoint `json:"daily"`
}
