package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesRecord 销售明细行（读取后不可变）
type SalesRecord struct {
	RowNo             int             `json:"rowNo"`
	ProductCode       string          `json:"productCode"`
	ProductName       string          `json:"productName"`
	StoreName         string          `json:"storeName"`
	PrimaryCategory   string          `json:"primaryCategory"`
	SecondaryCategory string          `json:"secondaryCategory"`
	Quantity          int64           `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	SaleDate          time.Time       `json:"saleDate"`
}

// HasSaleDate 是否带有有效销售日期
func (r SalesRecord) HasSaleDate() bool {
	return !r.SaleDate.IsZero()
}

// PurchaseRecord 采购价记录
type PurchaseRecord struct {
	ProductCode string          `json:"productCode" db:"product_code"`
	ProductName string          `json:"productName" db:"product_name"`
	Price       decimal.Decimal `json:"price" db:"price"`
	RecordedAt  time.Time       `json:"recordedAt" db:"recorded_at"`
}

// CalculatedLine 计算后的毛利明细行
type CalculatedLine struct {
	SalesRecord
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	PriceFound    bool            `json:"priceFound"`
	SaleAmount    decimal.Decimal `json:"saleAmount"`
	PurchaseCost  decimal.Decimal `json:"purchaseCost"`
	Margin        decimal.Decimal `json:"margin"`
	MarginRate    decimal.Decimal `json:"marginRate"`
}
