package store

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"marginanalyzer/internal/model"
)

// encodeDecimal 按原有小数位写出（"1000.00" 不会变成 "1000"），读回后 scale 不变
func encodeDecimal(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

func decodeDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s %q: %w", field, s, err)
	}
	return d, nil
}

// purchaseRow 历史采购价的持久化形式，JSON 文件与 SQLite 共用
type purchaseRow struct {
	ProductCode string    `json:"productCode" db:"product_code"`
	ProductName string    `json:"productName" db:"product_name"`
	Price       string    `json:"price" db:"price"`
	RecordedAt  time.Time `json:"recordedAt" db:"recorded_at"`
}

func toPurchaseRows(records []model.PurchaseRecord) []purchaseRow {
	out := make([]purchaseRow, 0, len(records))
	for _, r := range records {
		out = append(out, purchaseRow{
			ProductCode: r.ProductCode,
			ProductName: r.ProductName,
			Price:       encodeDecimal(r.Price),
			RecordedAt:  r.RecordedAt.UTC(),
		})
	}
	return out
}

func fromPurchaseRows(rows []purchaseRow) ([]model.PurchaseRecord, error) {
	out := make([]model.PurchaseRecord, 0, len(rows))
	for _, r := range rows {
		price, err := decodeDecimal("price", r.Price)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.ProductCode, err)
		}
		out = append(out, model.PurchaseRecord{
			ProductCode: r.ProductCode,
			ProductName: r.ProductName,
			Price:       price,
			RecordedAt:  r.RecordedAt.UTC(),
		})
	}
	return out, nil
}

// bucketRow 累计 bucket 的持久化形式
type bucketRow struct {
	Kind         model.PeriodKind `json:"-" db:"kind"`
	Period       string           `json:"period" db:"period"`
	TotalSales   string           `json:"totalSales" db:"total_sales"`
	TotalCost    string           `json:"totalCost" db:"total_cost"`
	TotalMargin  string           `json:"totalMargin" db:"total_margin"`
	MarginRate   string           `json:"marginRate" db:"margin_rate"`
	ProductCount int              `json:"productCount" db:"product_count"`
	Runs         int              `json:"runs" db:"runs"`
}

func toBucketRow(kind model.PeriodKind, b model.RollupBucket) bucketRow {
	return bucketRow{
		Kind:         kind,
		Period:       b.Period,
		TotalSales:   encodeDecimal(b.TotalSales),
		TotalCost:    encodeDecimal(b.TotalCost),
		TotalMargin:  encodeDecimal(b.TotalMargin),
		MarginRate:   encodeDecimal(b.MarginRate),
		ProductCount: b.ProductCount,
		Runs:         b.Runs,
	}
}

func (r bucketRow) bucket() (model.RollupBucket, error) {
	b := model.RollupBucket{Period: r.Period, ProductCount: r.ProductCount, Runs: r.Runs}
	var err error
	if b.TotalSales, err = decodeDecimal("total_sales", r.TotalSales); err != nil {
		return b, err
	}
	if b.TotalCost, err = decodeDecimal("total_cost", r.TotalCost); err != nil {
		return b, err
	}
	if b.TotalMargin, err = decodeDecimal("total_margin", r.TotalMargin); err != nil {
		return b, err
	}
	if b.MarginRate, err = decodeDecimal("margin_rate", r.MarginRate); err != nil {
		return b, err
	}
	return b, nil
}

// rollupsDoc JSON 文件中的累计数据
type rollupsDoc struct {
	Monthly map[string]bucketRow `json:"monthly"`
	Yearly  map[string]bucketRow `json:"yearly"`
}

func toRollupsDoc(r model.Rollups) rollupsDoc {
	doc := rollupsDoc{Monthly: map[string]bucketRow{}, Yearly: map[string]bucketRow{}}
	for k, b := range r.Monthly {
		doc.Monthly[k] = toBucketRow(model.PeriodMonthly, b)
	}
	for k, b := range r.Yearly {
		doc.Yearly[k] = toBucketRow(model.PeriodYearly, b)
	}
	return doc
}

func (d rollupsDoc) rollups() (model.Rollups, error) {
	out := model.NewRollups()
	for k, row := range d.Monthly {
		b, err := row.bucket()
		if err != nil {
			return model.NewRollups(), fmt.Errorf("monthly %s: %w", k, err)
		}
		out.Monthly[k] = b
	}
	for k, row := range d.Yearly {
		b, err := row.bucket()
		if err != nil {
			return model.NewRollups(), fmt.Errorf("yearly %s: %w", k, err)
		}
		out.Yearly[k] = b
	}
	return out, nil
}
