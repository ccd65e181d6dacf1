package rollup

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marginanalyzer/internal/calculator"
	"marginanalyzer/internal/model"
)

func lines(t *testing.T, rows ...model.SalesRecord) []model.CalculatedLine {
	t.Helper()
	prices := map[string]decimal.Decimal{
		"A": decimal.NewFromInt(6),
		"B": decimal.NewFromInt(3),
		"C": decimal.NewFromInt(1),
	}
	return calculator.Calculate(rows, prices)
}

func sale(code string, qty int64, price int64) model.SalesRecord {
	return model.SalesRecord{ProductCode: code, Quantity: qty, UnitPrice: decimal.NewFromInt(price)}
}

func TestTotals(t *testing.T) {
	ls := lines(t, sale("A", 10, 10), sale("A", 1, 10), sale("B", 2, 5))
	tot := Totals(ls)

	if !tot.Sales.Equal(decimal.NewFromInt(120)) || !tot.Cost.Equal(decimal.NewFromInt(72)) || !tot.Margin.Equal(decimal.NewFromInt(48)) {
		t.Fatalf("unexpected totals: %+v", tot)
	}
	if tot.Products != 2 || tot.Rows != 3 || tot.Quantity != 13 {
		t.Fatalf("unexpected counts: %+v", tot)
	}
	if !tot.MarginRate().Equal(decimal.NewFromInt(40)) {
		t.Fatalf("rate=%s", tot.MarginRate())
	}
}

func TestAccumulate_AdditiveWithMaxProductCount(t *testing.T) {
	at := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	runs := [][]model.CalculatedLine{
		lines(t, sale("A", 10, 10), sale("B", 1, 5), sale("C", 1, 2)),
		lines(t, sale("A", 1, 10)),
		lines(t, sale("B", 4, 5), sale("C", 3, 2)),
	}

	r := model.NewRollups()
	sum := PeriodTotals{Sales: decimal.Zero, Cost: decimal.Zero, Margin: decimal.Zero}
	for _, ls := range runs {
		r = Accumulate(r, ls, at)
		tot := Totals(ls)
		sum.Sales = sum.Sales.Add(tot.Sales)
		sum.Cost = sum.Cost.Add(tot.Cost)
		sum.Margin = sum.Margin.Add(tot.Margin)
	}

	for _, b := range []model.RollupBucket{r.Monthly["2025-01"], r.Yearly["2025"]} {
		if !b.TotalSales.Equal(sum.Sales) || !b.TotalCost.Equal(sum.Cost) || !b.TotalMargin.Equal(sum.Margin) {
			t.Fatalf("bucket %s not additive: %+v vs %+v", b.Period, b, sum)
		}
		// 三次运行的商品数分别为 3、1、2：取最大值 3，而不是求和 6
		if b.ProductCount != 3 {
			t.Fatalf("bucket %s product_count=%d want 3", b.Period, b.ProductCount)
		}
		if b.Runs != 3 {
			t.Fatalf("runs=%d", b.Runs)
		}
		if !b.MarginRate.Equal(calculator.Rate(sum.Margin, sum.Sales)) {
			t.Fatalf("rate=%s", b.MarginRate)
		}
	}
}

func TestAccumulate_MaxNotUnion(t *testing.T) {
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	r := Accumulate(model.NewRollups(), lines(t, sale("A", 1, 10), sale("B", 1, 10)), at)
	r = Accumulate(r, lines(t, sale("C", 1, 10)), at)

	// 两次商品集合不相交，并集为 3，但累计按最大值记为 2
	if got := r.Monthly["2025-02"].ProductCount; got != 2 {
		t.Fatalf("product_count=%d want 2", got)
	}
}

func TestAccumulate_DoesNotMutateInput(t *testing.T) {
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	base := Accumulate(model.NewRollups(), lines(t, sale("A", 1, 10)), at)
	before := base.Monthly["2025-03"]

	next := Accumulate(base, lines(t, sale("A", 1, 10)), at.AddDate(0, 1, 0))

	if base.Monthly["2025-03"] != before {
		t.Fatalf("input rollups mutated")
	}
	if len(next.Monthly) != 2 || len(next.Yearly) != 1 {
		t.Fatalf("expected new month bucket: %+v", next)
	}
	if next.Yearly["2025"].Runs != 2 {
		t.Fatalf("yearly runs=%d", next.Yearly["2025"].Runs)
	}
}

func TestAccumulate_ZeroSalesRate(t *testing.T) {
	at := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	r := Accumulate(model.NewRollups(), lines(t, sale("A", 0, 10)), at)
	if !r.Monthly["2025-04"].MarginRate.IsZero() {
		t.Fatalf("rate should be 0")
	}
}

func TestPeriodOf(t *testing.T) {
	fallback := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	ls := lines(t, sale("A", 1, 1), sale("B", 1, 1))
	if got := PeriodOf(ls, fallback); !got.Equal(fallback) {
		t.Fatalf("expected fallback, got %v", got)
	}
	ls[0].SaleDate = time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	ls[1].SaleDate = time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC)
	if got := PeriodOf(ls, fallback); got.Day() != 9 {
		t.Fatalf("expected latest date, got %v", got)
	}
}

func TestTotals_BlankCodeKeepsAmountsButNotProductCount(t *testing.T) {
	ls := lines(t, sale("A", 10, 10), sale("", 2, 5))
	tot := Totals(ls)

	if tot.Products != 1 || tot.Rows != 2 {
		t.Fatalf("unexpected counts: %+v", tot)
	}
	if !tot.Sales.Equal(decimal.NewFromInt(110)) {
		t.Fatalf("sales=%s", tot.Sales)
	}

	r := Accumulate(model.NewRollups(), ls, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	if got := r.Monthly["2025-01"].ProductCount; got != 1 {
		t.Fatalf("bucket product count=%d", got)
	}
	if missing := calculator.Missing(ls); len(missing) != 0 {
		t.Fatalf("missing=%v", missing)
	}
}
