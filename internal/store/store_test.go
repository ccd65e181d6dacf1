package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marginanalyzer/internal/model"
)

func openBackends(t *testing.T) map[string]Backend {
	t.Helper()

	jb, err := Open(KindJSON, t.TempDir())
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	sb, err := Open(KindSQLite, t.TempDir())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		jb.Close()
		sb.Close()
	})
	return map[string]Backend{KindJSON: jb, KindSQLite: sb}
}

func TestBackend_HistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2025, 1, 2, 8, 30, 0, 0, time.UTC)
	want := []model.PurchaseRecord{
		{ProductCode: "SP001", ProductName: "商品A", Price: decimal.RequireFromString("60.00"), RecordedAt: ts},
		{ProductCode: "SP002", ProductName: "", Price: decimal.RequireFromString("12.345"), RecordedAt: ts.Add(time.Hour)},
	}

	for name, b := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			empty, err := b.LoadHistory(ctx)
			if err != nil || len(empty) != 0 {
				t.Fatalf("expected empty history, got %v, %v", empty, err)
			}

			if err := b.SaveHistory(ctx, want); err != nil {
				t.Fatalf("SaveHistory: %v", err)
			}
			got, err := b.LoadHistory(ctx)
			if err != nil {
				t.Fatalf("LoadHistory: %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("len=%d", len(got))
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("round trip changed records:\n got %+v\nwant %+v", got, want)
			}
			if got[0].Price.Exponent() != -2 {
				t.Fatalf("price scale lost: %s exp=%d", got[0].Price, got[0].Price.Exponent())
			}

			if err := b.ClearHistory(ctx); err != nil {
				t.Fatalf("ClearHistory: %v", err)
			}
			got, _ = b.LoadHistory(ctx)
			if len(got) != 0 {
				t.Fatalf("expected cleared history, got %d", len(got))
			}
		})
	}
}

func TestBackend_RollupsRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := model.NewRollups()
	r.Monthly["2025-01"] = model.RollupBucket{
		Period:       "2025-01",
		TotalSales:   decimal.RequireFromString("1000.00"),
		TotalCost:    decimal.RequireFromString("600.00"),
		TotalMargin:  decimal.RequireFromString("400.00"),
		MarginRate:   decimal.RequireFromString("40.00"),
		ProductCount: 3,
		Runs:         2,
	}
	r.Yearly["2025"] = r.Monthly["2025-01"]
	y := r.Yearly["2025"]
	y.Period = "2025"
	r.Yearly["2025"] = y

	for name, b := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.SaveRollups(ctx, r); err != nil {
				t.Fatalf("SaveRollups: %v", err)
			}
			got, err := b.LoadRollups(ctx)
			if err != nil {
				t.Fatalf("LoadRollups: %v", err)
			}
			m, ok := got.Monthly["2025-01"]
			if !ok {
				t.Fatalf("monthly bucket missing: %+v", got)
			}
			if !m.TotalSales.Equal(decimal.NewFromInt(1000)) || !m.MarginRate.Equal(decimal.NewFromInt(40)) ||
				m.ProductCount != 3 || m.Runs != 2 {
				t.Fatalf("unexpected bucket: %+v", m)
			}
			if !reflect.DeepEqual(got, r) {
				t.Fatalf("round trip changed rollups:\n got %+v\nwant %+v", got, r)
			}

			if err := b.ClearRollups(ctx); err != nil {
				t.Fatalf("ClearRollups: %v", err)
			}
			got, _ = b.LoadRollups(ctx)
			if !got.IsEmpty() {
				t.Fatalf("expected empty rollups")
			}
		})
	}
}

func TestBackend_RunLogsCapped(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, b := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < MaxRunLogs+5; i++ {
				err := b.AppendRunLog(ctx, model.RunLog{
					ID:         fmt.Sprintf("run-%02d", i),
					StartedAt:  base.Add(time.Duration(i) * time.Minute),
					FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
					TotalSales: decimal.NewFromInt(int64(i)),
					Status:     model.RunSucceeded,
				})
				if err != nil {
					t.Fatalf("AppendRunLog: %v", err)
				}
			}
			logs, err := b.RunLogs(ctx, 0)
			if err != nil {
				t.Fatalf("RunLogs: %v", err)
			}
			if len(logs) != MaxRunLogs {
				t.Fatalf("len=%d", len(logs))
			}
			if logs[0].ID != fmt.Sprintf("run-%02d", MaxRunLogs+4) {
				t.Fatalf("newest first expected, got %s", logs[0].ID)
			}
			limited, _ := b.RunLogs(ctx, 3)
			if len(limited) != 3 {
				t.Fatalf("limit ignored: %d", len(limited))
			}
		})
	}
}

func TestJSONBackend_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	b, err := NewJSONBackend(dir)
	if err != nil {
		t.Fatalf("NewJSONBackend: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, historyFile), []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = b.LoadHistory(context.Background())
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestJSONBackend_AtomicWriteLeavesNoTmp(t *testing.T) {
	dir := t.TempDir()
	b, _ := NewJSONBackend(dir)
	if err := b.SaveRollups(context.Background(), model.NewRollups()); err != nil {
		t.Fatalf("SaveRollups: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, rollupsFile+".tmp")); !os.IsNotExist(err) {
		t.Fatalf("tmp file should be renamed away, err=%v", err)
	}
}

func TestOpen_UnknownKind(t *testing.T) {
	if _, err := Open("mongo", t.TempDir()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestEncodeDecimal_KeepsScale(t *testing.T) {
	cases := map[string]string{
		"1000.00": "1000.00",
		"12.345":  "12.345",
		"60":      "60",
		"-0.50":   "-0.50",
	}
	for in, want := range cases {
		d := decimal.RequireFromString(in)
		got := encodeDecimal(d)
		if got != want {
			t.Fatalf("encodeDecimal(%s)=%s want %s", in, got, want)
		}
		back, err := decodeDecimal("v", got)
		if err != nil || back.Exponent() != d.Exponent() || !back.Equal(d) {
			t.Fatalf("decode %s: %s exp=%d err=%v", got, back, back.Exponent(), err)
		}
	}
}

func TestJSONBackend_CorruptDecimal(t *testing.T) {
	dir := t.TempDir()
	b, _ := NewJSONBackend(dir)
	doc := `{"records":[{"productCode":"SP001","price":"abc","recordedAt":"2025-01-02T00:00:00Z"}]}`
	if err := os.WriteFile(filepath.Join(dir, historyFile), []byte(doc), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := b.LoadHistory(context.Background()); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
