package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"marginanalyzer/internal/exporter"
	"marginanalyzer/internal/history"
	"marginanalyzer/internal/model"
	"marginanalyzer/internal/parser"
)

// CheckReport 数据格式检查结果
type CheckReport struct {
	File     string               `json:"file"`
	Schema   parser.Schema        `json:"schema"`
	Sheet    string               `json:"sheet"`
	Rows     int                  `json:"rows"`
	Mapping  parser.MappingReport `json:"mapping"`
	Missing  []string             `json:"missing,omitempty"`
	DataErr  string               `json:"dataError,omitempty"`
	OK       bool                 `json:"ok"`
	Columns  []string             `json:"columns"`
	Skipped  []int                `json:"skippedRows,omitempty"`
	Products int                  `json:"products"`
}

// Check 检查文件能否作为指定表结构使用，不写任何结果。
// 缺列与数据错误写入报告；只有文件无法读取时返回 error。
func (r *Runner) Check(path string, schema parser.Schema) (*CheckReport, error) {
	raw, err := r.reader.ReadFile(path, schema)
	if err != nil {
		return nil, err
	}
	mapper := r.reader.Mapper()
	table, mapping := mapper.Normalize(raw, schema)
	if schema == parser.SchemaSales {
		table, _ = mapper.InferSaleDate(table)
	}

	rep := &CheckReport{
		File:    filepath.Base(path),
		Schema:  schema,
		Sheet:   table.Sheet,
		Rows:    table.DataRowCount(),
		Mapping: mapping,
		Columns: table.Columns,
	}

	if err := mapper.Require(table, schema); err != nil {
		var verr *parser.ValidationError
		if errors.As(err, &verr) {
			rep.Missing = verr.Missing
			return rep, nil
		}
		return nil, err
	}

	codes := map[string]struct{}{}
	switch schema {
	case parser.SchemaSales:
		sales, err := r.reader.ParseSales(table)
		if err != nil {
			rep.DataErr = err.Error()
			return rep, nil
		}
		for _, s := range sales {
			if s.ProductCode != "" {
				codes[s.ProductCode] = struct{}{}
			}
		}
	default:
		records, skipped, err := r.reader.ParsePurchases(table, schema, schema == parser.SchemaPurchaseHistory)
		if err != nil {
			rep.DataErr = err.Error()
			return rep, nil
		}
		rep.Skipped = skipped
		for _, p := range records {
			codes[p.ProductCode] = struct{}{}
		}
	}
	rep.Products = len(codes)
	rep.OK = true
	return rep, nil
}

// LoadHistoryFile 手动导入历史采购数据：替换历史库并立即保存
func (r *Runner) LoadHistoryFile(ctx context.Context, path string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	err := stage(ctx, "history.load", func(ctx context.Context) error {
		var err error
		n, err = r.loadHistoryFile(ctx, path)
		return err
	})
	return n, err
}

func (r *Runner) loadHistoryFile(ctx context.Context, path string) (int, error) {
	table, _, err := r.reader.Load(path, parser.SchemaPurchaseHistory)
	if err != nil {
		return 0, err
	}
	records, _, err := r.reader.ParsePurchases(table, parser.SchemaPurchaseHistory, true)
	if err != nil {
		return 0, err
	}
	n, err := r.history.Seed(records)
	if err != nil {
		return 0, err
	}
	if !r.history.Remember() {
		r.logger.Info("history loaded in memory only", zap.Int("records", n))
		return n, nil
	}
	if err := r.history.Persist(ctx); err != nil {
		return n, err
	}
	r.logger.Info("history loaded", zap.String("file", filepath.Base(path)), zap.Int("records", n))
	return n, nil
}

// MergeHistoryFile 将最新采购数据并入历史库（不计算）。保存失败记为降级
func (r *Runner) MergeHistoryFile(ctx context.Context, path string) (history.MergeResult, []PersistFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, _, err := r.reader.Load(path, parser.SchemaPurchaseLatest)
	if err != nil {
		return history.MergeResult{}, nil, err
	}
	records, _, err := r.reader.ParsePurchases(table, parser.SchemaPurchaseLatest, false)
	if err != nil {
		return history.MergeResult{}, nil, err
	}

	res := r.history.Merge(records)
	var failures []PersistFailure
	if err := r.history.Persist(ctx); err != nil {
		r.logger.Warn("persist failed, result kept", zap.String("target", TargetHistory), zap.Error(err))
		failures = append(failures, PersistFailure{Target: TargetHistory, Err: err})
	}
	return res, failures, nil
}

// ExportHistory 导出历史采购库到 path
func (r *Runner) ExportHistory(path string) (int, error) {
	records := r.history.Records()
	f, err := exporter.ExportHistory(records)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return 0, fmt.Errorf("save history export: %w", err)
	}
	return len(records), nil
}

// ClearHistory 清空历史采购库
func (r *Runner) ClearHistory(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.Clear(ctx)
}

// HistoryRecords 按关键字查询历史库
func (r *Runner) HistoryRecords(keyword string) []model.PurchaseRecord {
	return r.history.Search(keyword)
}
