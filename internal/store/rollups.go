package store

import (
	"context"
	"fmt"

	"marginanalyzer/internal/model"
)

// LoadRollups 读取月度 / 年度累计
func (s *Store) LoadRollups(ctx context.Context) (model.Rollups, error) {
	var rows []bucketRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT kind, period, total_sales, total_cost, total_margin, margin_rate, product_count, runs
		FROM rollups
	`)
	if err != nil {
		return model.NewRollups(), fmt.Errorf("failed to load rollups: %w", err)
	}

	out := model.NewRollups()
	for _, r := range rows {
		b, err := r.bucket()
		if err != nil {
			return model.NewRollups(), fmt.Errorf("failed to load rollup %s %s: %w", r.Kind, r.Period, err)
		}
		switch r.Kind {
		case model.PeriodMonthly:
			out.Monthly[r.Period] = b
		case model.PeriodYearly:
			out.Yearly[r.Period] = b
		}
	}
	return out, nil
}

// SaveRollups 整体替换保存累计数据
func (s *Store) SaveRollups(ctx context.Context, rollups model.Rollups) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rollups`); err != nil {
		return fmt.Errorf("failed to clear rollups: %w", err)
	}

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO rollups (kind, period, total_sales, total_cost, total_margin, margin_rate, product_count, runs)
		VALUES (:kind, :period, :total_sales, :total_cost, :total_margin, :margin_rate, :product_count, :runs)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, kind := range []model.PeriodKind{model.PeriodMonthly, model.PeriodYearly} {
		for _, b := range rollups.Sorted(kind) {
			if _, err := stmt.ExecContext(ctx, toBucketRow(kind, b)); err != nil {
				return fmt.Errorf("failed to save rollup %s %s: %w", kind, b.Period, err)
			}
		}
	}
	return tx.Commit()
}

// ClearRollups 清空累计数据
func (s *Store) ClearRollups(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rollups`); err != nil {
		return fmt.Errorf("failed to clear rollups: %w", err)
	}
	return nil
}
