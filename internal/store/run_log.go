package store

import (
	"context"
	"fmt"

	"marginanalyzer/internal/model"
)

// AppendRunLog 追加运行记录，只保留最近 MaxRunLogs 条
func (s *Store) AppendRunLog(ctx context.Context, log model.RunLog) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO run_logs (
			id, started_at, finished_at, sales_file, purchase_file, analysis_type, period,
			row_count, products, total_sales, total_cost, total_margin, report_path, status, message
		) VALUES (
			:id, :started_at, :finished_at, :sales_file, :purchase_file, :analysis_type, :period,
			:row_count, :products, :total_sales, :total_cost, :total_margin, :report_path, :status, :message
		)
	`, log)
	if err != nil {
		return fmt.Errorf("failed to create run log: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM run_logs WHERE id NOT IN (
			SELECT id FROM run_logs ORDER BY started_at DESC LIMIT ?
		)
	`, MaxRunLogs)
	if err != nil {
		return fmt.Errorf("failed to trim run logs: %w", err)
	}
	return nil
}

// RunLogs 按开始时间倒序返回最近的运行记录
func (s *Store) RunLogs(ctx context.Context, limit int) ([]model.RunLog, error) {
	if limit <= 0 || limit > MaxRunLogs {
		limit = MaxRunLogs
	}
	var logs []model.RunLog
	err := s.db.SelectContext(ctx, &logs, `
		SELECT * FROM run_logs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	for i := range logs {
		logs[i].StartedAt = logs[i].StartedAt.UTC()
		logs[i].FinishedAt = logs[i].FinishedAt.UTC()
	}
	return logs, nil
}
