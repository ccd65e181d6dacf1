package store

import (
	"context"
	"fmt"

	"marginanalyzer/internal/model"
)

// LoadHistory 读取历史采购库
func (s *Store) LoadHistory(ctx context.Context) ([]model.PurchaseRecord, error) {
	var rows []purchaseRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT product_code, product_name, price, recorded_at
		FROM purchase_history
		ORDER BY product_code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase history: %w", err)
	}
	records, err := fromPurchaseRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase history: %w", err)
	}
	return records, nil
}

// SaveHistory 以整表替换方式保存历史采购库
func (s *Store) SaveHistory(ctx context.Context, records []model.PurchaseRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM purchase_history`); err != nil {
		return fmt.Errorf("failed to clear purchase history: %w", err)
	}

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO purchase_history (product_code, product_name, price, recorded_at)
		VALUES (:product_code, :product_name, :price, :recorded_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range toPurchaseRows(records) {
		if _, err := stmt.ExecContext(ctx, r); err != nil {
			return fmt.Errorf("failed to save %s: %w", r.ProductCode, err)
		}
	}
	return tx.Commit()
}

// ClearHistory 清空历史采购库
func (s *Store) ClearHistory(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM purchase_history`); err != nil {
		return fmt.Errorf("failed to clear purchase history: %w", err)
	}
	return nil
}
