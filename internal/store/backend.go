package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"marginanalyzer/internal/model"
)

// ErrCorrupt 持久化数据无法解析
var ErrCorrupt = errors.New("persisted state is corrupt")

// Backend 历史采购库、累计数据与运行记录的持久化接口
type Backend interface {
	LoadHistory(ctx context.Context) ([]model.PurchaseRecord, error)
	SaveHistory(ctx context.Context, records []model.PurchaseRecord) error
	ClearHistory(ctx context.Context) error

	LoadRollups(ctx context.Context) (model.Rollups, error)
	SaveRollups(ctx context.Context, rollups model.Rollups) error
	ClearRollups(ctx context.Context) error

	AppendRunLog(ctx context.Context, log model.RunLog) error
	RunLogs(ctx context.Context, limit int) ([]model.RunLog, error)

	Close() error
}

// 存储类型
const (
	KindJSON   = "json"
	KindSQLite = "sqlite"
)

// MaxRunLogs 保留的运行记录条数
const MaxRunLogs = 20

// Open 按类型打开数据目录下的存储
func Open(kind, dataDir string) (Backend, error) {
	switch kind {
	case "", KindJSON:
		return NewJSONBackend(dataDir)
	case KindSQLite:
		return New(filepath.Join(dataDir, "marginanalyzer.db"))
	default:
		return nil, fmt.Errorf("unknown storage kind: %s", kind)
	}
}
