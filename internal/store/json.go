package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"marginanalyzer/internal/model"
)

const (
	historyFile = "history.json"
	rollupsFile = "rollups.json"
	runLogsFile = "runs.json"
)

// JSONBackend 以 JSON 文件保存状态（原子写入：先写 .tmp 再 rename）
type JSONBackend struct {
	dir string
	mu  sync.Mutex
}

var _ Backend = (*JSONBackend)(nil)

// NewJSONBackend 创建 JSON 文件存储
func NewJSONBackend(dir string) (*JSONBackend, error) {
	if err := ensureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &JSONBackend{dir: dir}, nil
}

func (b *JSONBackend) path(name string) string {
	return filepath.Join(b.dir, name)
}

// load 读取 JSON 文件；文件不存在返回 false，解析失败返回 ErrCorrupt
func (b *JSONBackend) load(name string, out interface{}) (bool, error) {
	err := readJSON(b.path(name), out)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	return false, fmt.Errorf("%s: %w: %v", name, ErrCorrupt, err)
}

type historyDoc struct {
	Records []purchaseRow `json:"records"`
}

// LoadHistory 读取历史采购库
func (b *JSONBackend) LoadHistory(ctx context.Context) ([]model.PurchaseRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var doc historyDoc
	if _, err := b.load(historyFile, &doc); err != nil {
		return nil, err
	}
	records, err := fromPurchaseRows(doc.Records)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", historyFile, ErrCorrupt, err)
	}
	return records, nil
}

// SaveHistory 保存历史采购库
func (b *JSONBackend) SaveHistory(ctx context.Context, records []model.PurchaseRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := writeJSONAtomic(b.path(historyFile), historyDoc{Records: toPurchaseRows(records)}); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// ClearHistory 删除历史采购库文件
func (b *JSONBackend) ClearHistory(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return removeIfExists(b.path(historyFile))
}

// LoadRollups 读取累计数据
func (b *JSONBackend) LoadRollups(ctx context.Context) (model.Rollups, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var doc rollupsDoc
	if _, err := b.load(rollupsFile, &doc); err != nil {
		return model.NewRollups(), err
	}
	out, err := doc.rollups()
	if err != nil {
		return model.NewRollups(), fmt.Errorf("%s: %w: %v", rollupsFile, ErrCorrupt, err)
	}
	return out, nil
}

// SaveRollups 保存累计数据
func (b *JSONBackend) SaveRollups(ctx context.Context, rollups model.Rollups) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := writeJSONAtomic(b.path(rollupsFile), toRollupsDoc(rollups)); err != nil {
		return fmt.Errorf("save rollups: %w", err)
	}
	return nil
}

// ClearRollups 删除累计数据文件
func (b *JSONBackend) ClearRollups(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return removeIfExists(b.path(rollupsFile))
}

// AppendRunLog 追加运行记录（最多保留 MaxRunLogs 条）
func (b *JSONBackend) AppendRunLog(ctx context.Context, log model.RunLog) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var logs []model.RunLog
	if _, err := b.load(runLogsFile, &logs); err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}
	logs = append(logs, log)
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].StartedAt.After(logs[j].StartedAt) })
	if len(logs) > MaxRunLogs {
		logs = logs[:MaxRunLogs]
	}
	if err := writeJSONAtomic(b.path(runLogsFile), logs); err != nil {
		return fmt.Errorf("save run logs: %w", err)
	}
	return nil
}

// RunLogs 按开始时间倒序返回最近的运行记录
func (b *JSONBackend) RunLogs(ctx context.Context, limit int) ([]model.RunLog, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var logs []model.RunLog
	if _, err := b.load(runLogsFile, &logs); err != nil {
		return nil, err
	}
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

// Close JSON 存储无需释放资源
func (b *JSONBackend) Close() error {
	return nil
}
