// Package history 维护按商品编码去重的最新采购价库。
package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marginanalyzer/internal/model"
	"marginanalyzer/internal/store"
)

// Store 最新采购价库：每个商品编码只保留时间最新的一条记录
type Store struct {
	mu       sync.RWMutex
	backend  store.Backend
	logger   *zap.Logger
	now      func() time.Time
	remember bool
	records  map[string]model.PurchaseRecord
}

// Option 构造选项
type Option func(*Store)

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithRemember 为 false 时既不加载也不保存历史
func WithRemember(remember bool) Option {
	return func(s *Store) { s.remember = remember }
}

// New 创建历史库，backend 为 nil 时仅在内存中维护
func New(backend store.Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		logger:   zap.NewNop(),
		now:      time.Now,
		remember: true,
		records:  make(map[string]model.PurchaseRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Remember 是否启用历史记忆
func (s *Store) Remember() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remember
}

// SetRemember 运行期切换历史记忆（配置修改后生效）
func (s *Store) SetRemember(remember bool) {
	s.mu.Lock()
	s.remember = remember
	s.mu.Unlock()
}

// Load 从存储读取历史；文件缺失或损坏时视为无历史，仅记录日志
func (s *Store) Load(ctx context.Context) int {
	if !s.Remember() || s.backend == nil {
		return 0
	}
	records, err := s.backend.LoadHistory(ctx)
	if err != nil {
		s.logger.Warn("load purchase history failed, starting empty", zap.Error(err))
		records = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]model.PurchaseRecord, len(records))
	for _, r := range records {
		r.RecordedAt = r.RecordedAt.UTC()
		s.put(r)
	}
	s.logger.Info("purchase history loaded", zap.Int("records", len(s.records)))
	return len(s.records)
}

// put 按时间取新：同一时间戳时后来者胜出
func (s *Store) put(r model.PurchaseRecord) (prev model.PurchaseRecord, existed, replaced bool) {
	cur, ok := s.records[r.ProductCode]
	if ok && r.RecordedAt.Before(cur.RecordedAt) {
		return cur, true, false
	}
	s.records[r.ProductCode] = r
	return cur, ok, true
}

// MergeResult 合并统计
type MergeResult struct {
	Added     int `json:"added"`     // 新商品
	Updated   int `json:"updated"`   // 价格变化
	Refreshed int `json:"refreshed"` // 价格未变，仅刷新时间
	Skipped   int `json:"skipped"`   // 编码为空
	Total     int `json:"total"`     // 合并后库内商品数
}

// Merge 用当前时间为新记录打戳并并入历史库。
// 同一批内同编码出现多次时以靠后的行为准；新记录缺少名称时沿用库中名称。
func (s *Store) Merge(records []model.PurchaseRecord) MergeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	var res MergeResult
	seen := make(map[string]bool)
	for _, r := range records {
		r.ProductCode = strings.TrimSpace(r.ProductCode)
		if r.ProductCode == "" {
			res.Skipped++
			continue
		}
		r.RecordedAt = now
		prev, existed, replaced := s.put(r)
		if !replaced {
			continue
		}
		if r.ProductName == "" && prev.ProductName != "" {
			r.ProductName = prev.ProductName
			s.records[r.ProductCode] = r
		}
		if seen[r.ProductCode] {
			continue
		}
		seen[r.ProductCode] = true
		switch {
		case !existed:
			res.Added++
		case !prev.Price.Equal(r.Price):
			res.Updated++
		default:
			res.Refreshed++
		}
	}
	res.Total = len(s.records)
	return res
}

// Seed 手动导入历史采购数据：整体替换当前库，每个编码保留时间最新的一条
func (s *Store) Seed(records []model.PurchaseRecord) (int, error) {
	next := make(map[string]model.PurchaseRecord, len(records))
	for i, r := range records {
		r.ProductCode = strings.TrimSpace(r.ProductCode)
		if r.ProductCode == "" {
			continue
		}
		if r.RecordedAt.IsZero() {
			return 0, fmt.Errorf("record %d (%s): missing recorded time", i+1, r.ProductCode)
		}
		r.RecordedAt = r.RecordedAt.UTC()
		if cur, ok := next[r.ProductCode]; ok && r.RecordedAt.Before(cur.RecordedAt) {
			continue
		}
		next[r.ProductCode] = r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = next
	return len(next), nil
}

// Persist 保存历史库。调用方决定失败时仅告警还是中止
func (s *Store) Persist(ctx context.Context) error {
	if !s.Remember() || s.backend == nil {
		return nil
	}
	records := s.Records()
	if err := s.backend.SaveHistory(ctx, records); err != nil {
		return fmt.Errorf("persist purchase history: %w", err)
	}
	return nil
}

// Clear 清空内存与持久化的历史
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.records = make(map[string]model.PurchaseRecord)
	s.mu.Unlock()

	if s.backend == nil {
		return nil
	}
	if err := s.backend.ClearHistory(ctx); err != nil {
		return fmt.Errorf("clear purchase history: %w", err)
	}
	return nil
}

// Prices 商品编码 -> 当前采购价
func (s *Store) Prices() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(s.records))
	for code, r := range s.records {
		out[code] = r.Price
	}
	return out
}

// Lookup 按编码查询
func (s *Store) Lookup(code string) (model.PurchaseRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[code]
	return r, ok
}

// Records 按商品编码排序返回全部记录
func (s *Store) Records() []model.PurchaseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.PurchaseRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductCode < out[j].ProductCode })
	return out
}

// Search 按编码或名称模糊查找（不区分大小写），空关键字返回全部
func (s *Store) Search(keyword string) []model.PurchaseRecord {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	all := s.Records()
	if keyword == "" {
		return all
	}
	out := make([]model.PurchaseRecord, 0)
	for _, r := range all {
		if strings.Contains(strings.ToLower(r.ProductCode), keyword) ||
			strings.Contains(strings.ToLower(r.ProductName), keyword) {
			out = append(out, r)
		}
	}
	return out
}

// Len 库内商品数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Stats 历史库概况
type Stats struct {
	Records int       `json:"records"`
	Oldest  time.Time `json:"oldest"`
	Newest  time.Time `json:"newest"`
}

// Stats 返回记录数及最早 / 最新时间
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Records: len(s.records)}
	for _, r := range s.records {
		if st.Oldest.IsZero() || r.RecordedAt.Before(st.Oldest) {
			st.Oldest = r.RecordedAt
		}
		if r.RecordedAt.After(st.Newest) {
			st.Newest = r.RecordedAt
		}
	}
	return st
}
