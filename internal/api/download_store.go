package api

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// downloadTTL 下载链接有效期
const downloadTTL = 10 * time.Minute

type download struct {
	filePath  string
	fileName  string
	expiresAt time.Time
}

type downloadStore struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]download
}

func newDownloadStore() *downloadStore {
	return &downloadStore{
		now:   time.Now,
		items: make(map[string]download),
	}
}

func (s *downloadStore) put(filePath, fileName string, ttl time.Duration) (token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpiredLocked(s.now())

	token = newRandomToken(24)
	s.items[token] = download{
		filePath:  filePath,
		fileName:  fileName,
		expiresAt: s.now().Add(ttl),
	}
	return token
}

func (s *downloadStore) get(token string) (download, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpiredLocked(s.now())

	v, ok := s.items[token]
	if !ok {
		return download{}, false
	}
	return v, true
}

func (s *downloadStore) delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, token)
}

// purgeExpiredLocked 清理过期链接（报表文件保留在导出目录）
func (s *downloadStore) purgeExpiredLocked(now time.Time) {
	for k, v := range s.items {
		if now.After(v.expiresAt) {
			delete(s.items, k)
		}
	}
}

func newRandomToken(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
