// internal/storage/asset_cache.go
package storage

import (
	"sort"
	"sync"
	"time"
)

// AssetCache 提供远端素材地址到本地已预热地址的内存映射
// 预读器写入，解释器与渲染层读取
type AssetCache struct {
	cache      map[string]*AssetCacheEntry
	mutex      sync.RWMutex
	maxSize    int           // 最大缓存条目数
	expiration time.Duration // 缓存过期时间
}

// AssetCacheEntry 缓存条目
type AssetCacheEntry struct {
	LocalPath string
	CreatedAt time.Time
	LastRead  time.Time
}

// NewAssetCache 创建素材缓存
func NewAssetCache(maxSize int, expiration time.Duration) *AssetCache {
	if maxSize <= 0 {
		maxSize = 1000 // 默认缓存1000个条目
	}

	if expiration <= 0 {
		expiration = 30 * time.Minute
	}

	return &AssetCache{
		cache:      make(map[string]*AssetCacheEntry),
		maxSize:    maxSize,
		expiration: expiration,
	}
}

// Get 查询已预热的本地地址，未命中或已过期时返回false
func (s *AssetCache) Get(url string) (string, bool) {
	s.mutex.RLock()
	entry, exists := s.cache[url]
	s.mutex.RUnlock()

	if !exists {
		return "", false
	}

	if time.Since(entry.CreatedAt) > s.expiration {
		s.mutex.Lock()
		delete(s.cache, url)
		s.mutex.Unlock()
		return "", false
	}

	s.mutex.Lock()
	entry.LastRead = time.Now()
	s.mutex.Unlock()

	return entry.LocalPath, true
}

// Put 记录一个已预热的素材
func (s *AssetCache) Put(url, localPath string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.cache[url] = &AssetCacheEntry{
		LocalPath: localPath,
		CreatedAt: time.Now(),
		LastRead:  time.Now(),
	}

	// 超限时清理最少使用的条目，每次清理约20%
	if len(s.cache) > s.maxSize {
		s.cleanupLRU(max(1, s.maxSize/5))
	}
}

// Delete 移除一个条目
func (s *AssetCache) Delete(url string) {
	s.mutex.Lock()
	delete(s.cache, url)
	s.mutex.Unlock()
}

// Clear 清空缓存
func (s *AssetCache) Clear() {
	s.mutex.Lock()
	s.cache = make(map[string]*AssetCacheEntry)
	s.mutex.Unlock()
}

// Len 返回当前条目数
func (s *AssetCache) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.cache)
}

// 清理最少使用的条目，调用方需持有写锁
func (s *AssetCache) cleanupLRU(count int) {
	type keyAge struct {
		key  string
		time time.Time
	}

	entries := make([]keyAge, 0, len(s.cache))
	for k, v := range s.cache {
		entries = append(entries, keyAge{k, v.LastRead})
	}

	// 按最后读取时间排序
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].time.Before(entries[j].time)
	})

	maxToDelete := min(count, len(entries))
	for i := 0; i < maxToDelete; i++ {
		delete(s.cache, entries[i].key)
	}
}
