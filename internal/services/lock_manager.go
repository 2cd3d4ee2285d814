// internal/services/lock_manager.go
package services

import (
	"sync"
	"sync/atomic"
	"time"
)

// LockManager 播放会话的统一锁管理器
// 解释器不可重入，同一会话的推进操作必须串行
type LockManager struct {
	sessionLocks  map[string]*LockInfo
	globalLock    sync.RWMutex
	cleanupTicker *time.Ticker
}

// LockInfo 包装锁和相关信息
// 最近使用时间在全局读锁下并发更新，用原子值记录
type LockInfo struct {
	Mutex    *sync.RWMutex
	lastUsed atomic.Int64 // UnixNano
}

func (li *LockInfo) touch() {
	li.lastUsed.Store(time.Now().UnixNano())
}

// NewLockManager 创建锁管理器
func NewLockManager() *LockManager {
	lm := &LockManager{
		sessionLocks: make(map[string]*LockInfo),
	}

	// 启动清理器
	lm.startCleanup()
	return lm
}

// GetSessionLock 获取会话锁（线程安全）
func (lm *LockManager) GetSessionLock(sessionID string) *sync.RWMutex {
	lm.globalLock.RLock()
	if lockInfo, exists := lm.sessionLocks[sessionID]; exists {
		lm.globalLock.RUnlock()
		lockInfo.touch()
		return lockInfo.Mutex
	}
	lm.globalLock.RUnlock()

	// 升级为写锁
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	// 双重检查（在写锁保护下是安全的）
	if lockInfo, exists := lm.sessionLocks[sessionID]; exists {
		lockInfo.touch()
		return lockInfo.Mutex
	}

	lockInfo := &LockInfo{Mutex: &sync.RWMutex{}}
	lockInfo.touch()
	lm.sessionLocks[sessionID] = lockInfo
	return lockInfo.Mutex
}

// ExecuteWithSessionLock 在会话写锁保护下执行操作
func (lm *LockManager) ExecuteWithSessionLock(sessionID string, fn func() error) error {
	lock := lm.GetSessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// ExecuteWithSessionReadLock 在会话读锁保护下执行操作
func (lm *LockManager) ExecuteWithSessionReadLock(sessionID string, fn func() error) error {
	lock := lm.GetSessionLock(sessionID)
	lock.RLock()
	defer lock.RUnlock()
	return fn()
}

// RemoveLock 会话释放后移除其锁
func (lm *LockManager) RemoveLock(sessionID string) {
	lm.globalLock.Lock()
	delete(lm.sessionLocks, sessionID)
	lm.globalLock.Unlock()
}

// 定期清理未使用的锁
func (lm *LockManager) startCleanup() {
	lm.cleanupTicker = time.NewTicker(5 * time.Minute)
	go func() {
		for range lm.cleanupTicker.C {
			lm.cleanupUnusedLocks()
		}
	}()
}

func (lm *LockManager) cleanupUnusedLocks() {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	const maxLocks = 500
	const lockTimeout = 30 * time.Minute

	// 只有在锁数量过多时才清理长时间未使用的锁
	if len(lm.sessionLocks) > maxLocks {
		now := time.Now().UnixNano()
		for sessionID, lockInfo := range lm.sessionLocks {
			if now-lockInfo.lastUsed.Load() > int64(lockTimeout) {
				delete(lm.sessionLocks, sessionID)
			}
		}
	}
}
