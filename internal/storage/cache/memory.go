// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxEntries 内存缓存默认容量
const DefaultMaxEntries = 10000

// sweepInterval 清理过期项的最小间隔
const sweepInterval = time.Minute

// MemoryStore 内存缓存存储实现；过期项由后台定时清理，并在写入时按间隔清理，容量满时淘汰最早写入的项
type MemoryStore struct {
	items      map[string]*cacheItem
	mu         sync.RWMutex
	now        func() time.Time
	maxEntries int
	lastSweep  time.Time
	seq        uint64
	stop       chan struct{}
	closeOnce  sync.Once
}

// cacheItem 缓存项
type cacheItem struct {
	value     []byte
	expiresAt time.Time // 零值表示不过期
	seq       uint64    // 写入顺序
}

func (it *cacheItem) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && !now.Before(it.expiresAt)
}

// NewMemoryStore 创建新的内存缓存存储
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithLimit(DefaultMaxEntries)
}

// NewMemoryStoreWithLimit 创建指定容量的内存缓存；maxEntries<=0 使用默认容量
func NewMemoryStoreWithLimit(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	s := &MemoryStore{
		items:      make(map[string]*cacheItem),
		now:        time.Now,
		maxEntries: maxEntries,
		stop:       make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			s.sweepLocked(s.now())
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}

// Set 设置缓存
func (s *MemoryStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweepLocked(now)
	}
	if _, exists := s.items[key]; !exists && len(s.items) >= s.maxEntries {
		s.sweepLocked(now)
		if len(s.items) >= s.maxEntries {
			s.evictOldestLocked()
		}
	}

	s.seq++
	item := &cacheItem{value: data, seq: s.seq}
	if expiration > 0 {
		item.expiresAt = now.Add(expiration)
	}
	s.items[key] = item
	return nil
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for k, it := range s.items {
		if it.expired(now) {
			delete(s.items, k)
		}
	}
	s.lastSweep = now
}

func (s *MemoryStore) evictOldestLocked() {
	var (
		oldestKey string
		oldestSeq uint64
		found     bool
	)
	for k, it := range s.items {
		if !found || it.seq < oldestSeq {
			oldestKey, oldestSeq, found = k, it.seq, true
		}
	}
	if found {
		delete(s.items, oldestKey)
	}
}

// Len 当前持有的缓存项数（含尚未清理的过期项）
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get 获取缓存；过期项在读取时删除
func (s *MemoryStore) Get(ctx context.Context, key string, dest interface{}) error {
	s.mu.RLock()
	item, exists := s.items[key]
	s.mu.RUnlock()
	if !exists {
		return ErrMiss
	}
	if item.expired(s.now()) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return ErrMiss
	}
	if err := json.Unmarshal(item.value, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

// Delete 删除缓存，键不存在时不报错
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Exists 检查缓存是否存在
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, exists := s.items[key]
	return exists && !item.expired(s.now()), nil
}

// Clear 清除所有缓存
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.items = make(map[string]*cacheItem)
	s.mu.Unlock()
	return nil
}

// Close 停止后台清理，可重复调用
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	return nil
}
