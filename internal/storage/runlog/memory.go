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

package runlog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore 内存运行日志，进程退出即丢失
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	nextID  int64
}

// NewMemoryStore 创建内存运行日志
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Append 实现 Store
func (s *MemoryStore) Append(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID
	s.nextID++
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	cp := *e
	cp.ToolArgs = rawOrEmpty(append([]byte(nil), e.ToolArgs...))
	cp.ToolResult = rawOrEmpty(append([]byte(nil), e.ToolResult...))
	s.entries = append(s.entries, cp)
	return nil
}

// History 实现 Store
func (s *MemoryStore) History(ctx context.Context, threadID string, limit int) ([]Entry, error) {
	limit = normalizeLimit(limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.entries[i]
		if threadID != "" && e.ThreadID != threadID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Threads 实现 Store
func (s *MemoryStore) Threads(ctx context.Context) ([]ThreadSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[string]int{}
	lastID := map[string]int64{}
	for _, e := range s.entries {
		counts[e.ThreadID]++
		lastID[e.ThreadID] = e.ID
	}
	out := make([]ThreadSummary, 0, len(counts))
	for id, n := range counts {
		out = append(out, ThreadSummary{ThreadID: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		return lastID[out[i].ThreadID] > lastID[out[j].ThreadID]
	})
	return out, nil
}

// Close 实现 Store
func (s *MemoryStore) Close() error {
	return nil
}
