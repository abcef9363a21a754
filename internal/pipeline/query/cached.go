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

package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kb-support/internal/pipeline/common"
	"kb-support/internal/storage/cache"
	"kb-support/pkg/metrics"
)

// CachedSearcher 为 Searcher 增加结果缓存；键包含知识库指纹，知识库变化后旧键自然失效
type CachedSearcher struct {
	inner       Searcher
	store       cache.Store
	fingerprint string
	ttl         time.Duration
}

// NewCachedSearcher 创建带缓存的检索器；store 为 nil 时直接返回 inner
func NewCachedSearcher(inner Searcher, store cache.Store, fingerprint string, ttl time.Duration) Searcher {
	if store == nil {
		return inner
	}
	return &CachedSearcher{inner: inner, store: store, fingerprint: fingerprint, ttl: ttl}
}

// CacheKey 返回检索缓存键
func CacheKey(fingerprint string, limit int, query string) string {
	return fmt.Sprintf("kb:%s:%d:%s", fingerprint, limit, strings.TrimSpace(query))
}

// Search 先查缓存，未命中时调用 inner 并回写；缓存故障不影响检索结果
func (c *CachedSearcher) Search(ctx context.Context, query string, limit int) (*common.RetrievalResult, error) {
	key := CacheKey(c.fingerprint, limit, query)

	var cached common.RetrievalResult
	err := c.store.Get(ctx, key, &cached)
	switch {
	case err == nil:
		metrics.RetrievalCacheTotal.WithLabelValues("hit").Inc()
		if cached.Hits == nil {
			cached.Hits = []common.ScoredHit{}
		}
		return &cached, nil
	case errors.Is(err, cache.ErrMiss):
		metrics.RetrievalCacheTotal.WithLabelValues("miss").Inc()
	default:
		metrics.RetrievalCacheTotal.WithLabelValues("error").Inc()
	}

	result, err := c.inner.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if setErr := c.store.Set(ctx, key, result, c.ttl); setErr != nil {
		metrics.RetrievalCacheTotal.WithLabelValues("error").Inc()
	}
	return result, nil
}
