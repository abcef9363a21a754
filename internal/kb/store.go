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

// Package kb 知识库文章的加载与只读访问；进程启动时加载一次，并发请求共享
package kb

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	pkgerrors "kb-support/pkg/errors"
)

//go:embed kb_seed.json
var defaultSeed []byte

// Article 知识库文章
type Article struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// Store 不可变文章集合，保留源文件中的顺序（排序时的稳定次序依赖该顺序）
type Store struct {
	articles    []Article
	byID        map[string]int
	fingerprint string
}

// Load 从 JSON 文件加载文章列表
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "读取知识库 %s", path)
	}
	return Parse(data)
}

// LoadDefault 加载内置种子知识库
func LoadDefault() (*Store, error) {
	return Parse(defaultSeed)
}

// Parse 解析 JSON 数组形式的文章记录
func Parse(data []byte) (*Store, error) {
	var articles []Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, pkgerrors.Wrap(err, "解析知识库 JSON")
	}
	return New(articles)
}

// New 用给定文章构建 Store；id 不能为空或重复
func New(articles []Article) (*Store, error) {
	byID := make(map[string]int, len(articles))
	h := xxhash.New()
	for i, a := range articles {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			return nil, pkgerrors.InvalidArgf("article #%d has empty id", i)
		}
		if _, dup := byID[id]; dup {
			return nil, pkgerrors.InvalidArgf("duplicate article id %q", id)
		}
		byID[id] = i
		for _, s := range []string{a.ID, a.Title, a.Content, a.URL} {
			_, _ = h.WriteString(s)
			_, _ = h.Write([]byte{0})
		}
	}
	cp := make([]Article, len(articles))
	copy(cp, articles)
	return &Store{
		articles:    cp,
		byID:        byID,
		fingerprint: strconv.FormatUint(h.Sum64(), 16),
	}, nil
}

// Articles 返回文章副本
func (s *Store) Articles() []Article {
	out := make([]Article, len(s.articles))
	copy(out, s.articles)
	return out
}

// Len 文章数
func (s *Store) Len() int { return len(s.articles) }

// Get 按 id 获取文章
func (s *Store) Get(id string) (Article, error) {
	i, ok := s.byID[id]
	if !ok {
		return Article{}, fmt.Errorf("article %q: %w", id, pkgerrors.ErrNotFound)
	}
	return s.articles[i], nil
}

// Fingerprint 内容指纹，内容不变则不变；用作检索缓存命名空间
func (s *Store) Fingerprint() string { return s.fingerprint }
