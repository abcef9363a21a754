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
	"sort"
	"strings"
	"unicode/utf8"

	"kb-support/internal/kb"
	"kb-support/internal/pipeline/common"
	pkgerrors "kb-support/pkg/errors"
)

// Searcher 按问题检索知识库
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*common.RetrievalResult, error)
}

// Retriever 关键词打分检索器
type Retriever struct {
	name          string
	store         *kb.Store
	normalizer    *Normalizer
	snippetLength int
}

// NewRetriever 创建检索器
func NewRetriever(store *kb.Store, normalizer *Normalizer, snippetLength int) *Retriever {
	if normalizer == nil {
		normalizer = NewNormalizer(DefaultDictionary())
	}
	if snippetLength <= 0 {
		snippetLength = DefaultSnippetLength
	}
	return &Retriever{
		name:          "retriever",
		store:         store,
		normalizer:    normalizer,
		snippetLength: snippetLength,
	}
}

// Search 对所有文章打分，丢弃 0 分文章，按得分稳定降序截取 limit 条
func (r *Retriever) Search(ctx context.Context, query string, limit int) (*common.RetrievalResult, error) {
	if r.store == nil {
		return nil, common.NewPipelineError(r.name, "知识库未加载", common.ErrKnowledgeBaseNone)
	}
	if limit <= 0 {
		return nil, common.NewPipelineError(r.name, "参数错误", pkgerrors.InvalidArgf("limit must be positive, got %d", limit))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := r.normalizer.Terms(query)
	result := &common.RetrievalResult{Query: query, Terms: terms, Hits: []common.ScoredHit{}}
	if len(terms) == 0 {
		return result, nil
	}

	type scored struct {
		score   float64
		article kb.Article
	}
	var candidates []scored
	for _, a := range r.store.Articles() {
		if s, ok := ScoreArticle(terms, a); ok {
			candidates = append(candidates, scored{score: s, article: a})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	for _, c := range candidates {
		result.Hits = append(result.Hits, common.ScoredHit{
			ID:      c.article.ID,
			Title:   c.article.Title,
			Snippet: Snippet(c.article.Content, r.snippetLength),
			URL:     c.article.URL,
			Score:   c.score,
		})
	}
	return result, nil
}

// ScoreArticle 计算单篇文章得分；ok=false 表示累计原始分为 0，应被排除
//
// 每个词：整词出现 n 次加 2n 并计为命中，否则作为子串出现加 1；
// 另外每个出现在标题中的词加 3。最终分 = 原始分 × (1 + 命中词数/词数)。
func ScoreArticle(terms []string, a kb.Article) (float64, bool) {
	if len(terms) == 0 {
		return 0, false
	}
	text := strings.ToLower(a.Title + " " + a.Content)
	title := strings.ToLower(a.Title)

	raw := 0
	matched := 0
	for _, term := range terms {
		if n := countWholeWord(text, term); n > 0 {
			raw += n * 2
			matched++
		} else if strings.Contains(text, term) {
			raw++
		}
	}
	for _, term := range terms {
		if strings.Contains(title, term) {
			raw += 3
		}
	}
	if raw == 0 {
		return 0, false
	}
	ratio := float64(matched) / float64(len(terms))
	return float64(raw) * (1 + ratio), true
}

// countWholeWord 统计 term 在 text 中以整词形式出现的次数（不重叠，词边界按 Unicode 字母数字下划线判断）
func countWholeWord(text, term string) int {
	if term == "" {
		return 0
	}
	count := 0
	pos := 0
	for pos <= len(text)-len(term) {
		i := strings.Index(text[pos:], term)
		if i < 0 {
			break
		}
		start := pos + i
		end := start + len(term)
		if boundaryBefore(text, start, term) && boundaryAfter(text, end, term) {
			count++
			pos = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		pos = start + size
	}
	return count
}

// boundaryBefore 与正则 \b 一致：term 首字符与前一字符的“词/非词”属性不同
func boundaryBefore(text string, start int, term string) bool {
	first, _ := utf8.DecodeRuneInString(term)
	prevIsWord := false
	if start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		prevIsWord = isWordRune(prev)
	}
	return isWordRune(first) != prevIsWord
}

func boundaryAfter(text string, end int, term string) bool {
	last, _ := utf8.DecodeLastRuneInString(term)
	nextIsWord := false
	if end < len(text) {
		next, _ := utf8.DecodeRuneInString(text[end:])
		nextIsWord = isWordRune(next)
	}
	return isWordRune(last) != nextIsWord
}

// Snippet 截取前 n 个字符，超长时追加 "..."
func Snippet(content string, n int) string {
	if utf8.RuneCountInString(content) <= n {
		return content
	}
	runes := []rune(content)
	return string(runes[:n]) + "..."
}
