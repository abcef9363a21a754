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
	"strings"
	"unicode"
	"unicode/utf8"
)

// Entry 一条翻译：From 为俄语单词或短语，To 为英文（短语可对应多个英文词）
type Entry struct {
	From string
	To   string
}

type phrase struct {
	source string
	words  []string
}

// Dictionary 只读的俄→英关键词表；构建一次后按引用共享
type Dictionary struct {
	words   map[string]string
	phrases []phrase
}

// NewDictionary 由有序条目构建词表；含空白的 From 视为短语，短语按条目顺序匹配
func NewDictionary(entries []Entry) *Dictionary {
	d := &Dictionary{words: make(map[string]string, len(entries))}
	for _, e := range entries {
		from := strings.ToLower(strings.TrimSpace(e.From))
		if from == "" {
			continue
		}
		if len(strings.Fields(from)) > 1 {
			d.phrases = append(d.phrases, phrase{source: from, words: strings.Fields(e.To)})
			continue
		}
		d.words[from] = e.To
	}
	return d
}

// DefaultEntries 客服场景的默认俄→英词表
func DefaultEntries() []Entry {
	return []Entry{
		{From: "пароль", To: "password"},
		{From: "сброс", To: "reset"},
		{From: "платеж", To: "payment"},
		{From: "оплата", To: "payment"},
		{From: "не прошел", To: "failed"},
		{From: "удаление", To: "deletion"},
		{From: "аккаунт", To: "account"},
		{From: "двухфакторная", To: "two"},
		{From: "двухфакторная аутентификация", To: "two factor authentication"},
		{From: "аутентификация", To: "authentication"},
		{From: "лимит", To: "limit"},
		{From: "ограничение", To: "limit"},
		{From: "api", To: "api"},
	}
}

// DefaultDictionary 默认词表
func DefaultDictionary() *Dictionary {
	return NewDictionary(DefaultEntries())
}

// Word 查单词翻译
func (d *Dictionary) Word(token string) (string, bool) {
	to, ok := d.words[token]
	return to, ok
}

// PhraseWords 返回在 lowered 中以子串形式出现的所有短语的英文词，按词表顺序拼接
func (d *Dictionary) PhraseWords(lowered string) []string {
	var out []string
	for _, p := range d.phrases {
		if strings.Contains(lowered, p.source) {
			out = append(out, p.words...)
		}
	}
	return out
}

// Normalizer 把原始问题转成检索词：去标点、小写、丢弃短词、逐词翻译，再追加短语翻译
type Normalizer struct {
	dict     *Dictionary
	minRunes int
}

// NewNormalizer 创建 Normalizer；dict 为 nil 时不做翻译
func NewNormalizer(dict *Dictionary) *Normalizer {
	if dict == nil {
		dict = NewDictionary(nil)
	}
	return &Normalizer{dict: dict, minRunes: 3}
}

// Terms 返回检索词，保持插入顺序且不去重（重复词会在打分时累加）
func (n *Normalizer) Terms(query string) []string {
	lowered := strings.ToLower(query)
	cleaned := strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, lowered)

	var terms []string
	for _, tok := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(tok) < n.minRunes {
			continue
		}
		if to, ok := n.dict.Word(tok); ok {
			terms = append(terms, to)
			continue
		}
		terms = append(terms, tok)
	}
	return append(terms, n.dict.PhraseWords(lowered)...)
}

// isWordRune 与 Unicode 正则 \w 一致：字母、数字、下划线
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
