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

import "kb-support/pkg/config"

// 默认参数，均可通过 support.* 配置覆盖
const (
	DefaultRetrievalLimit   = 5
	DefaultDisplayThreshold = 2.5
	DefaultDisplayLimit     = 2
	DefaultNormalizeDivisor = 10.0
	DefaultTicketGate       = 0.2
	DefaultSnippetLength    = 220
)

// Settings 检索与门控参数
type Settings struct {
	RetrievalLimit   int
	DisplayThreshold float64
	DisplayLimit     int
	NormalizeDivisor float64
	TicketGate       float64
	SnippetLength    int
}

// DefaultSettings 返回默认参数
func DefaultSettings() Settings {
	return Settings{}.WithDefaults()
}

// SettingsFromConfig 从 support 配置读取参数，未配置项取默认值
func SettingsFromConfig(c config.SupportConfig) Settings {
	return Settings{
		RetrievalLimit:   c.RetrievalLimit,
		DisplayThreshold: c.DisplayThreshold,
		DisplayLimit:     c.DisplayLimit,
		NormalizeDivisor: c.NormalizeDivisor,
		TicketGate:       c.TicketGate,
		SnippetLength:    c.SnippetLength,
	}.WithDefaults()
}

// WithDefaults 零值字段填默认值
func (s Settings) WithDefaults() Settings {
	if s.RetrievalLimit <= 0 {
		s.RetrievalLimit = DefaultRetrievalLimit
	}
	if s.DisplayThreshold <= 0 {
		s.DisplayThreshold = DefaultDisplayThreshold
	}
	if s.DisplayLimit <= 0 {
		s.DisplayLimit = DefaultDisplayLimit
	}
	if s.NormalizeDivisor <= 0 {
		s.NormalizeDivisor = DefaultNormalizeDivisor
	}
	if s.TicketGate <= 0 {
		s.TicketGate = DefaultTicketGate
	}
	if s.SnippetLength <= 0 {
		s.SnippetLength = DefaultSnippetLength
	}
	return s
}
