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
	"math"

	"kb-support/internal/pipeline/common"
)

// Gate 检索门控：按展示阈值过滤命中，计算归一化最高分，并决定是否开放建单
type Gate struct {
	name             string
	displayThreshold float64
	displayLimit     int
	normalizeDivisor float64
	ticketGate       float64
}

// NewGate 由 Settings 创建门控
func NewGate(s Settings) *Gate {
	s = s.WithDefaults()
	return &Gate{
		name:             "gate",
		displayThreshold: s.DisplayThreshold,
		displayLimit:     s.DisplayLimit,
		normalizeDivisor: s.NormalizeDivisor,
		ticketGate:       s.TicketGate,
	}
}

// Name 返回组件名称
func (g *Gate) Name() string {
	return g.name
}

// Decide 对已排序的检索结果做门控判定
func (g *Gate) Decide(result *common.RetrievalResult) common.GateDecision {
	d := common.GateDecision{Display: []common.ScoredHit{}}
	if result == nil {
		d.TicketEnabled = true
		return d
	}
	d.AnyHit = len(result.Hits) > 0
	for _, h := range result.Hits {
		if h.Score >= g.displayThreshold {
			d.Display = append(d.Display, h)
		}
	}
	if len(d.Display) > g.displayLimit {
		d.Display = d.Display[:g.displayLimit]
	}
	if len(d.Display) > 0 {
		d.TopScore = g.Normalize(d.Display[0].Score)
	}
	d.TicketEnabled = len(d.Display) == 0 || d.TopScore < g.ticketGate
	return d
}

// Normalize 将原始分线性映射到 [0,1]
func (g *Gate) Normalize(score float64) float64 {
	if score <= 0 {
		return 0
	}
	return math.Min(score/g.normalizeDivisor, 1.0)
}
