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

package common

// Tool 名称
const (
	ToolSearchKB     = "search_kb"
	ToolCreateTicket = "create_ticket"
)

// ScoredHit 一条检索命中：文章引用、摘要与得分（得分为乘以匹配比例加成后的值，量级为几到几十）
type ScoredHit struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
}

// RetrievalResult 检索结果，Hits 按得分降序，同分保持知识库原始顺序
type RetrievalResult struct {
	Query string      `json:"query"`
	Terms []string    `json:"terms"`
	Hits  []ScoredHit `json:"hits"`
}

// GateDecision 检索门控的判定结果
type GateDecision struct {
	// Display 达到展示阈值的命中（最多 display_limit 条），用于提示词与来源
	Display []ScoredHit
	// AnyHit 过滤前是否有任何命中
	AnyHit bool
	// TopScore 归一化最高分，取值 [0,1]；Display 为空时为 0
	TopScore float64
	// TicketEnabled 是否向模型开放 create_ticket
	TicketEnabled bool
}

// Ticket 工单
type Ticket struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// ToolInvocation 一次工具调用记录（search_kb 为本地预检索的合成记录）
type ToolInvocation struct {
	Name   string                 `json:"name"`
	Args   map[string]interface{} `json:"args"`
	Result interface{}            `json:"result"`
}

// Confidence 置信度标签
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// Relevance 来源相关度
type Relevance string

const (
	RelevanceHigh   Relevance = "high"
	RelevanceMedium Relevance = "medium"
	RelevanceLow    Relevance = "low"
)

// Source 回答引用的知识库文章
type Source struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Relevance Relevance `json:"relevance"`
}

// StructuredResponse 对外返回的结构化回答
type StructuredResponse struct {
	Answer       string     `json:"answer"`
	Sources      []Source   `json:"sources"`
	NextSteps    []string   `json:"next_steps"`
	ActionsTaken []string   `json:"actions_taken"`
	Confidence   Confidence `json:"confidence"`
	Ticket       *Ticket    `json:"ticket,omitempty"`
	Error        bool       `json:"error,omitempty"`
}
