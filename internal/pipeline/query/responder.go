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
	"encoding/json"

	"kb-support/internal/pipeline/common"
)

// EmptyAnswerGuard 既无调用轨迹又无文本时的兜底回答
const EmptyAnswerGuard = "Sorry, I couldn't form a response. Please try rephrasing your question."

// MaxSources sources 最多条数
const MaxSources = 2

// Structurer 将模型文本与工具轨迹整理为结构化回答
type Structurer struct {
	name      string
	templates *StepTemplates
}

// NewStructurer 创建 Structurer；templates 为 nil 时用内置模板
func NewStructurer(templates *StepTemplates) *Structurer {
	if templates == nil {
		templates = DefaultStepTemplates()
	}
	return &Structurer{name: "structurer", templates: templates}
}

// Name 返回组件名称
func (s *Structurer) Name() string {
	return s.name
}

// Build 生成结构化回答；hits 为本轮实际展示的知识库命中，topScore 为归一化最高分
func (s *Structurer) Build(answer string, trace []common.ToolInvocation, hits []common.ScoredHit, topScore float64) common.StructuredResponse {
	if len(trace) == 0 && answer == "" {
		answer = EmptyAnswerGuard
	}

	actions := []string{}
	seen := map[string]bool{}
	ticketCalled := false
	var ticket *common.Ticket
	for _, inv := range trace {
		if !seen[inv.Name] {
			seen[inv.Name] = true
			actions = append(actions, inv.Name)
		}
		if inv.Name == common.ToolCreateTicket {
			ticketCalled = true
			if t := TicketFromResult(inv.Result); t != nil {
				ticket = t
			}
		}
	}

	sources := BuildSources(hits, topScore)
	clarifying := IsClarifying(answer)

	var steps []string
	if len(sources) > 0 {
		steps = s.templates.Steps(hits[0].ID, clarifying)
	} else {
		steps = ExtractNextSteps(answer)
		if len(steps) == 0 {
			ticketID := ""
			if ticket != nil {
				ticketID = ticket.TicketID
			}
			steps = GenericNextSteps(ticketID, clarifying)
		}
	}
	if len(steps) > MaxNextSteps {
		steps = steps[:MaxNextSteps]
	}

	resp := common.StructuredResponse{
		Answer:       CleanAnswer(answer),
		Sources:      sources,
		NextSteps:    steps,
		ActionsTaken: actions,
		Confidence:   DetermineConfidence(topScore, len(sources) > 0, clarifying, ticketCalled),
		Ticket:       ticket,
	}
	return resp
}

// BuildSources 按位置与归一化分给出相关度，最多 MaxSources 条
func BuildSources(hits []common.ScoredHit, topScore float64) []common.Source {
	sources := []common.Source{}
	for i, h := range hits {
		if i >= MaxSources {
			break
		}
		rel := common.RelevanceLow
		switch {
		case i == 0 && topScore > 0.5:
			rel = common.RelevanceHigh
		case i == 0 || (i == 1 && topScore > 0.3):
			rel = common.RelevanceMedium
		}
		title := h.Title
		if title == "" {
			title = "Untitled"
		}
		sources = append(sources, common.Source{Title: title, URL: h.URL, Relevance: rel})
	}
	return sources
}

// DetermineConfidence 由来源与归一化分决定置信度
func DetermineConfidence(topScore float64, hasSources, clarifying, ticketCalled bool) common.Confidence {
	switch {
	case hasSources && topScore >= 0.3:
		if topScore > 0.6 {
			return common.ConfidenceHigh
		}
		return common.ConfidenceMedium
	case clarifying:
		return common.ConfidenceLow
	case ticketCalled && !hasSources:
		return common.ConfidenceLow
	case hasSources:
		return common.ConfidenceMedium
	default:
		return common.ConfidenceLow
	}
}

// TicketFromResult 从 create_ticket 的调用结果中取出工单；结果中无工单号时返回 nil
func TicketFromResult(result interface{}) *common.Ticket {
	var t common.Ticket
	switch v := result.(type) {
	case common.Ticket:
		t = v
	case *common.Ticket:
		if v == nil {
			return nil
		}
		t = *v
	case map[string]interface{}:
		data, err := json.Marshal(v)
		if err != nil || json.Unmarshal(data, &t) != nil {
			return nil
		}
	default:
		return nil
	}
	if t.TicketID == "" {
		return nil
	}
	if t.Priority == "" {
		t.Priority = "P2"
	}
	if t.Status == "" {
		t.Status = "created"
	}
	return &t
}

// ErrorResponse LLM 调用失败时返回的结构化错误
func ErrorResponse(err error) common.StructuredResponse {
	return common.StructuredResponse{
		Answer:       "Error processing request: " + err.Error(),
		Sources:      []common.Source{},
		NextSteps:    []string{"Try again", "Check your connection", "Contact support"},
		ActionsTaken: []string{},
		Confidence:   common.ConfidenceLow,
		Error:        true,
	}
}
