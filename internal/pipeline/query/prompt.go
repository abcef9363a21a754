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
	"fmt"
	"strings"

	"kb-support/internal/model/llm"
	"kb-support/internal/pipeline/common"
)

// EscalationKeywords 用户消息中出现即视为重复问题
var EscalationKeywords = []string{"still", "again", "second time", "repeated", "still failing", "still not working"}

const (
	refusalText = "I can only help with product support topics " +
		"(password reset, payment issues, rate limits, account deletion, 2FA). " +
		"For other questions, I'm not the right assistant."

	systemPromptBody = "You are a product support assistant. You ONLY answer questions about:\n" +
		"- Password reset\n" +
		"- Payment failures\n" +
		"- API rate limits\n" +
		"- Account deletion\n" +
		"- Two-factor authentication\n" +
		"\n" +
		"If the question is NOT about these topics, politely say: '" + refusalText + "'\n" +
		"\n" +
		"Your response structure:\n" +
		"1. Summary (1 sentence)\n" +
		"2. Steps (3-5 actionable steps from KB as numbered list 1-5)\n" +
		"3. What I need from you (1 clarifying question ONLY if truly needed after providing steps)\n" +
		"4. Sources (list KB URLs)\n" +
		"5. Next steps (ONLY if needed, use bullet list with '- ' prefix, one step per line, do NOT repeat Steps section)\n" +
		"\n" +
		"IMPORTANT FOR NEXT STEPS:\n" +
		"- Use ONLY bullet list format: '- Step description'\n" +
		"- One step per line\n" +
		"- Do NOT use numbered lists\n" +
		"- Do NOT repeat content from Steps section\n" +
		"- Only include if you need to suggest additional actions beyond the main Steps\n" +
		"\n" +
		"IMPORTANT FOR CLARIFYING QUESTIONS:\n" +
		"- Don't ask generic 'anything else?' or 'do you need assistance?' questions\n" +
		"- Ask only one question that helps solve the current issue\n" +
		"- Be specific: 'Are you trying to log in, or did you lose access?' not 'Do you need help?'\n" +
		"\n" +
		"CRITICAL RULES FOR KB-BASED RESPONSES:\n" +
		"IF Knowledge Base Results contain relevant content:\n" +
		"- Provide steps from KB IMMEDIATELY - do this FIRST\n" +
		"- Ask at most ONE clarifying question, only if KB explicitly requires specific information\n" +
		"- Do NOT ask generic questions like 'what payment method' unless KB says it matters\n" +
		"- Do NOT ask multiple questions - maximum ONE question if absolutely necessary\n" +
		"- If KB has all the information needed, provide it without asking questions\n" +
		"\n" +
		"GENERAL RULES:\n" +
		"- ALWAYS provide actionable steps from KB FIRST, then ask clarifying questions if needed\n" +
		"- Never ask clarifying questions before providing basic steps from KB\n" +
		"- If KB has relevant info, use it immediately\n"

	ticketEnabledNote  = "⚠️ TICKET CREATION CONTROL: You CAN create tickets via create_ticket tool (KB not found or low relevance)."
	ticketDisabledNote = "⚠️ TICKET CREATION CONTROL: You CANNOT create tickets - KB has relevant information, use it to answer the user."

	escalationNote = "\n⚠️ REPEATED ISSUE DETECTED: User mentioned 'still', 'again', or 'repeated'. " +
		"According to KB, repeated payment failures should be escalated to P1 priority ticket.\n"

	userInstructions = "\n\nCRITICAL: Based on the KB results above:\n" +
		"- If KB results are NOT empty: Provide steps from KB IMMEDIATELY. Ask at most ONE clarifying question ONLY if KB explicitly requires specific information.\n" +
		"- If KB results are empty: You can ask clarifying questions or create a ticket.\n" +
		"- NEVER ask multiple questions when KB has relevant content - give steps first, then maximum ONE question if truly needed."

	// promptHitLimit 提示词中最多列出的命中数
	promptHitLimit = 3
)

// Prompt 组装好的首轮消息
type Prompt struct {
	Messages   []llm.Message
	Escalation bool
}

// PromptBuilder 由门控结果组装 system 与 user 消息
type PromptBuilder struct{}

// NewPromptBuilder 创建 PromptBuilder
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// Build 组装首轮消息；KB 上下文只使用通过展示阈值的命中
func (b *PromptBuilder) Build(userMessage string, decision common.GateDecision) Prompt {
	escalate := IsRepeatedIssue(userMessage) && HasBillingHit(decision.Display)
	return Prompt{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: SystemPrompt(decision.TicketEnabled)},
			{Role: llm.RoleUser, Content: "User question: " + userMessage + KBContext(decision.Display, escalate) + userInstructions},
		},
		Escalation: escalate,
	}
}

// SystemPrompt 返回 system 指令，末尾注明本轮是否允许建单
func SystemPrompt(ticketEnabled bool) string {
	note := ticketDisabledNote
	if ticketEnabled {
		note = ticketEnabledNote
	}
	return systemPromptBody + "\n" + note + "\n"
}

// KBContext 渲染知识库命中；无命中时明确告知模型
func KBContext(hits []common.ScoredHit, escalate bool) string {
	if len(hits) == 0 {
		return "\n\nKnowledge Base Results: No relevant articles found.\n"
	}
	var sb strings.Builder
	sb.WriteString("\n\nKnowledge Base Results:\n")
	for i, h := range hits {
		if i >= promptHitLimit {
			break
		}
		fmt.Fprintf(&sb, "%d. [%s]\n", i+1, h.Title)
		fmt.Fprintf(&sb, "   %s\n", h.Snippet)
		fmt.Fprintf(&sb, "   URL: %s\n\n", h.URL)
	}
	if escalate {
		sb.WriteString(escalationNote)
	}
	return sb.String()
}

// IsRepeatedIssue 消息中是否含重复问题关键词（子串匹配，不区分大小写）
func IsRepeatedIssue(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range EscalationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// HasBillingHit 命中中是否有支付相关文章（按文章 ID 判断）
func HasBillingHit(hits []common.ScoredHit) bool {
	for _, h := range hits {
		if strings.Contains(h.ID, "payment") || strings.Contains(h.ID, "billing") {
			return true
		}
	}
	return false
}
