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
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxNextSteps next_steps 最多条数
const MaxNextSteps = 4

// StepTemplate 一篇文章对应的下一步建议；Clarify 为追问时追加的一条，空则用默认
type StepTemplate struct {
	Steps   []string
	Clarify string
}

// StepTemplates 按文章 ID 查找下一步模板，未知 ID 使用默认模板
type StepTemplates struct {
	byID     map[string]StepTemplate
	fallback StepTemplate
}

// NewStepTemplates 创建模板表
func NewStepTemplates(byID map[string]StepTemplate, fallback StepTemplate) *StepTemplates {
	m := make(map[string]StepTemplate, len(byID))
	for k, v := range byID {
		m[k] = v
	}
	return &StepTemplates{byID: m, fallback: fallback}
}

// DefaultStepTemplates 内置五个主题的模板
func DefaultStepTemplates() *StepTemplates {
	return NewStepTemplates(map[string]StepTemplate{
		"pw_reset": {
			Steps: []string{
				"Use \"Sign in with Google\" on the login page",
				"If you still can't access the account, send the exact error message (and when it happens)",
				"If you lost access to Google, use Google Account Recovery (we can't reset Google passwords)",
			},
			Clarify: "Are you trying to log in, or did you lose access to Google account?",
		},
		"billing_failed": {
			Steps: []string{
				"Check payment gateway status page",
				"Verify invoice ID and last 4 digits of payment method",
				"Try payment again after 10-15 minutes",
			},
			Clarify: "Provide invoice ID and last 4 digits of payment method",
		},
		"two_factor_auth": {
			Steps: []string{
				"Open Settings → Security",
				"Choose Authenticator app or SMS",
				"Save backup codes in a secure place",
			},
			Clarify: "Reply with your preferred 2FA method (app or SMS)",
		},
		"api_rate_limit": {
			Steps: []string{
				"Check your API usage in dashboard",
				"Wait 1 hour for rate limit reset",
				"Consider upgrading to Pro tier if needed",
			},
		},
		"account_deletion": {
			Steps: []string{
				"Go to Settings → Account → Delete Account",
				"Confirm deletion request",
				"Note: data deleted within 30 days",
			},
		},
	}, StepTemplate{
		Steps: []string{
			"Follow the steps provided above",
			"Check the knowledge base article for details",
		},
		Clarify: "Answer the clarifying question above",
	})
}

// For 返回文章 ID 对应模板，Clarify 已按默认补齐
func (t *StepTemplates) For(articleID string) StepTemplate {
	tpl, ok := t.byID[articleID]
	if !ok {
		return t.fallback
	}
	if tpl.Clarify == "" {
		tpl.Clarify = t.fallback.Clarify
	}
	return tpl
}

// Steps 生成基于文章的下一步；clarifying 时追加一条追问提示
func (t *StepTemplates) Steps(articleID string, clarifying bool) []string {
	tpl := t.For(articleID)
	steps := append([]string(nil), tpl.Steps...)
	if clarifying {
		steps = append(steps, tpl.Clarify)
	}
	return steps
}

var (
	nextStepsBlock = regexp.MustCompile(`(?im)(?:5\.\s*)?Next steps[:\-]?\s*\n((?:[-•]\s*[^\n]+\n?)+)`)
	bulletLine     = regexp.MustCompile(`^[-•]\s*(.+)$`)
)

// ExtractNextSteps 从 "Next steps" 标题后的项目符号列表中提取步骤
//
// 追问型回答不提取；每条需超过 10 个字符且不以问号结尾。
func ExtractNextSteps(text string) []string {
	if IsClarifying(text) {
		return nil
	}
	m := nextStepsBlock.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var steps []string
	for _, line := range strings.Split(strings.TrimSpace(m[1]), "\n") {
		bm := bulletLine.FindStringSubmatch(strings.TrimSpace(line))
		if bm == nil {
			continue
		}
		step := strings.TrimSpace(bm[1])
		if utf8.RuneCountInString(step) > 10 && !strings.HasSuffix(step, "?") {
			steps = append(steps, step)
		}
		if len(steps) == MaxNextSteps {
			break
		}
	}
	return steps
}

// GenericNextSteps 无知识库命中且未能从正文提取时的兜底建议
func GenericNextSteps(ticketID string, clarifying bool) []string {
	switch {
	case ticketID != "":
		return []string{
			"Wait for response on ticket " + ticketID,
			"Check your email for updates",
			"Contact support if urgent",
		}
	case clarifying:
		return []string{
			"Answer the clarifying questions above",
			"Provide more details about your issue",
			"We'll help you once we have more information",
		}
	default:
		return []string{
			"Try rephrasing your question",
			"Check if your issue matches common problems",
			"Create a support ticket for assistance",
		}
	}
}
