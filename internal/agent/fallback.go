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

package agent

import (
	"fmt"
	"strings"

	"kb-support/internal/pipeline/common"
)

const (
	fallbackHitLimit = 3
	noResultAnswer   = "I couldn't find relevant information in the knowledge base. Please rephrase your question or create a support ticket."
)

// FallbackAnswer 模型始终未给出文本时的确定性回答：优先列出知识库命中，其次工单，最后通用提示
func FallbackAnswer(hits []common.ScoredHit, ticket *common.Ticket) string {
	switch {
	case len(hits) > 0:
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d relevant articles in knowledge base:\n\n", len(hits))
		for i, h := range hits {
			if i >= fallbackHitLimit {
				break
			}
			title := h.Title
			if title == "" {
				title = "Untitled"
			}
			fmt.Fprintf(&b, "**%s**\n%s\n📎 %s\n\n", title, h.Snippet, h.URL)
		}
		return b.String()
	case ticket != nil:
		priority := ticket.Priority
		if priority == "" {
			priority = "P2"
		}
		return fmt.Sprintf("✅ Created support ticket **%s** with priority %s.\n\nOur support team will contact you soon.", ticket.TicketID, priority)
	default:
		return noResultAnswer
	}
}
