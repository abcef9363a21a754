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

package llm

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToEinoMessages(t *testing.T) {
	msgs := toEinoMessages([]Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "create_ticket", Arguments: "{}"}}},
		{Role: RoleTool, ToolCallID: "c1", Name: "create_ticket", Content: "{}"},
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, schema.User, msgs[0].Role)
	assert.Equal(t, schema.Assistant, msgs[1].Role)
	assert.Equal(t, "create_ticket", msgs[1].ToolCalls[0].Function.Name)
	assert.Equal(t, schema.Tool, msgs[2].Role)
	assert.Equal(t, "c1", msgs[2].ToolCallID)
}

func TestFromEinoMessage(t *testing.T) {
	resp := fromEinoMessage(&schema.Message{
		Role:    schema.Assistant,
		Content: "done",
		ToolCalls: []schema.ToolCall{
			{ID: "c2", Function: schema.FunctionCall{Name: "create_ticket", Arguments: `{"title":"a"}`}},
		},
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: "stop",
			Usage:        &schema.TokenUsage{PromptTokens: 7, CompletionTokens: 2},
		},
	})
	assert.Equal(t, "done", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, Usage{PromptTokens: 7, CompletionTokens: 2}, resp.Usage)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "c2", resp.ToolCalls[0].ID)

	assert.Equal(t, &Response{}, fromEinoMessage(nil))
}

func TestToEinoTools(t *testing.T) {
	infos := toEinoTools([]ToolDefinition{ticketTool})
	require.Len(t, infos, 1)
	assert.Equal(t, "create_ticket", infos[0].Name)
	assert.NotNil(t, infos[0].ParamsOneOf)
}
