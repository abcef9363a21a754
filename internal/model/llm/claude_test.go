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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeClient_BuildRequest(t *testing.T) {
	c, err := NewClaudeClient("claude-test", "k", "http://unused")
	require.NoError(t, err)

	req := c.buildClaudeRequest([]Message{
		{Role: RoleSystem, Content: "be helpful"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "tu_1", Name: "create_ticket", Arguments: `{"title":"a","description":"b"}`},
			{ID: "tu_2", Name: "create_ticket", Arguments: `not json`},
		}},
		{Role: RoleTool, ToolCallID: "tu_1", Content: `{"ticket_id":"TCK-1"}`},
		{Role: RoleTool, ToolCallID: "tu_2", Content: `{"error":"bad"}`},
	}, ChatOptions{Tools: []ToolDefinition{ticketTool}})

	assert.Equal(t, "be helpful", req.System)
	assert.Equal(t, 1024, req.MaxTokens)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, RoleAssistant, req.Messages[1].Role)
	assert.Equal(t, "tool_use", req.Messages[1].Content[0].Type)
	assert.JSONEq(t, `{}`, string(req.Messages[1].Content[1].Input))

	results := req.Messages[2]
	assert.Equal(t, RoleUser, results.Role)
	require.Len(t, results.Content, 2)
	assert.Equal(t, "tu_2", results.Content[1].ToolUseID)

	require.Len(t, req.Tools, 1)
	assert.Equal(t, map[string]string{"type": "auto"}, req.ToolChoice)
}

func TestClaudeClient_ParsesToolUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sys", body["system"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"stop_reason": "tool_use",
			"content": [
				{"type": "text", "text": "Creating a ticket."},
				{"type": "tool_use", "id": "tu_9", "name": "create_ticket", "input": {"title": "x", "description": "y"}}
			],
			"usage": {"input_tokens": 20, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	c, err := NewClaudeClient("claude-test", "k", srv.URL)
	require.NoError(t, err)
	resp, err := c.ChatWithContext(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "help"},
	}, ChatOptions{Tools: []ToolDefinition{ticketTool}})
	require.NoError(t, err)

	assert.Equal(t, "Creating a ticket.", resp.Content)
	assert.Equal(t, "tool_use", resp.FinishReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "tu_9", resp.ToolCalls[0].ID)
	assert.JSONEq(t, `{"title":"x","description":"y"}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, 5, resp.Usage.CompletionTokens)
}

func TestClaudeClient_DecodesMislabeledJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(`{"stop_reason":"end_turn","content":[{"type":"text","text":"decoded"}]}`))
	}))
	defer srv.Close()

	c, err := NewClaudeClient("claude-test", "k", srv.URL)
	require.NoError(t, err)
	resp, err := c.ChatWithContext(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "decoded", resp.Content)
	assert.Equal(t, "end_turn", resp.FinishReason)
}

func TestClaudeClient_EmptyBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := NewClaudeClient("claude-test", "k", srv.URL)
	require.NoError(t, err)
	_, err = c.ChatWithContext(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, ChatOptions{})
	assert.Error(t, err)
}
