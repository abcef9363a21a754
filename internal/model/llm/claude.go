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
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const anthropicVersion = "2023-06-01"

// ClaudeClient Anthropic messages API 客户端，支持 tool use
type ClaudeClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewClaudeClient 创建新的 Claude 客户端；baseURL 为空时用默认或 ANTHROPIC_BASE_URL
func NewClaudeClient(model, apiKey, baseURL string) (*ClaudeClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("claude api key 未配置")
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
		if envURL := os.Getenv("ANTHROPIC_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}

	client := resty.New()
	client.SetTimeout(60 * time.Second)

	return &ClaudeClient{
		provider: "claude",
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   client,
	}, nil
}

type claudeBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type claudeMessage struct {
	Role    string        `json:"role"`
	Content []claudeBlock `json:"content"`
}

type claudeTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type claudeRequest struct {
	Model       string            `json:"model"`
	System      string            `json:"system,omitempty"`
	Messages    []claudeMessage   `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	Temperature *float64          `json:"temperature,omitempty"`
	Tools       []claudeTool      `json:"tools,omitempty"`
	ToolChoice  map[string]string `json:"tool_choice,omitempty"`
}

type claudeResponse struct {
	Content    []claudeBlock `json:"content"`
	StopReason string        `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// buildClaudeRequest system 消息提到顶层；tool 消息转为 user 角色的 tool_result 块，连续的合并为一条
func (c *ClaudeClient) buildClaudeRequest(messages []Message, options ChatOptions) claudeRequest {
	req := claudeRequest{Model: c.model, MaxTokens: options.MaxTokens}
	if req.MaxTokens <= 0 {
		req.MaxTokens = 1024
	}
	if options.Temperature > 0 {
		t := options.Temperature
		req.Temperature = &t
	}

	var system []string
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleTool:
			block := claudeBlock{Type: "tool_result", ToolUseID: msg.ToolCallID, Content: msg.Content}
			if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == RoleUser && isToolResultMessage(req.Messages[n-1]) {
				req.Messages[n-1].Content = append(req.Messages[n-1].Content, block)
				continue
			}
			req.Messages = append(req.Messages, claudeMessage{Role: RoleUser, Content: []claudeBlock{block}})
		case RoleAssistant:
			m := claudeMessage{Role: RoleAssistant}
			if msg.Content != "" {
				m.Content = append(m.Content, claudeBlock{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				input := json.RawMessage(tc.Arguments)
				if !json.Valid(input) {
					input = json.RawMessage("{}")
				}
				m.Content = append(m.Content, claudeBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input})
			}
			req.Messages = append(req.Messages, m)
		default:
			req.Messages = append(req.Messages, claudeMessage{
				Role:    RoleUser,
				Content: []claudeBlock{{Type: "text", Text: msg.Content}},
			})
		}
	}
	req.System = strings.Join(system, "\n\n")

	for _, t := range options.Tools {
		req.Tools = append(req.Tools, claudeTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}
	if len(req.Tools) > 0 {
		choice := options.ToolChoice
		if choice == "" {
			choice = "auto"
		}
		req.ToolChoice = map[string]string{"type": choice}
	}
	return req
}

func isToolResultMessage(m claudeMessage) bool {
	return len(m.Content) > 0 && m.Content[0].Type == "tool_result"
}

// ChatWithContext 使用上下文聊天
func (c *ClaudeClient) ChatWithContext(ctx context.Context, messages []Message, options ChatOptions) (*Response, error) {
	var result claudeResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetBody(c.buildClaudeRequest(messages, options)).
		SetResult(&result).
		ForceContentType("application/json").
		Post(c.baseURL + "/messages")
	if err != nil {
		return nil, fmt.Errorf("调用 Claude API 失败: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, &StatusError{Provider: c.provider, StatusCode: response.StatusCode(), Body: response.String()}
	}
	if result.StopReason == "" && len(result.Content) == 0 {
		return nil, fmt.Errorf("Claude API 没有返回结果")
	}

	out := &Response{
		FinishReason: result.StopReason,
		Usage: Usage{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
		},
	}
	var text []string
	for _, b := range result.Content {
		switch b.Type {
		case "text":
			text = append(text, b.Text)
		case "tool_use":
			args := string(b.Input)
			if args == "" {
				args = "{}"
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: b.ID, Name: b.Name, Arguments: args})
		}
	}
	out.Content = strings.Join(text, "")
	return out, nil
}

// Model 返回模型名称
func (c *ClaudeClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *ClaudeClient) Provider() string {
	return c.provider
}
