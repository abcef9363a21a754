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
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoClient 通过 eino ChatModel 调用模型（model.backend=eino）
type EinoClient struct {
	provider string
	modelID  string
	chat     model.ToolCallingChatModel
}

// NewEinoOpenAIClient 基于 eino-ext OpenAI ChatModel 创建客户端
func NewEinoOpenAIClient(ctx context.Context, provider, modelName, apiKey, baseURL string, timeout time.Duration) (*EinoClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s api key 未配置", provider)
	}
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:   modelName,
		APIKey:  apiKey,
		BaseURL: baseURL,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 eino ChatModel 失败: %w", err)
	}
	return NewEinoClient(provider, modelName, cm), nil
}

// NewEinoClient 包装任意 ToolCallingChatModel
func NewEinoClient(provider, modelName string, chat model.ToolCallingChatModel) *EinoClient {
	return &EinoClient{provider: provider, modelID: modelName, chat: chat}
}

// ChatWithContext 使用上下文聊天；有工具时通过 WithTools 得到绑定工具的新实例，不修改共享模型
func (c *EinoClient) ChatWithContext(ctx context.Context, messages []Message, options ChatOptions) (*Response, error) {
	chat := c.chat
	if len(options.Tools) > 0 {
		bound, err := chat.WithTools(toEinoTools(options.Tools))
		if err != nil {
			return nil, fmt.Errorf("绑定工具失败: %w", err)
		}
		chat = bound
	}

	var opts []model.Option
	if options.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(options.Temperature)))
	}
	if options.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(options.MaxTokens))
	}

	msg, err := chat.Generate(ctx, toEinoMessages(messages), opts...)
	if err != nil {
		return nil, fmt.Errorf("eino generate 失败: %w", err)
	}
	return fromEinoMessage(msg), nil
}

// Model 返回模型名称
func (c *EinoClient) Model() string { return c.modelID }

// Provider 返回提供商名称
func (c *EinoClient) Provider() string { return c.provider }

func toEinoMessages(messages []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		em := &schema.Message{
			Role:       schema.RoleType(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			ToolName:   m.Name,
		}
		for _, tc := range m.ToolCalls {
			em.ToolCalls = append(em.ToolCalls, schema.ToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: schema.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		out = append(out, em)
	}
	return out
}

func fromEinoMessage(msg *schema.Message) *Response {
	resp := &Response{}
	if msg == nil {
		return resp
	}
	resp.Content = msg.Content
	for _, tc := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	if msg.ResponseMeta != nil {
		resp.FinishReason = msg.ResponseMeta.FinishReason
		if u := msg.ResponseMeta.Usage; u != nil {
			resp.Usage = Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens}
		}
	}
	return resp
}

// toEinoTools 将 JSON Schema 形式的顶层参数转为 eino ParameterInfo
func toEinoTools(defs []ToolDefinition) []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(defs))
	for _, d := range defs {
		required := map[string]bool{}
		if req, ok := d.Parameters["required"].([]string); ok {
			for _, r := range req {
				required[r] = true
			}
		}
		params := map[string]*schema.ParameterInfo{}
		if props, ok := d.Parameters["properties"].(map[string]interface{}); ok {
			for name, raw := range props {
				p, _ := raw.(map[string]interface{})
				typ, _ := p["type"].(string)
				desc, _ := p["description"].(string)
				params[name] = &schema.ParameterInfo{
					Type:     schema.DataType(typ),
					Desc:     desc,
					Required: required[name],
				}
			}
		}
		infos = append(infos, &schema.ToolInfo{
			Name:        d.Name,
			Desc:        d.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return infos
}
