package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Client LLM 客户端接口：给定角色消息与可选工具定义，返回文本或工具调用请求
type Client interface {
	// ChatWithContext 使用上下文聊天
	ChatWithContext(ctx context.Context, messages []Message, options ChatOptions) (*Response, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// ChatOptions 聊天选项；Tools 为空表示本轮不开放任何工具
type ChatOptions struct {
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"` // auto | none
}

// Message 聊天消息
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`  // assistant 请求的工具调用
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool 消息对应的调用 ID
	Name       string     `json:"name,omitempty"`
}

// ToolCall 模型请求的一次工具调用，Arguments 为 JSON 字符串
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition 暴露给模型的工具定义，Parameters 为 JSON Schema
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Usage token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Response 模型回复
type Response struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason"`
	Usage        Usage      `json:"usage"`
}

// StatusError 提供商返回的非 2xx 响应
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API 返回错误 (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// IsTransient 判断错误是否值得重试：网络错误、单次尝试超时、429 与 5xx
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == 429 || se.StatusCode >= 500
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// NewClient 创建新的 LLM 客户端；baseURL 用于 OpenAI 兼容端点（如 Qwen/DashScope），空则用默认或环境变量
func NewClient(provider, model, apiKey string, baseURL string) (Client, error) {
	switch provider {
	case "openai", "qwen":
		return NewOpenAIClientWithBaseURL(provider, model, apiKey, baseURL)
	case "claude":
		return NewClaudeClient(model, apiKey, baseURL)
	default:
		return nil, fmt.Errorf("不支持的 LLM 提供商: %s", provider)
	}
}
