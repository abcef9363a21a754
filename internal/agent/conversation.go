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
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"kb-support/internal/model/llm"
	"kb-support/internal/pipeline/common"
	"kb-support/pkg/log"
	"kb-support/pkg/metrics"
	"kb-support/pkg/tracing"
)

// state 对话编排状态
type state int

const (
	stateAwaitingFirstResponse state = iota
	stateProcessingToolCalls
	stateAwaitingFollowup
	stateDone
)

func (s state) String() string {
	switch s {
	case stateAwaitingFirstResponse:
		return "awaiting_first_response"
	case stateProcessingToolCalls:
		return "processing_tool_calls"
	case stateAwaitingFollowup:
		return "awaiting_followup"
	case stateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// conversation 单次请求的编排状态机；budget 为剩余 LLM 调用次数，最后一次调用不提供工具
type conversation struct {
	agent    *Agent
	logger   *log.Logger
	message  string
	decision common.GateDecision
	messages []llm.Message
	tools    []llm.ToolDefinition

	budget    int
	iteration int
	pending   []llm.ToolCall
	answer    string
	// trace 第一条固定为本地预检索的 search_kb
	trace []common.ToolInvocation
}

func newConversation(a *Agent, logger *log.Logger, message string, decision common.GateDecision, messages []llm.Message, tools []llm.ToolDefinition) *conversation {
	return &conversation{
		agent:    a,
		logger:   logger,
		message:  message,
		decision: decision,
		messages: messages,
		tools:    tools,
		budget:   a.maxIterations,
		trace: []common.ToolInvocation{{
			Name:   common.ToolSearchKB,
			Args:   map[string]interface{}{"query": message},
			Result: decision.Display,
		}},
	}
}

// run 驱动状态机直到 stateDone；每次迭代消耗一次预算，因此必然终止
func (c *conversation) run(ctx context.Context) error {
	st := stateAwaitingFirstResponse
	for st != stateDone {
		var err error
		switch st {
		case stateAwaitingFirstResponse, stateAwaitingFollowup:
			st, err = c.call(ctx, st)
		case stateProcessingToolCalls:
			st, err = c.executeTools(ctx)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *conversation) call(ctx context.Context, from state) (state, error) {
	c.iteration++
	c.budget--
	var tools []llm.ToolDefinition
	if c.budget > 0 {
		tools = c.tools
	}

	client := c.agent.client
	c.logger.Debug("llm request",
		"stage", "llm",
		"iteration", c.iteration,
		"messages", len(c.messages),
		"tools", len(tools),
	)
	spanCtx, span := tracing.StartLLMSpan(ctx, client.Provider(), client.Model(), c.iteration, len(tools) > 0)
	resp, err := client.ChatWithContext(spanCtx, c.messages, llm.ChatOptions{
		Temperature: c.agent.temperature,
		MaxTokens:   c.agent.maxTokens,
		Tools:       tools,
	})
	tracing.EndSpan(span, err)
	if err != nil {
		c.logger.Error("llm call failed", "stage", "llm", "iteration", c.iteration, "error", err)
		return stateDone, common.NewPipelineError("llm", "调用模型失败", err)
	}

	c.logger.Debug("llm response",
		"stage", "llm",
		"iteration", c.iteration,
		"finish_reason", resp.FinishReason,
		"content_len", len(resp.Content),
		"tool_calls", len(resp.ToolCalls),
	)

	c.answer = strings.TrimSpace(resp.Content)
	if len(resp.ToolCalls) == 0 {
		return stateDone, nil
	}
	// 后续轮次一旦给出文本即结束，其附带的工具调用不再执行；首轮仍执行工具
	if from == stateAwaitingFollowup && c.answer != "" {
		c.logger.Debug("followup answer with tool calls, ignoring tools",
			"stage", "llm",
			"iteration", c.iteration,
			"tool_calls", len(resp.ToolCalls),
		)
		return stateDone, nil
	}
	c.messages = append(c.messages, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})
	c.pending = resp.ToolCalls
	return stateProcessingToolCalls, nil
}

func (c *conversation) executeTools(ctx context.Context) (state, error) {
	pending := c.pending
	c.pending = nil
	for _, tc := range pending {
		if err := c.executeTool(ctx, tc); err != nil {
			return stateDone, err
		}
	}
	if c.budget <= 0 {
		return stateDone, nil
	}
	return stateAwaitingFollowup, nil
}

func (c *conversation) executeTool(ctx context.Context, tc llm.ToolCall) error {
	if tc.Name == common.ToolSearchKB {
		// 检索已在本地完成，模型不应再请求；用已有结果应答以保持消息协议完整
		c.logger.Warn("search_kb warning",
			"stage", "tool",
			"iteration", c.iteration,
			"reason", "model requested search_kb, using pre-fetched results",
		)
		metrics.ToolCallsTotal.WithLabelValues(tc.Name, "synthetic").Inc()
		c.trace = append(c.trace, common.ToolInvocation{
			Name:   common.ToolSearchKB,
			Args:   map[string]interface{}{"query": c.message},
			Result: c.decision.Display,
		})
		c.appendToolMessage(tc, c.decision.Display)
		return nil
	}

	t, ok := c.agent.tools.Get(tc.Name)
	if !ok {
		metrics.ToolCallsTotal.WithLabelValues(tc.Name, "unknown").Inc()
		c.logger.Error("unknown tool", "stage", "tool", "tool_name", tc.Name)
		return common.NewPipelineError("tool", "模型请求了未注册的工具", fmt.Errorf("%w: %s", common.ErrUnknownTool, tc.Name))
	}

	c.logger.Info("tool call", "stage", "tool", "tool_name", tc.Name, "iteration", c.iteration, "args", tc.Arguments)

	args, err := parseToolArgs(tc.Arguments)
	if err != nil {
		c.toolFailed(tc, map[string]interface{}{"raw": tc.Arguments}, err)
		return nil
	}

	spanCtx, span := tracing.StartToolSpan(ctx, tc.Name)
	res, err := t.Execute(spanCtx, args)
	tracing.EndSpan(span, err)
	if err != nil {
		c.toolFailed(tc, args, err)
		return nil
	}

	metrics.ToolCallsTotal.WithLabelValues(tc.Name, "ok").Inc()
	result := res.Data
	if result == nil {
		result = res.Content
	}
	c.trace = append(c.trace, common.ToolInvocation{Name: tc.Name, Args: args, Result: result})
	c.messages = append(c.messages, llm.Message{
		Role:       llm.RoleTool,
		Content:    res.Content,
		ToolCallID: tc.ID,
		Name:       tc.Name,
	})
	return nil
}

// toolFailed 工具失败不终止请求：记录轨迹并把错误回传给模型
func (c *conversation) toolFailed(tc llm.ToolCall, args map[string]interface{}, err error) {
	metrics.ToolCallsTotal.WithLabelValues(tc.Name, "error").Inc()
	c.logger.Warn("tool call failed", "stage", "tool", "tool_name", tc.Name, "error", err)
	result := map[string]interface{}{"error": err.Error()}
	c.trace = append(c.trace, common.ToolInvocation{Name: tc.Name, Args: args, Result: result})
	c.appendToolMessage(tc, result)
}

func (c *conversation) appendToolMessage(tc llm.ToolCall, v interface{}) {
	content, err := json.Marshal(v)
	if err != nil {
		content = []byte(`{}`)
	}
	c.messages = append(c.messages, llm.Message{
		Role:       llm.RoleTool,
		Content:    string(content),
		ToolCallID: tc.ID,
		Name:       tc.Name,
	})
}

func parseToolArgs(raw string) (map[string]interface{}, error) {
	args := map[string]interface{}{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToolArgs, err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}
