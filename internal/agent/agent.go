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
	"fmt"
	"strings"
	"time"

	"kb-support/internal/model/llm"
	"kb-support/internal/pipeline/common"
	"kb-support/internal/pipeline/query"
	"kb-support/internal/storage/runlog"
	"kb-support/internal/tool/registry"
	"kb-support/pkg/log"
	"kb-support/pkg/metrics"
	"kb-support/pkg/tracing"
)

// DefaultMaxIterations 单次请求最多的 LLM 调用次数
const DefaultMaxIterations = 3

// DefaultThreadID 未指定 thread_id 时使用
const DefaultThreadID = "demo-thread"

// 请求结果分类，对应 kbsupport_chat_requests_total 的 outcome 标签
const (
	OutcomeAnswered = "answered"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

// Result 一次 Chat 的结果
type Result struct {
	Response   common.StructuredResponse `json:"response"`
	Answer     string                    `json:"answer"` // 清洗前的回答（写入运行日志）
	Trace      []common.ToolInvocation   `json:"trace"`
	Iterations int                       `json:"iterations"`
	Outcome    string                    `json:"outcome"`
	Duration   time.Duration             `json:"duration"`
	// Err 被吸收为错误响应的失败（LLM 调用失败、未知工具等）
	Err error `json:"-"`
}

// Agent 支持对话入口：检索 -> 门控 -> 对话编排 -> 结构化 -> 运行日志
type Agent struct {
	client        llm.Client
	searcher      query.Searcher
	gate          *query.Gate
	prompts       *query.PromptBuilder
	structurer    *query.Structurer
	tools         *registry.Registry
	runs          *runlog.Writer
	logger        *log.Logger
	settings      query.Settings
	maxIterations int
	temperature   float64
	maxTokens     int
	threadID      string
}

// AgentOption 可选配置
type AgentOption func(*Agent)

// WithMaxIterations 设置单次请求最多的 LLM 调用次数
func WithMaxIterations(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithLogger 设置日志
func WithLogger(l *log.Logger) AgentOption {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRunLog 设置运行日志写入器
func WithRunLog(w *runlog.Writer) AgentOption {
	return func(a *Agent) {
		a.runs = w
	}
}

// WithSettings 设置检索与门控参数
func WithSettings(s query.Settings) AgentOption {
	return func(a *Agent) {
		a.settings = s.WithDefaults()
		a.gate = query.NewGate(a.settings)
	}
}

// WithStructurer 替换结构化组件（如自定义 next steps 模板）
func WithStructurer(s *query.Structurer) AgentOption {
	return func(a *Agent) {
		if s != nil {
			a.structurer = s
		}
	}
}

// WithSampling 设置模型温度与最大输出 token
func WithSampling(temperature float64, maxTokens int) AgentOption {
	return func(a *Agent) {
		a.temperature = temperature
		a.maxTokens = maxTokens
	}
}

// WithDefaultThreadID 设置默认会话 ID
func WithDefaultThreadID(id string) AgentOption {
	return func(a *Agent) {
		if id != "" {
			a.threadID = id
		}
	}
}

// New 创建 Agent；tools 中需注册 create_ticket
func New(client llm.Client, searcher query.Searcher, tools *registry.Registry, opts ...AgentOption) *Agent {
	settings := query.DefaultSettings()
	a := &Agent{
		client:        client,
		searcher:      searcher,
		gate:          query.NewGate(settings),
		prompts:       query.NewPromptBuilder(),
		structurer:    query.NewStructurer(nil),
		tools:         tools,
		logger:        log.Nop(),
		settings:      settings,
		maxIterations: DefaultMaxIterations,
		threadID:      DefaultThreadID,
	}
	for _, o := range opts {
		o(a)
	}
	if a.tools == nil {
		a.tools = registry.New()
	}
	return a
}

// Chat 处理一条用户消息；仅输入非法时返回 error，其余失败体现在 Result.Response.Error
func (a *Agent) Chat(ctx context.Context, threadID, message string) (*Result, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, common.NewPipelineError("agent", "message 不能为空", common.ErrEmptyQuery)
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		threadID = a.threadID
	}

	start := time.Now()
	ctx, span := tracing.StartChatSpan(ctx, threadID)
	logger := a.logger.With("thread_id", threadID, "request_id", log.RequestIDFrom(ctx))

	result := a.chat(ctx, logger, threadID, message)
	result.Duration = time.Since(start)

	metrics.ChatDuration.Observe(result.Duration.Seconds())
	metrics.ChatRequestsTotal.WithLabelValues(result.Outcome).Inc()
	tracing.EndSpan(span, result.Err)

	logger.Info("final result",
		"stage", a.structurer.Name(),
		"outcome", result.Outcome,
		"sources", len(result.Response.Sources),
		"actions", result.Response.ActionsTaken,
		"confidence", result.Response.Confidence,
		"iterations", result.Iterations,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

func (a *Agent) chat(ctx context.Context, logger *log.Logger, threadID, message string) *Result {
	retrieved, err := a.searcher.Search(ctx, message, a.settings.RetrievalLimit)
	if err != nil {
		logger.Error("knowledge base search failed", "stage", "retriever", "error", err)
		return errorResult(common.NewPipelineError("retriever", "检索失败", err))
	}
	decision := a.gate.Decide(retrieved)
	metrics.KBTopScore.Observe(decision.TopScore)
	logger.Debug("retrieval",
		"stage", a.gate.Name(),
		"hits", len(retrieved.Hits),
		"any_hit", decision.AnyHit,
		"display", len(decision.Display),
		"top_score", decision.TopScore,
		"ticket_enabled", decision.TicketEnabled,
	)

	var defs []llm.ToolDefinition
	if decision.TicketEnabled {
		defs, err = a.tools.Definitions(common.ToolCreateTicket)
		if err != nil {
			logger.Error("tool definitions unavailable", "stage", "agent", "error", err)
			return errorResult(common.NewPipelineError("agent", "工具未注册", err))
		}
	}

	prompt := a.prompts.Build(message, decision)
	if prompt.Escalation {
		logger.Info("repeated billing issue", "stage", "prompt")
	}

	conv := newConversation(a, logger, message, decision, prompt.Messages, defs)
	if err := conv.run(ctx); err != nil {
		res := errorResult(err)
		res.Trace = conv.trace
		res.Iterations = conv.iteration
		return res
	}

	answer := conv.answer
	outcome := OutcomeAnswered
	if answer == "" {
		answer = FallbackAnswer(decision.Display, ticketFromTrace(conv.trace))
		outcome = OutcomeFallback
	}

	for _, inv := range conv.trace {
		a.runs.Log(ctx, threadID, message, inv.Name, inv.Args, inv.Result, answer)
	}

	return &Result{
		Response:   a.structurer.Build(answer, conv.trace, decision.Display, decision.TopScore),
		Answer:     answer,
		Trace:      conv.trace,
		Iterations: conv.iteration,
		Outcome:    outcome,
	}
}

// CreateTicket 直接建单（/create-ticket），写一行运行日志
func (a *Agent) CreateTicket(ctx context.Context, threadID string, args map[string]any) (*common.Ticket, error) {
	t, ok := a.tools.Get(common.ToolCreateTicket)
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownTool, common.ToolCreateTicket)
	}
	if strings.TrimSpace(threadID) == "" {
		threadID = a.threadID
	}
	ctx, span := tracing.StartToolSpan(ctx, t.Name())
	res, err := t.Execute(ctx, args)
	tracing.EndSpan(span, err)
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(t.Name(), "error").Inc()
		return nil, err
	}
	metrics.ToolCallsTotal.WithLabelValues(t.Name(), "ok").Inc()
	ticket := query.TicketFromResult(res.Data)
	if ticket == nil {
		return nil, fmt.Errorf("create_ticket returned no ticket id")
	}
	description, _ := args["description"].(string)
	a.runs.Log(ctx, threadID, description, t.Name(), args, ticket, "Ticket "+ticket.TicketID+" created")
	return ticket, nil
}

// Model 返回当前模型标识
func (a *Agent) Model() string {
	return a.client.Provider() + "/" + a.client.Model()
}

func errorResult(err error) *Result {
	return &Result{
		Response: query.ErrorResponse(err),
		Trace:    []common.ToolInvocation{},
		Outcome:  OutcomeError,
		Err:      err,
	}
}

func ticketFromTrace(trace []common.ToolInvocation) *common.Ticket {
	var ticket *common.Ticket
	for _, inv := range trace {
		if inv.Name != common.ToolCreateTicket {
			continue
		}
		if t := query.TicketFromResult(inv.Result); t != nil {
			ticket = t
		}
	}
	return ticket
}
