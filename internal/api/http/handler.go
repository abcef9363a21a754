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

package http

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"kb-support/internal/agent"
	"kb-support/internal/pipeline/common"
	"kb-support/internal/storage/runlog"
	"kb-support/pkg/log"
	"kb-support/pkg/metrics"
)

// maxHistoryLimit /history 单次最多返回的行数
const maxHistoryLimit = 500

// ChatService 对话与建单能力（由 agent.Agent 实现）
type ChatService interface {
	Chat(ctx context.Context, threadID, message string) (*agent.Result, error)
	CreateTicket(ctx context.Context, threadID string, args map[string]any) (*common.Ticket, error)
}

// Handler HTTP 处理器
type Handler struct {
	chat   ChatService
	runs   runlog.Store
	logger *log.Logger
}

// NewHandler 创建新的 HTTP 处理器；runs 为 nil 时 /history 与 /threads 返回 503
func NewHandler(chat ChatService, runs runlog.Store) *Handler {
	return &Handler{chat: chat, runs: runs, logger: log.Nop()}
}

// SetLogger 设置日志
func (h *Handler) SetLogger(l *log.Logger) {
	if l != nil {
		h.logger = l
	}
}

// ChatRequest POST /chat 请求体
type ChatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

// CreateTicketRequest POST /create-ticket 请求体
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	ThreadID    string `json:"thread_id"`
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "kb-support",
	})
}

// Chat 处理一条支持问题
// POST /chat
func (h *Handler) Chat(c context.Context, ctx *app.RequestContext) {
	var req ChatRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}
	if h.chat == nil {
		ctx.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "chat is not configured"})
		return
	}

	res, err := h.chat.Chat(c, req.ThreadID, req.Message)
	if err != nil {
		if errors.Is(err, common.ErrEmptyQuery) {
			ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "message is required"})
			return
		}
		hlog.CtxErrorf(c, "chat failed: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	// LLM 失败同样返回 200，由 error 字段标识
	ctx.JSON(consts.StatusOK, res.Response)
}

// CreateTicket 直接创建工单
// POST /create-ticket
func (h *Handler) CreateTicket(c context.Context, ctx *app.RequestContext) {
	var req CreateTicketRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "invalid request", "ticket_id": nil})
		return
	}
	if h.chat == nil {
		ctx.JSON(consts.StatusServiceUnavailable, map[string]interface{}{"error": "ticketing is not configured", "ticket_id": nil})
		return
	}

	args := map[string]any{
		"title":       req.Title,
		"description": req.Description,
	}
	if req.Priority != "" {
		args["priority"] = req.Priority
	}
	ticket, err := h.chat.CreateTicket(c, req.ThreadID, args)
	if err != nil {
		status := consts.StatusInternalServerError
		if errors.Is(err, common.ErrInvalidToolArgs) {
			status = consts.StatusBadRequest
		}
		h.logger.Warn("create ticket failed", "request_id", log.RequestIDFrom(c), "error", err)
		ctx.JSON(status, map[string]interface{}{"error": err.Error(), "ticket_id": nil})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]string{
		"ticket_id": ticket.TicketID,
		"priority":  ticket.Priority,
		"status":    ticket.Status,
	})
}

// History 按会话查询运行日志
// GET /history?thread_id=&limit=20
func (h *Handler) History(c context.Context, ctx *app.RequestContext) {
	if h.runs == nil {
		ctx.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "run log is not configured"})
		return
	}
	limit := runlog.DefaultHistoryLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := h.runs.History(c, strings.TrimSpace(ctx.Query("thread_id")), limit)
	if err != nil {
		hlog.CtxErrorf(c, "query history failed: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": "failed to query history"})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{"history": rows})
}

// Threads 列出所有会话及记录数
// GET /threads
func (h *Handler) Threads(c context.Context, ctx *app.RequestContext) {
	if h.runs == nil {
		ctx.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "run log is not configured"})
		return
	}
	threads, err := h.runs.Threads(c)
	if err != nil {
		hlog.CtxErrorf(c, "query threads failed: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": "failed to query threads"})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{"threads": threads})
}

// Metrics Prometheus 指标
// GET /metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
