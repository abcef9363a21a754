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
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"kb-support/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler        *Handler
	middleware     *middleware.Middleware
	metricsEnabled bool
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	if mw == nil {
		mw = middleware.NewMiddleware(middleware.Config{})
	}
	return &Router{handler: handler, middleware: mw, metricsEnabled: true}
}

// SetMetricsEnabled 是否暴露 GET /metrics
func (r *Router) SetMetricsEnabled(enabled bool) {
	r.metricsEnabled = enabled
}

// Build 创建 Hertz 实例并注册路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(opts...)
	r.Register(h)
	return h
}

// Register 在已有 Hertz 实例上注册中间件与路由
func (r *Router) Register(h *server.Hertz) {
	h.Use(
		r.middleware.RequestID(),
		r.middleware.AccessLog(),
		r.middleware.CORS(),
	)

	// 预检请求由 CORS 中间件应答
	h.OPTIONS("/*path", func(ctx context.Context, c *app.RequestContext) {
		c.Status(consts.StatusNoContent)
	})

	h.GET("/api/health", r.handler.HealthCheck)
	if r.metricsEnabled {
		h.GET("/metrics", r.handler.Metrics)
	}

	limited := h.Group("/", r.middleware.RateLimit())
	limited.POST("/chat", r.handler.Chat)
	limited.POST("/create-ticket", r.handler.CreateTicket)
	limited.GET("/history", r.handler.History)
	limited.GET("/threads", r.handler.Threads)
}
