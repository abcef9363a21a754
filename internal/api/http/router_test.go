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
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"

	"kb-support/internal/api/http/middleware"
	"kb-support/internal/storage/runlog"
	"kb-support/pkg/metrics"
)

func empty() *ut.Body {
	return &ut.Body{Body: bytes.NewReader(nil), Len: 0}
}

func seededRunsForRouter() runlog.Store {
	return runlog.NewMemoryStore()
}

func buildRouterForTest(mw *middleware.Middleware) *server.Hertz {
	h := NewHandler(&stubChat{}, seededRunsForRouter())
	return NewRouter(h, mw).Build(":0")
}

func TestRouter_Routes(t *testing.T) {
	s := buildRouterForTest(nil)

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{"GET", "/api/health", 200},
		{"GET", "/threads", 200},
		{"GET", "/history", 200},
		{"POST", "/create-ticket", 200},
		{"GET", "/unknown", 404},
	} {
		body := []byte(`{"title":"t","description":"d"}`)
		w := ut.PerformRequest(s.Engine, tc.method, tc.path, &ut.Body{Body: bytes.NewReader(body), Len: len(body)},
			ut.Header{Key: "Content-Type", Value: "application/json"})
		assert.Equal(t, tc.want, w.Result().StatusCode(), tc.path)
	}
}

func TestRouter_RequestIDHeader(t *testing.T) {
	s := buildRouterForTest(nil)

	w := ut.PerformRequest(s.Engine, "GET", "/api/health", empty())
	assert.NotEmpty(t, w.Result().Header.Get(middleware.HeaderRequestID))

	w = ut.PerformRequest(s.Engine, "GET", "/api/health", empty(), ut.Header{Key: middleware.HeaderRequestID, Value: "req-42"})
	assert.Equal(t, "req-42", w.Result().Header.Get(middleware.HeaderRequestID))
}

func TestRouter_Metrics(t *testing.T) {
	metrics.ChatRequestsTotal.WithLabelValues("answered").Add(0)
	s := buildRouterForTest(nil)

	w := ut.PerformRequest(s.Engine, "GET", "/metrics", empty())
	assert.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), "kbsupport_chat_requests_total")
}

func TestRouter_RateLimit(t *testing.T) {
	s := buildRouterForTest(middleware.NewMiddleware(middleware.Config{RateLimitRPS: 1}))

	first := ut.PerformRequest(s.Engine, "GET", "/threads", empty())
	assert.Equal(t, 200, first.Result().StatusCode())
	second := ut.PerformRequest(s.Engine, "GET", "/threads", empty())
	assert.Equal(t, 429, second.Result().StatusCode())

	// 健康检查不受限流影响
	health := ut.PerformRequest(s.Engine, "GET", "/api/health", empty())
	assert.Equal(t, 200, health.Result().StatusCode())
}

func TestRouter_CORS(t *testing.T) {
	s := buildRouterForTest(middleware.NewMiddleware(middleware.Config{
		CORSEnable:   true,
		AllowOrigins: []string{"http://localhost:3000"},
	}))

	w := ut.PerformRequest(s.Engine, "OPTIONS", "/chat", empty(), ut.Header{Key: "Origin", Value: "http://localhost:3000"})
	assert.Equal(t, 204, w.Result().StatusCode())
	assert.Equal(t, "http://localhost:3000", w.Result().Header.Get("Access-Control-Allow-Origin"))

	w = ut.PerformRequest(s.Engine, "GET", "/api/health", empty(), ut.Header{Key: "Origin", Value: "http://evil.example"})
	assert.Equal(t, 200, w.Result().StatusCode())
	assert.Empty(t, w.Result().Header.Get("Access-Control-Allow-Origin"))
}
