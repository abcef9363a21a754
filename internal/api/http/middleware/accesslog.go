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

package middleware

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
)

// AccessRecord 一次请求的访问记录
type AccessRecord struct {
	RequestID  string
	Method     string
	Path       string
	Status     int
	ClientIP   string
	DurationMS int64
}

// AccessLog 请求结束后输出一行结构化访问日志
func (m *Middleware) AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)

		rec := AccessRecord{
			Method:     string(c.Method()),
			Path:       string(c.Path()),
			Status:     c.Response.StatusCode(),
			ClientIP:   c.ClientIP(),
			DurationMS: time.Since(start).Milliseconds(),
		}
		if v, ok := c.Get("request_id"); ok {
			rec.RequestID, _ = v.(string)
		}
		m.logAccess(rec)
	}
}

func (m *Middleware) logAccess(rec AccessRecord) {
	args := []any{
		"request_id", rec.RequestID,
		"method", rec.Method,
		"path", rec.Path,
		"status", rec.Status,
		"client_ip", rec.ClientIP,
		"duration_ms", rec.DurationMS,
	}
	switch {
	case rec.Status >= 500:
		m.logger.Error("http access", args...)
	case rec.Status >= 400:
		m.logger.Warn("http access", args...)
	default:
		m.logger.Info("http access", args...)
	}
}
