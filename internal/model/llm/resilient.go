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
	"time"

	"github.com/cenkalti/backoff/v4"

	"kb-support/pkg/metrics"
)

// ResilientConfig 单次调用的超时与重试参数
type ResilientConfig struct {
	Timeout   time.Duration // 每次尝试的超时，<=0 表示不设
	RetryMax  int           // 瞬时错误的最大重试次数
	RetryWait time.Duration // 首次重试前等待
}

// ResilientClient 为每次尝试加超时，仅对瞬时错误重试，并记录调用指标
type ResilientClient struct {
	inner Client
	cfg   ResilientConfig
}

// NewResilientClient 包装 Client
func NewResilientClient(inner Client, cfg ResilientConfig) *ResilientClient {
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}
	return &ResilientClient{inner: inner, cfg: cfg}
}

// ChatWithContext 带超时与重试的聊天调用
func (c *ResilientClient) ChatWithContext(ctx context.Context, messages []Message, options ChatOptions) (*Response, error) {
	provider := c.inner.Provider()
	start := time.Now()
	defer func() {
		metrics.LLMDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	}()

	var resp *Response
	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			metrics.LLMCallsTotal.WithLabelValues(provider, "retry").Inc()
		}
		attemptCtx := ctx
		if c.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
		}
		r, err := c.inner.ChatWithContext(attemptCtx, messages, options)
		if err != nil {
			// 外层 ctx 已结束时不再重试
			if ctx.Err() != nil || !IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryWait
	b.MaxElapsedTime = 0
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.RetryMax)), ctx))
	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues(provider, "error").Inc()
		return nil, err
	}
	metrics.LLMCallsTotal.WithLabelValues(provider, "ok").Inc()
	metrics.LLMTokensTotal.WithLabelValues("input").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues("output").Add(float64(resp.Usage.CompletionTokens))
	return resp, nil
}

// Model 返回底层 Client 的模型名称
func (c *ResilientClient) Model() string { return c.inner.Model() }

// Provider 返回底层 Client 的提供商名称
func (c *ResilientClient) Provider() string { return c.inner.Provider() }
