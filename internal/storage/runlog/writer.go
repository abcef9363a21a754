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

package runlog

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"kb-support/pkg/log"
	"kb-support/pkg/metrics"
)

// WriterConfig 写入重试参数
type WriterConfig struct {
	Timeout   time.Duration
	RetryMax  int
	RetryWait time.Duration
}

// DefaultWriterConfig 默认写入参数
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{Timeout: 2 * time.Second, RetryMax: 2, RetryWait: 50 * time.Millisecond}
}

// Writer 尽力而为的运行日志写入：失败只记日志和指标，不影响请求结果
type Writer struct {
	store  Store
	logger *log.Logger
	cfg    WriterConfig
}

// NewWriter 创建 Writer；store 为 nil 时 Write 为空操作
func NewWriter(store Store, logger *log.Logger, cfg WriterConfig) *Writer {
	if logger == nil {
		logger = log.Nop()
	}
	def := DefaultWriterConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = def.RetryWait
	}
	return &Writer{store: store, logger: logger, cfg: cfg}
}

// Store 底层存储
func (w *Writer) Store() Store {
	return w.store
}

// Write 写入一行，返回是否成功；请求被取消后仍会完成写入
func (w *Writer) Write(ctx context.Context, e *Entry) bool {
	if w == nil || w.store == nil || e == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.Timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.cfg.RetryWait
	b.MaxElapsedTime = 0
	err := backoff.Retry(func() error {
		return w.store.Append(ctx, e)
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(w.cfg.RetryMax)), ctx))
	if err != nil {
		metrics.RunLogFailuresTotal.Inc()
		w.logger.Warn("run log write failed",
			"thread_id", e.ThreadID,
			"tool_name", e.ToolName,
			"error", err,
		)
		return false
	}
	return true
}

// Log 构造并写入一行
func (w *Writer) Log(ctx context.Context, threadID, userMessage, toolName string, args, result interface{}, finalAnswer string) bool {
	e, err := NewEntry(threadID, userMessage, toolName, args, result, finalAnswer)
	if err != nil {
		if w != nil {
			metrics.RunLogFailuresTotal.Inc()
			w.logger.Warn("run log encode failed", "tool_name", toolName, "error", err)
		}
		return false
	}
	return w.Write(ctx, e)
}
