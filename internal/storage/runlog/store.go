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
	"encoding/json"
	"fmt"
	"time"

	"kb-support/pkg/config"
)

// DefaultHistoryLimit History 未指定条数时返回的行数
const DefaultHistoryLimit = 20

// Entry 一次工具调用的运行记录；每个请求的每次工具调用一行，只追加
type Entry struct {
	ID          int64           `json:"id"`
	ThreadID    string          `json:"thread_id"`
	UserMessage string          `json:"user_message"`
	ToolName    string          `json:"tool_name"`
	ToolArgs    json.RawMessage `json:"tool_args"`
	ToolResult  json.RawMessage `json:"tool_result"`
	FinalAnswer string          `json:"final_answer"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ThreadSummary 会话及其记录数
type ThreadSummary struct {
	ThreadID string `json:"thread_id"`
	Count    int    `json:"count"`
}

// Store 运行日志存储
type Store interface {
	// Append 写入一行，成功后回填 ID 与 CreatedAt
	Append(ctx context.Context, e *Entry) error
	// History 按 ID 倒序返回记录；threadID 为空时不过滤
	History(ctx context.Context, threadID string, limit int) ([]Entry, error)
	// Threads 按最近一条记录倒序返回所有会话
	Threads(ctx context.Context) ([]ThreadSummary, error)
	// Close 关闭存储
	Close() error
}

// NewEntry 序列化参数与结果并构造 Entry
func NewEntry(threadID, userMessage, toolName string, args, result interface{}, finalAnswer string) (*Entry, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal tool args: %w", err)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return &Entry{
		ThreadID:    threadID,
		UserMessage: userMessage,
		ToolName:    toolName,
		ToolArgs:    argsJSON,
		ToolResult:  resultJSON,
		FinalAnswer: finalAnswer,
	}, nil
}

// NewStore 根据配置创建运行日志存储
func NewStore(ctx context.Context, cfg config.RunLogConfig) (Store, error) {
	switch cfg.Type {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "data/runs.db"
		}
		st, err := NewSQLiteStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres run log 需要配置 dsn")
		}
		st, err := NewPostgresStore(ctx, cfg.DSN, cfg.PoolSize)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("不支持的运行日志存储类型: %s", cfg.Type)
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}

// rawOrEmpty 空值按空对象返回
func rawOrEmpty(b []byte) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("{}")
	}
	return json.RawMessage(b)
}
