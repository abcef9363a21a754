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
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore 基于 PostgreSQL 的运行日志，供多实例共享
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 连接 PostgreSQL 并建表
func NewPostgresStore(ctx context.Context, dsn string, poolSize int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse run log dsn: %w", err)
	}
	if poolSize > 0 {
		cfg.MaxConns = int32(poolSize)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect run log postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping run log postgres: %w", err)
	}
	s := NewPostgresStoreWithPool(pool)
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreWithPool 使用已有连接池
func NewPostgresStoreWithPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id BIGSERIAL PRIMARY KEY,
			thread_id TEXT NOT NULL,
			user_message TEXT NOT NULL DEFAULT '',
			tool_name TEXT NOT NULL DEFAULT '',
			tool_args JSONB,
			tool_result JSONB,
			final_answer TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_runs_thread_id ON runs(thread_id);
	`)
	if err != nil {
		return fmt.Errorf("migrate run log postgres: %w", err)
	}
	return nil
}

// Append 实现 Store
func (s *PostgresStore) Append(ctx context.Context, e *Entry) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO runs (thread_id, user_message, tool_name, tool_args, tool_result, final_answer)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		e.ThreadID, e.UserMessage, e.ToolName, []byte(rawOrEmpty(e.ToolArgs)), []byte(rawOrEmpty(e.ToolResult)), e.FinalAnswer,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// History 实现 Store
func (s *PostgresStore) History(ctx context.Context, threadID string, limit int) ([]Entry, error) {
	limit = normalizeLimit(limit)
	rows, err := s.pool.Query(ctx,
		`SELECT id, thread_id, user_message, tool_name, tool_args, tool_result, final_answer, created_at
		 FROM runs
		 WHERE $1 = '' OR thread_id = $1
		 ORDER BY id DESC
		 LIMIT $2`,
		threadID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		var (
			e            Entry
			args, result []byte
		)
		if err := rows.Scan(&e.ID, &e.ThreadID, &e.UserMessage, &e.ToolName, &args, &result, &e.FinalAnswer, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ToolArgs = rawOrEmpty(args)
		e.ToolResult = rawOrEmpty(result)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Threads 实现 Store
func (s *PostgresStore) Threads(ctx context.Context) ([]ThreadSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT thread_id, COUNT(*) AS count, MAX(id) AS last_id
		FROM runs
		GROUP BY thread_id
		ORDER BY last_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()

	out := make([]ThreadSummary, 0)
	for rows.Next() {
		var (
			t      ThreadSummary
			count  int64
			lastID int64
		)
		if err := rows.Scan(&t.ThreadID, &count, &lastID); err != nil {
			return nil, err
		}
		t.Count = int(count)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close 实现 Store
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
