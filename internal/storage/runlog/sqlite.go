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
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteTimeLayout = time.RFC3339Nano

// SQLiteStore 基于 SQLite 的运行日志（默认实现）
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore 打开或创建数据库文件并建表；单连接保证写入串行
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create run log dir failed: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open run log sqlite failed: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set run log sqlite wal failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			user_message TEXT NOT NULL DEFAULT '',
			tool_name TEXT NOT NULL DEFAULT '',
			tool_args TEXT,
			tool_result TEXT,
			final_answer TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_thread_id ON runs(thread_id);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate run log sqlite failed: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append 实现 Store
func (s *SQLiteStore) Append(ctx context.Context, e *Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (thread_id, user_message, tool_name, tool_args, tool_result, final_answer, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ThreadID, e.UserMessage, e.ToolName, string(e.ToolArgs), string(e.ToolResult), e.FinalAnswer,
		e.CreatedAt.Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	e.ID = id
	return nil
}

// History 实现 Store
func (s *SQLiteStore) History(ctx context.Context, threadID string, limit int) ([]Entry, error) {
	limit = normalizeLimit(limit)
	const cols = `SELECT id, thread_id, user_message, tool_name, tool_args, tool_result, final_answer, created_at FROM runs`
	var (
		rows *sql.Rows
		err  error
	)
	if threadID != "" {
		rows, err = s.db.QueryContext(ctx, cols+` WHERE thread_id = ? ORDER BY id DESC LIMIT ?`, threadID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, cols+` ORDER BY id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		var (
			e            Entry
			args, result sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&e.ID, &e.ThreadID, &e.UserMessage, &e.ToolName, &args, &result, &e.FinalAnswer, &createdAt); err != nil {
			return nil, err
		}
		e.ToolArgs = rawOrEmpty([]byte(args.String))
		e.ToolResult = rawOrEmpty([]byte(result.String))
		if t, err := time.Parse(sqliteTimeLayout, createdAt); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Threads 实现 Store
func (s *SQLiteStore) Threads(ctx context.Context) ([]ThreadSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
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
			lastID int64
		)
		if err := rows.Scan(&t.ThreadID, &t.Count, &lastID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close 实现 Store
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
