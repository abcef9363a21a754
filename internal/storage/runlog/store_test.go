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
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-support/pkg/config"
	"kb-support/pkg/log"
)

func seed(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	rows := []struct {
		thread, tool string
	}{
		{"t1", "search_kb"},
		{"t2", "search_kb"},
		{"t1", "create_ticket"},
		{"t3", "search_kb"},
		{"t2", "search_kb"},
	}
	for _, r := range rows {
		e, err := NewEntry(r.thread, "msg", r.tool, map[string]string{"query": "msg"}, []string{"a"}, "answer")
		require.NoError(t, err)
		require.NoError(t, s.Append(ctx, e))
		assert.NotZero(t, e.ID)
	}
}

func runStoreSuite(t *testing.T, s Store) {
	seed(t, s)
	ctx := context.Background()

	all, err := s.History(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i-1].ID, all[i].ID)
	}
	assert.JSONEq(t, `{"query":"msg"}`, string(all[0].ToolArgs))

	t1, err := s.History(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, t1, 2)
	assert.Equal(t, "create_ticket", t1[0].ToolName)

	limited, err := s.History(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := s.History(ctx, "missing", 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	threads, err := s.Threads(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ThreadSummary{
		{ThreadID: "t2", Count: 2},
		{ThreadID: "t3", Count: 1},
		{ThreadID: "t1", Count: 2},
	}, threads)
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	defer s.Close()
	runStoreSuite(t, s)
}

func TestSQLiteStore_EmptyJSONBecomesObject(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append(context.Background(), &Entry{ThreadID: "t", ToolName: "search_kb"}))
	rows, err := s.History(context.Background(), "t", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "{}", string(rows[0].ToolArgs))
	assert.Equal(t, "{}", string(rows[0].ToolResult))
	assert.False(t, rows[0].CreatedAt.IsZero())
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(context.Background(), config.RunLogConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = NewStore(context.Background(), config.RunLogConfig{Type: "postgres"})
	assert.Error(t, err)

	_, err = NewStore(context.Background(), config.RunLogConfig{Type: "mongo"})
	assert.Error(t, err)
}

type flakyStore struct {
	*MemoryStore
	failures int
	calls    int
}

func (f *flakyStore) Append(ctx context.Context, e *Entry) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("database is locked")
	}
	return f.MemoryStore.Append(ctx, e)
}

func TestWriter_RetriesThenSucceeds(t *testing.T) {
	fs := &flakyStore{MemoryStore: NewMemoryStore(), failures: 1}
	w := NewWriter(fs, log.Nop(), WriterConfig{RetryMax: 2, RetryWait: 1})

	ok := w.Log(context.Background(), "t", "hi", "search_kb", map[string]string{"query": "hi"}, nil, "done")
	assert.True(t, ok)
	assert.Equal(t, 2, fs.calls)

	rows, _ := fs.History(context.Background(), "t", 10)
	require.Len(t, rows, 1)
	assert.Equal(t, "done", rows[0].FinalAnswer)
}

func TestWriter_GivesUp(t *testing.T) {
	fs := &flakyStore{MemoryStore: NewMemoryStore(), failures: 10}
	w := NewWriter(fs, log.Nop(), WriterConfig{RetryMax: 1, RetryWait: 1})

	assert.False(t, w.Log(context.Background(), "t", "hi", "search_kb", nil, nil, ""))
	assert.Equal(t, 2, fs.calls)
}

func TestWriter_SurvivesCanceledRequest(t *testing.T) {
	store := NewMemoryStore()
	w := NewWriter(store, nil, WriterConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.True(t, w.Log(ctx, "t", "hi", "search_kb", nil, nil, ""))
}

func TestWriter_NilStore(t *testing.T) {
	w := NewWriter(nil, nil, WriterConfig{})
	assert.False(t, w.Log(context.Background(), "t", "hi", "search_kb", nil, nil, ""))
}
