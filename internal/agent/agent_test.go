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

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-support/internal/kb"
	"kb-support/internal/model/llm"
	"kb-support/internal/pipeline/common"
	"kb-support/internal/pipeline/query"
	"kb-support/pkg/log"
	"kb-support/internal/storage/runlog"
	"kb-support/internal/tool/builtin"
	"kb-support/internal/tool/registry"
)

type fakeReply struct {
	resp *llm.Response
	err  error
}

// fakeClient 按顺序返回预设回复，并记录每次调用的消息与选项
type fakeClient struct {
	mu       sync.Mutex
	replies  []fakeReply
	options  []llm.ChatOptions
	messages [][]llm.Message
}

func (f *fakeClient) ChatWithContext(ctx context.Context, messages []llm.Message, options llm.ChatOptions) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.options = append(f.options, options)
	f.messages = append(f.messages, append([]llm.Message(nil), messages...))
	n := len(f.options)
	if n > len(f.replies) {
		return &llm.Response{FinishReason: "stop"}, nil
	}
	r := f.replies[n-1]
	return r.resp, r.err
}

func (f *fakeClient) Model() string    { return "fake-model" }
func (f *fakeClient) Provider() string { return "fake" }

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.options)
}

func text(s string) fakeReply {
	return fakeReply{resp: &llm.Response{Content: s, FinishReason: "stop"}}
}

func toolCall(id, name, args string) fakeReply {
	return fakeReply{resp: &llm.Response{
		FinishReason: "tool_calls",
		ToolCalls:    []llm.ToolCall{{ID: id, Name: name, Arguments: args}},
	}}
}

func newTestAgent(t *testing.T, client llm.Client) (*Agent, *runlog.MemoryStore) {
	t.Helper()
	store, err := kb.LoadDefault()
	require.NoError(t, err)
	reg := registry.New()
	builtin.RegisterBuiltin(reg, builtin.DefaultPriority)
	runs := runlog.NewMemoryStore()
	a := New(client, query.NewRetriever(store, nil, 0), reg,
		WithRunLog(runlog.NewWriter(runs, nil, runlog.WriterConfig{})),
	)
	return a, runs
}

func history(t *testing.T, runs *runlog.MemoryStore) []runlog.Entry {
	t.Helper()
	rows, err := runs.History(context.Background(), "", 100)
	require.NoError(t, err)
	return rows
}

func TestAgent_PasswordAnsweredFromKB(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{text("Use \"Sign in with Google\" on the login page.")}}
	a, runs := newTestAgent(t, client)

	res, err := a.Chat(context.Background(), "", "I forgot my password")
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswered, res.Outcome)
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, client.options[0].Tools, "strong KB hit withdraws create_ticket")

	resp := res.Response
	require.NotEmpty(t, resp.Sources)
	assert.Equal(t, "https://help.example.com/kb/pw_reset", resp.Sources[0].URL)
	assert.NotEqual(t, common.ConfidenceLow, resp.Confidence)
	assert.Equal(t, query.DefaultStepTemplates().Steps("pw_reset", false), resp.NextSteps)
	assert.Equal(t, []string{common.ToolSearchKB}, resp.ActionsTaken)
	assert.Nil(t, resp.Ticket)

	rows := history(t, runs)
	require.Len(t, rows, 1)
	assert.Equal(t, DefaultThreadID, rows[0].ThreadID)
	assert.Equal(t, common.ToolSearchKB, rows[0].ToolName)
	assert.JSONEq(t, `{"query":"I forgot my password"}`, string(rows[0].ToolArgs))
	assert.Equal(t, res.Answer, rows[0].FinalAnswer)
}

func TestAgent_UnrelatedQueryCreatesTicket(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{
		toolCall("call_1", common.ToolCreateTicket, `{"title":"Cake recipe","description":"User asks for a chocolate cake recipe"}`),
		text("I have created a support ticket for you."),
	}}
	a, runs := newTestAgent(t, client)

	res, err := a.Chat(context.Background(), "t-1", "chocolate cake recipe")
	require.NoError(t, err)
	require.Equal(t, 2, client.calls())

	require.Len(t, client.options[0].Tools, 1)
	assert.Equal(t, common.ToolCreateTicket, client.options[0].Tools[0].Name)

	second := client.messages[1]
	last := second[len(second)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, "TCK-")
	assert.Equal(t, llm.RoleAssistant, second[len(second)-2].Role)

	resp := res.Response
	assert.Empty(t, resp.Sources)
	assert.Equal(t, []string{common.ToolSearchKB, common.ToolCreateTicket}, resp.ActionsTaken)
	require.NotNil(t, resp.Ticket)
	assert.Equal(t, "P2", resp.Ticket.Priority)
	assert.Equal(t, builtin.TicketID("Cake recipe", "User asks for a chocolate cake recipe"), resp.Ticket.TicketID)
	assert.Equal(t, common.ConfidenceLow, resp.Confidence)

	rows := history(t, runs)
	require.Len(t, rows, 2)
	assert.Equal(t, common.ToolCreateTicket, rows[0].ToolName)
	assert.Equal(t, common.ToolSearchKB, rows[1].ToolName)
	assert.Equal(t, "t-1", rows[0].ThreadID)
}

func TestAgent_LastIterationWithdrawsTools(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{
		toolCall("c1", common.ToolCreateTicket, `{"title":"a","description":"first"}`),
		toolCall("c2", common.ToolCreateTicket, `{"title":"b","description":"second"}`),
		text("Done."),
	}}
	a, _ := newTestAgent(t, client)

	res, err := a.Chat(context.Background(), "", "chocolate cake recipe")
	require.NoError(t, err)
	require.Equal(t, 3, client.calls())
	assert.Len(t, client.options[0].Tools, 1)
	assert.Len(t, client.options[1].Tools, 1)
	assert.Empty(t, client.options[2].Tools)
	assert.Equal(t, "Done.", res.Answer)
	assert.Equal(t, 3, res.Iterations)
}

func TestAgent_FollowupTextEndsLoopDespiteToolCalls(t *testing.T) {
	followup := toolCall("c2", common.ToolCreateTicket, `{"title":"b","description":"second"}`)
	followup.resp.Content = "Ticket created for you."
	client := &fakeClient{replies: []fakeReply{
		toolCall("c1", common.ToolCreateTicket, `{"title":"a","description":"first"}`),
		followup,
		text(""),
	}}
	a, runs := newTestAgent(t, client)

	res, err := a.Chat(context.Background(), "", "chocolate cake recipe")
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls())
	assert.Equal(t, OutcomeAnswered, res.Outcome)
	assert.Equal(t, "Ticket created for you.", res.Answer)
	assert.Equal(t, 2, res.Iterations)

	require.NotNil(t, res.Response.Ticket)
	assert.Equal(t, builtin.TicketID("a", "first"), res.Response.Ticket.TicketID)
	assert.Len(t, history(t, runs), 2, "second tool call is not executed")
}

func TestAgent_FirstReplyTextStillRunsToolCalls(t *testing.T) {
	first := toolCall("c1", common.ToolCreateTicket, `{"title":"a","description":"first"}`)
	first.resp.Content = "Let me open a ticket."
	client := &fakeClient{replies: []fakeReply{
		first,
		text("Your ticket is open."),
	}}
	a, _ := newTestAgent(t, client)

	res, err := a.Chat(context.Background(), "", "chocolate cake recipe")
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls())
	assert.Equal(t, "Your ticket is open.", res.Answer)
	assert.Equal(t, []string{common.ToolSearchKB, common.ToolCreateTicket}, res.Response.ActionsTaken)
}

func TestAgent_IterationCapFallsBackToTicket(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{
		toolCall("c1", common.ToolCreateTicket, `{"title":"a","description":"one"}`),
		toolCall("c2", common.ToolCreateTicket, `{"title":"b","description":"two"}`),
		toolCall("c3", common.ToolCreateTicket, `{"title":"c","description":"three"}`),
		text("never reached"),
	}}
	a, runs := newTestAgent(t, client)

	res, err := a.Chat(context.Background(), "", "chocolate cake recipe")
	require.NoError(t, err)
	assert.Equal(t, 3, client.calls())
	assert.Equal(t, OutcomeFallback, res.Outcome)

	want := builtin.TicketID("c", "three")
	assert.True(t, strings.HasPrefix(res.Answer, "✅ Created support ticket **"+want+"**"))
	require.NotNil(t, res.Response.Ticket)
	assert.Equal(t, want, res.Response.Ticket.TicketID)
	assert.Len(t, history(t, runs), 4)
}

func TestAgent_EmptyReplyFallsBackToKB(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{text("")}}
	a, _ := newTestAgent(t, client)

	res, err := a.Chat(context.Background(), "", "I forgot my password")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFallback, res.Outcome)
	assert.True(t, strings.HasPrefix(res.Answer, "Found "))
	assert.Contains(t, res.Answer, "**Password reset and login problems**")
	assert.Contains(t, res.Answer, "📎 https://help.example.com/kb/pw_reset")
	assert.NotEmpty(t, res.Response.Answer)
}

func TestAgent_NoHitsNoTextFallsBackToGeneric(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{text("   ")}}
	a, _ := newTestAgent(t, client)

	res, err := a.Chat(context.Background(), "", "chocolate cake recipe")
	require.NoError(t, err)
	assert.Equal(t, noResultAnswer, res.Answer)
	assert.Equal(t, common.ConfidenceLow, res.Response.Confidence)
}

func TestAgent_UnknownToolIsHardFailure(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{toolCall("c1", "delete_account", `{}`)}}
	a, runs := newTestAgent(t, client)

	res, err := a.Chat(context.Background(), "", "chocolate cake recipe")
	require.NoError(t, err)
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.True(t, errors.Is(res.Err, common.ErrUnknownTool))
	assert.True(t, res.Response.Error)
	assert.Equal(t, common.ConfidenceLow, res.Response.Confidence)
	assert.Empty(t, history(t, runs))
}

func TestAgent_InvalidToolArgsReportedToModel(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{
		toolCall("c1", common.ToolCreateTicket, `{not json`),
		text("Could you describe the problem in more detail?"),
	}}
	a, _ := newTestAgent(t, client)

	res, err := a.Chat(context.Background(), "", "chocolate cake recipe")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnswered, res.Outcome)

	require.Len(t, res.Trace, 2)
	failed, ok := res.Trace[1].Result.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, failed["error"], "invalid tool arguments")
	assert.Nil(t, res.Response.Ticket)

	second := client.messages[1]
	last := second[len(second)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	assert.Contains(t, last.Content, "error")
}

func TestAgent_MissingTicketFieldsReportedToModel(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{
		toolCall("c1", common.ToolCreateTicket, `{"title":"only title"}`),
		text("Please describe the issue."),
	}}
	a, _ := newTestAgent(t, client)

	res, err := a.Chat(context.Background(), "", "chocolate cake recipe")
	require.NoError(t, err)
	require.Len(t, res.Trace, 2)
	assert.Nil(t, res.Response.Ticket)
	assert.Contains(t, res.Response.ActionsTaken, common.ToolCreateTicket)
}

func TestAgent_LLMErrorBecomesErrorResponse(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{{err: &llm.StatusError{Provider: "fake", StatusCode: 500, Body: "boom"}}}}
	a, runs := newTestAgent(t, client)

	res, err := a.Chat(context.Background(), "", "I forgot my password")
	require.NoError(t, err)
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.True(t, res.Response.Error)
	assert.True(t, strings.HasPrefix(res.Response.Answer, "Error processing request: "))
	assert.Empty(t, res.Response.Sources)
	assert.Empty(t, res.Response.ActionsTaken)
	assert.Equal(t, []string{"Try again", "Check your connection", "Contact support"}, res.Response.NextSteps)
	assert.Empty(t, history(t, runs))
}

func TestAgent_SearchKBRequestUsesPrefetchedResults(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{
		toolCall("c1", common.ToolSearchKB, `{"query":"password"}`),
		text("Use Sign in with Google."),
	}}
	a, runs := newTestAgent(t, client)

	res, err := a.Chat(context.Background(), "", "I forgot my password")
	require.NoError(t, err)
	require.Equal(t, 2, client.calls())

	require.Len(t, res.Trace, 2)
	for _, inv := range res.Trace {
		assert.Equal(t, common.ToolSearchKB, inv.Name)
		assert.Equal(t, map[string]interface{}{"query": "I forgot my password"}, inv.Args)
	}
	assert.Equal(t, []string{common.ToolSearchKB}, res.Response.ActionsTaken)

	second := client.messages[1]
	last := second[len(second)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	assert.Equal(t, "c1", last.ToolCallID)
	assert.Contains(t, last.Content, "pw_reset")
	assert.Len(t, history(t, runs), 2)
}

func TestAgent_RepeatedPaymentEscalationInPrompt(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{text("Please create a P1 ticket with your invoice ID.")}}
	a, _ := newTestAgent(t, client)

	res, err := a.Chat(context.Background(), "", "My payment is still failing")
	require.NoError(t, err)
	require.Equal(t, 1, client.calls())
	assert.Contains(t, client.messages[0][1].Content, "REPEATED ISSUE DETECTED")
	require.NotEmpty(t, res.Response.Sources)
	assert.Equal(t, "https://help.example.com/kb/billing_failed", res.Response.Sources[0].URL)
}

func TestAgent_EmptyMessage(t *testing.T) {
	a, _ := newTestAgent(t, &fakeClient{})
	_, err := a.Chat(context.Background(), "", "   ")
	assert.ErrorIs(t, err, common.ErrEmptyQuery)
}

func TestAgent_MaxIterationsOption(t *testing.T) {
	client := &fakeClient{replies: []fakeReply{text("ok")}}
	store, err := kb.LoadDefault()
	require.NoError(t, err)
	reg := registry.New()
	builtin.RegisterBuiltin(reg, "")
	a := New(client, query.NewRetriever(store, nil, 0), reg, WithMaxIterations(1))

	res, err := a.Chat(context.Background(), "", "chocolate cake recipe")
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls())
	assert.Empty(t, client.options[0].Tools, "a single call never offers tools")
	assert.Equal(t, OutcomeAnswered, res.Outcome)
}

func TestAgent_CreateTicket(t *testing.T) {
	a, runs := newTestAgent(t, &fakeClient{})

	ticket, err := a.CreateTicket(context.Background(), "t-9", map[string]any{
		"title":       "Login broken",
		"description": "Cannot log in since morning",
		"priority":    "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, "P1", ticket.Priority)
	assert.Equal(t, "created", ticket.Status)

	rows := history(t, runs)
	require.Len(t, rows, 1)
	assert.Equal(t, "t-9", rows[0].ThreadID)
	assert.Equal(t, "Cannot log in since morning", rows[0].UserMessage)
	assert.Equal(t, "Ticket "+ticket.TicketID+" created", rows[0].FinalAnswer)

	_, err = a.CreateTicket(context.Background(), "", map[string]any{"title": "x"})
	assert.ErrorIs(t, err, common.ErrInvalidToolArgs)
	assert.Len(t, history(t, runs), 1)
}

func TestFallbackAnswer(t *testing.T) {
	hits := []common.ScoredHit{
		{Title: "A", Snippet: "a", URL: "u1"},
		{Title: "", Snippet: "b", URL: "u2"},
		{Title: "C", Snippet: "c", URL: "u3"},
		{Title: "D", Snippet: "d", URL: "u4"},
	}
	got := FallbackAnswer(hits, nil)
	assert.True(t, strings.HasPrefix(got, "Found 4 relevant articles in knowledge base:\n\n**A**\na\n📎 u1\n\n"))
	assert.Contains(t, got, "**Untitled**")
	assert.NotContains(t, got, "**D**")

	got = FallbackAnswer(nil, &common.Ticket{TicketID: "TCK-00001", Priority: "P1"})
	assert.Equal(t, "✅ Created support ticket **TCK-00001** with priority P1.\n\nOur support team will contact you soon.", got)

	assert.Equal(t, noResultAnswer, FallbackAnswer(nil, nil))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_first_response", stateAwaitingFirstResponse.String())
	assert.Equal(t, "done", stateDone.String())
}

func TestAgent_StageLogsNameComponents(t *testing.T) {
	var buf bytes.Buffer
	client := &fakeClient{replies: []fakeReply{text("Use \"Sign in with Google\" on the login page.")}}
	a, _ := newTestAgent(t, client)
	WithLogger(log.NewWithWriter(&buf, &log.Config{Level: "debug"}))(a)

	_, err := a.Chat(context.Background(), "", "I forgot my password")
	require.NoError(t, err)

	records := map[string]map[string]any{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec))
		if msg, ok := rec["msg"].(string); ok {
			records[msg] = rec
		}
	}

	retrieval, ok := records["retrieval"]
	require.True(t, ok)
	assert.Equal(t, "gate", retrieval["stage"])
	assert.Equal(t, true, retrieval["any_hit"])

	final, ok := records["final result"]
	require.True(t, ok)
	assert.Equal(t, "structurer", final["stage"])
}
