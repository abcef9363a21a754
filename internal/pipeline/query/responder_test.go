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

package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-support/internal/pipeline/common"
)

var pwHit = common.ScoredHit{
	ID:      "pw_reset",
	Title:   "Password reset and login problems",
	Snippet: "Our product uses Sign in with Google...",
	URL:     "https://help.example.com/kb/pw_reset",
	Score:   28,
}

func searchTrace(hits []common.ScoredHit) common.ToolInvocation {
	return common.ToolInvocation{
		Name:   common.ToolSearchKB,
		Args:   map[string]interface{}{"query": "q"},
		Result: hits,
	}
}

func TestStructurer_KBAnswer(t *testing.T) {
	hits := []common.ScoredHit{pwHit}
	resp := NewStructurer(nil).Build(
		"Use Sign in with Google on the login page.\n\nSources:\n- https://help.example.com/kb/pw_reset",
		[]common.ToolInvocation{searchTrace(hits)}, hits, 1.0)

	assert.Equal(t, "Use Sign in with Google on the login page.", resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, common.Source{Title: pwHit.Title, URL: pwHit.URL, Relevance: common.RelevanceHigh}, resp.Sources[0])
	assert.Equal(t, DefaultStepTemplates().Steps("pw_reset", false), resp.NextSteps)
	assert.Equal(t, []string{"search_kb"}, resp.ActionsTaken)
	assert.Equal(t, common.ConfidenceHigh, resp.Confidence)
	assert.Nil(t, resp.Ticket)
	assert.False(t, resp.Error)
}

func TestStructurer_KBClarifyingKeepsConfidence(t *testing.T) {
	hits := []common.ScoredHit{pwHit}
	resp := NewStructurer(nil).Build("Are you trying to log in? Or did you lose Google access?",
		[]common.ToolInvocation{searchTrace(hits)}, hits, 0.5)

	assert.Len(t, resp.NextSteps, 4)
	assert.Equal(t, "Are you trying to log in, or did you lose access to Google account?", resp.NextSteps[3])
	assert.Equal(t, common.ConfidenceMedium, resp.Confidence)
	assert.Equal(t, common.RelevanceMedium, resp.Sources[0].Relevance)
}

func TestStructurer_TicketCreated(t *testing.T) {
	ticket := common.Ticket{TicketID: "TCK-01234", Status: "created", Priority: "P1"}
	trace := []common.ToolInvocation{
		searchTrace([]common.ScoredHit{}),
		{Name: common.ToolCreateTicket, Args: map[string]interface{}{"title": "t"}, Result: ticket},
		{Name: common.ToolCreateTicket, Args: map[string]interface{}{"title": "t"}, Result: ticket},
	}
	resp := NewStructurer(nil).Build("I created ticket TCK-01234 for you.", trace, nil, 0)

	require.NotNil(t, resp.Ticket)
	assert.Equal(t, ticket, *resp.Ticket)
	assert.Equal(t, []string{"search_kb", "create_ticket"}, resp.ActionsTaken)
	assert.Contains(t, resp.ActionsTaken, common.ToolCreateTicket)
	assert.Empty(t, resp.Sources)
	assert.NotNil(t, resp.Sources)
	assert.Equal(t, common.ConfidenceLow, resp.Confidence)
	assert.Equal(t, "Wait for response on ticket TCK-01234", resp.NextSteps[0])
}

func TestStructurer_NoKBNoTicket(t *testing.T) {
	resp := NewStructurer(nil).Build(
		"I can only help with product support topics (password reset, payment issues, rate limits, account deletion, 2FA). For other questions, I'm not the right assistant.",
		[]common.ToolInvocation{searchTrace(nil)}, nil, 0)

	assert.Empty(t, resp.Sources)
	assert.Nil(t, resp.Ticket)
	assert.Equal(t, common.ConfidenceLow, resp.Confidence)
	assert.Equal(t, GenericNextSteps("", false), resp.NextSteps)
}

func TestStructurer_NoKBExtractsNextSteps(t *testing.T) {
	answer := "Here is what we know.\n\nNext steps:\n- Contact your bank to confirm the charge\n"
	resp := NewStructurer(nil).Build(answer, []common.ToolInvocation{searchTrace(nil)}, nil, 0)
	assert.Equal(t, []string{"Contact your bank to confirm the charge"}, resp.NextSteps)
	assert.Equal(t, "Here is what we know.", resp.Answer)
}

func TestStructurer_SourcesCappedAndTiered(t *testing.T) {
	hits := []common.ScoredHit{
		{ID: "a", Title: "A", URL: "ua", Score: 4},
		{ID: "b", Title: "", URL: "ub", Score: 3},
		{ID: "c", Title: "C", URL: "uc", Score: 2.6},
	}
	resp := NewStructurer(nil).Build("Answer text.", []common.ToolInvocation{searchTrace(hits)}, hits, 0.4)
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, common.RelevanceMedium, resp.Sources[0].Relevance)
	assert.Equal(t, common.RelevanceMedium, resp.Sources[1].Relevance)
	assert.Equal(t, "Untitled", resp.Sources[1].Title)
	assert.Equal(t, common.ConfidenceMedium, resp.Confidence)

	low := BuildSources(hits, 0.25)
	assert.Equal(t, common.RelevanceMedium, low[0].Relevance)
	assert.Equal(t, common.RelevanceLow, low[1].Relevance)
}

func TestStructurer_EmptyGuard(t *testing.T) {
	resp := NewStructurer(nil).Build("", nil, nil, 0)
	assert.Equal(t, EmptyAnswerGuard, resp.Answer)
	assert.Empty(t, resp.ActionsTaken)
}

func TestDetermineConfidence(t *testing.T) {
	assert.Equal(t, common.ConfidenceHigh, DetermineConfidence(0.7, true, false, false))
	assert.Equal(t, common.ConfidenceMedium, DetermineConfidence(0.4, true, false, false))
	assert.Equal(t, common.ConfidenceHigh, DetermineConfidence(0.7, true, true, false))
	assert.Equal(t, common.ConfidenceLow, DetermineConfidence(0.25, true, true, false))
	assert.Equal(t, common.ConfidenceMedium, DetermineConfidence(0.25, true, false, false))
	assert.Equal(t, common.ConfidenceLow, DetermineConfidence(0, false, false, true))
	assert.Equal(t, common.ConfidenceLow, DetermineConfidence(0, false, false, false))
}

func TestDetermineConfidence_Monotonic(t *testing.T) {
	rank := map[common.Confidence]int{common.ConfidenceLow: 0, common.ConfidenceMedium: 1, common.ConfidenceHigh: 2}
	for _, clarifying := range []bool{false, true} {
		for _, ticket := range []bool{false, true} {
			hi := DetermineConfidence(0.7, true, clarifying, ticket)
			lo := DetermineConfidence(0.4, true, clarifying, ticket)
			assert.GreaterOrEqual(t, rank[hi], rank[lo])
		}
	}
}

func TestTicketFromResult(t *testing.T) {
	got := TicketFromResult(map[string]interface{}{"ticket_id": "TCK-00007"})
	require.NotNil(t, got)
	assert.Equal(t, common.Ticket{TicketID: "TCK-00007", Status: "created", Priority: "P2"}, *got)

	assert.Nil(t, TicketFromResult(map[string]interface{}{"error": "bad"}))
	assert.Nil(t, TicketFromResult("TCK-1"))
	assert.Nil(t, TicketFromResult((*common.Ticket)(nil)))
	assert.NotNil(t, TicketFromResult(&common.Ticket{TicketID: "TCK-00001"}))
}

func TestErrorResponse(t *testing.T) {
	resp := ErrorResponse(errors.New("upstream timeout"))
	assert.Equal(t, "Error processing request: upstream timeout", resp.Answer)
	assert.True(t, resp.Error)
	assert.Equal(t, common.ConfidenceLow, resp.Confidence)
	assert.Empty(t, resp.Sources)
	assert.Empty(t, resp.ActionsTaken)
	assert.Equal(t, []string{"Try again", "Check your connection", "Contact support"}, resp.NextSteps)
}
