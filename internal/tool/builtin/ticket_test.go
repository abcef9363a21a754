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

package builtin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-support/internal/pipeline/common"
	"kb-support/internal/tool/registry"
)

func TestTicketTool_Execute(t *testing.T) {
	tt := NewTicketTool("")
	res, err := tt.Execute(context.Background(), map[string]any{
		"title":       "Payment failing",
		"description": "Card declined three times",
	})
	require.NoError(t, err)

	ticket, ok := res.Data.(common.Ticket)
	require.True(t, ok)
	assert.Equal(t, "P2", ticket.Priority)
	assert.Equal(t, "created", ticket.Status)
	assert.Regexp(t, `^TCK-\d{5}$`, ticket.TicketID)
	assert.JSONEq(t, `{"ticket_id":"`+ticket.TicketID+`","status":"created","priority":"P2"}`, res.Content)
}

func TestTicketTool_Deterministic(t *testing.T) {
	a := TicketID("Payment failing", "Card declined")
	b := TicketID("Payment failing", "Card declined")
	c := TicketID("Payment failing", "Card declined again")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestTicketTool_Priority(t *testing.T) {
	tt := NewTicketTool("P3")

	ticket, err := tt.Create(TicketArgs{Title: "t", Description: "d", Priority: " p1 "})
	require.NoError(t, err)
	assert.Equal(t, "P1", ticket.Priority)

	ticket, err = tt.Create(TicketArgs{Title: "t", Description: "d"})
	require.NoError(t, err)
	assert.Equal(t, "P3", ticket.Priority)

	_, err = tt.Create(TicketArgs{Title: "t", Description: "d", Priority: "urgent"})
	assert.True(t, errors.Is(err, common.ErrInvalidToolArgs))
}

func TestTicketTool_InvalidArgs(t *testing.T) {
	tt := NewTicketTool("P2")
	tests := []struct {
		name  string
		input map[string]any
	}{
		{"missing title", map[string]any{"description": "d"}},
		{"blank description", map[string]any{"title": "t", "description": "   "}},
		{"non-string title", map[string]any{"title": 42, "description": "d"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := tt.Execute(context.Background(), tc.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidToolArgs)
			assert.NotEmpty(t, res.Err)
		})
	}
}

func TestRegisterBuiltin_Definitions(t *testing.T) {
	reg := registry.New()
	RegisterBuiltin(reg, "P2")

	defs, err := reg.Definitions(common.ToolCreateTicket)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "create_ticket", defs[0].Name)
	assert.Contains(t, defs[0].Description, "For repeated payment failures, use priority P1")
	assert.Equal(t, []string{"title", "description"}, defs[0].Parameters["required"])

	props := defs[0].Parameters["properties"].(map[string]interface{})
	assert.Equal(t, "P2", props["priority"].(map[string]interface{})["default"])

	_, err = reg.Definitions("search_kb")
	assert.Error(t, err)
}
