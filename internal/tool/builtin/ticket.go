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
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/go-playground/validator/v10"

	"kb-support/internal/pipeline/common"
	"kb-support/internal/tool"
)

// DefaultPriority 未指定优先级时使用
const DefaultPriority = "P2"

const ticketDescription = "Create a support ticket ONLY when:\n" +
	"1. The Knowledge Base results (provided above) contain no relevant information for the user's question, AND\n" +
	"2. The user's question is clear and complete (not vague or ambiguous).\n" +
	"\n" +
	"IMPORTANT:\n" +
	"- Knowledge Base has already been searched automatically - you have the results above\n" +
	"- If KB has relevant information, use it to answer - DO NOT create a ticket\n" +
	"- Only create a ticket if KB results are empty or completely irrelevant\n" +
	"- If the question is unclear, provide basic steps from KB first, then ask 1-2 clarifying questions\n" +
	"- For repeated payment failures, use priority P1"

var priorityPattern = regexp.MustCompile(`^P[0-9]$`)

// TicketArgs create_ticket 入参
type TicketArgs struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Priority    string `json:"priority" validate:"required,priority"`
}

// TicketTool create_ticket：生成确定性的工单号，不对接外部工单系统
type TicketTool struct {
	defaultPriority string
	validate        *validator.Validate
}

// NewTicketTool 创建 create_ticket 工具；defaultPriority 为空时用 P2
func NewTicketTool(defaultPriority string) *TicketTool {
	defaultPriority = strings.ToUpper(strings.TrimSpace(defaultPriority))
	if !priorityPattern.MatchString(defaultPriority) {
		defaultPriority = DefaultPriority
	}
	v := validator.New()
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return priorityPattern.MatchString(fl.Field().String())
	})
	return &TicketTool{defaultPriority: defaultPriority, validate: v}
}

// Name 实现 tool.Tool
func (t *TicketTool) Name() string { return common.ToolCreateTicket }

// Description 实现 tool.Tool；描述中带建单策略
func (t *TicketTool) Description() string { return ticketDescription }

// Schema 实现 tool.Tool
func (t *TicketTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"title":       {Type: "string"},
			"description": {Type: "string"},
			"priority":    {Type: "string", Default: t.defaultPriority},
		},
		Required: []string{"title", "description"},
	}
}

// Execute 实现 tool.Tool；参数非法时返回 common.ErrInvalidToolArgs
func (t *TicketTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	args, err := t.parseArgs(input)
	if err != nil {
		return tool.ToolResult{Err: err.Error()}, err
	}
	ticket, err := t.Create(args)
	if err != nil {
		return tool.ToolResult{Err: err.Error()}, err
	}
	content, _ := json.Marshal(ticket)
	return tool.ToolResult{Content: string(content), Data: ticket}, nil
}

func (t *TicketTool) parseArgs(input map[string]any) (TicketArgs, error) {
	var args TicketArgs
	for _, field := range []string{"title", "description", "priority"} {
		v, ok := input[field]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return args, fmt.Errorf("%w: %s must be a string", common.ErrInvalidToolArgs, field)
		}
		switch field {
		case "title":
			args.Title = s
		case "description":
			args.Description = s
		case "priority":
			args.Priority = s
		}
	}
	return args, nil
}

// Create 校验参数并生成工单
func (t *TicketTool) Create(args TicketArgs) (common.Ticket, error) {
	args.Priority = strings.ToUpper(strings.TrimSpace(args.Priority))
	if args.Priority == "" {
		args.Priority = t.defaultPriority
	}
	if strings.TrimSpace(args.Title) == "" {
		args.Title = ""
	}
	if strings.TrimSpace(args.Description) == "" {
		args.Description = ""
	}
	if err := t.validate.Struct(args); err != nil {
		return common.Ticket{}, fmt.Errorf("%w: %v", common.ErrInvalidToolArgs, err)
	}
	return common.Ticket{
		TicketID: TicketID(args.Title, args.Description),
		Status:   "created",
		Priority: args.Priority,
	}, nil
}

// TicketID 由标题与描述的哈希生成确定性工单号
func TicketID(title, description string) string {
	return fmt.Sprintf("TCK-%05d", xxhash.Sum64String(title+description)%100000)
}
