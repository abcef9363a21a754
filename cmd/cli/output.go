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

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"kb-support/internal/pipeline/common"
	"kb-support/internal/storage/runlog"
)

func printHistory(w io.Writer, rows []runlog.Entry) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range rows {
		fmt.Fprintf(w, "#%d  %s  thread=%s  tool=%s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.ThreadID, r.ToolName)
		fmt.Fprintf(w, "  user:   %s\n", r.UserMessage)
		fmt.Fprintf(w, "  args:   %s\n", indentJSON(r.ToolArgs))
		fmt.Fprintf(w, "  result: %s\n", indentJSON(r.ToolResult))
		fmt.Fprintf(w, "  answer: %s\n\n", r.FinalAnswer)
	}
	return nil
}

func printThreads(w io.Writer, threads []runlog.ThreadSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "THREAD\tRUNS")
	for _, t := range threads {
		fmt.Fprintf(tw, "%s\t%d\n", t.ThreadID, t.Count)
	}
	_ = tw.Flush()
}

func printResponse(w io.Writer, resp *common.StructuredResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// indentJSON 多行输出按两级缩进对齐
func indentJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "          ", "  "); err != nil {
		return string(raw)
	}
	return strings.TrimSpace(buf.String())
}
