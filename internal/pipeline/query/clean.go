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
	"regexp"
	"strings"
)

var (
	numberedSourcesHeader = regexp.MustCompile(`(?is)\(2\)\s*(?:Sources|Источники)[:\-]?`)
	numberedNextSteps     = regexp.MustCompile(`(?is)\(3\)\s*(?:Next steps|Следующие шаги)[:\-]?.*`)
	sourcesHeader         = regexp.MustCompile(`(?i)\bSources[:\-]?`)
	nextStepsHeading      = regexp.MustCompile(`(?i)Next steps`)
	nextStepsTail         = regexp.MustCompile(`(?is)Next steps[:\-]?.*`)
	answerMarker          = regexp.MustCompile(`(?im)^\(1\)\s*(?:Answer[:\-]?\s*)?`)
	labeledMarker         = regexp.MustCompile(`(?i)\n\([123]\)\s*(?:Answer|Sources|Next steps)[:\-]?\s*`)
	inlineMarker          = regexp.MustCompile(`\n\([123]\)\s*`)
	lineStartMarker       = regexp.MustCompile(`(?m)^\([123]\)\s*`)
	extraBlankLines       = regexp.MustCompile(`\n{3,}`)
)

// CleanAnswer 去掉模型回显的 Sources / Next steps 段落与 (1)(2)(3) 编号，压缩多余空行
//
// 来源与下一步由结构化字段单独给出，正文里的同名段落会重复。
func CleanAnswer(text string) string {
	text = cutSections(text, numberedSourcesHeader, func(rest string) int {
		return firstIndex(rest, "\n(3)", "\n\n")
	})
	text = numberedNextSteps.ReplaceAllString(text, "")
	text = cutSections(text, sourcesHeader, func(rest string) int {
		if loc := nextStepsHeading.FindStringIndex(rest); loc != nil {
			return loc[0]
		}
		return len(rest)
	})
	text = nextStepsTail.ReplaceAllString(text, "")

	text = answerMarker.ReplaceAllString(text, "")
	text = labeledMarker.ReplaceAllString(text, "\n")
	text = inlineMarker.ReplaceAllString(text, "\n")
	text = lineStartMarker.ReplaceAllString(text, "")

	text = extraBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// cutSections 删除每个 header 起、到 stop 给出的位置为止的片段（不含终止符本身）
func cutSections(text string, header *regexp.Regexp, stop func(rest string) int) string {
	var sb strings.Builder
	pos := 0
	for pos < len(text) {
		loc := header.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		bodyStart := pos + loc[1]
		end := bodyStart + stop(text[bodyStart:])
		sb.WriteString(text[pos:start])
		pos = end
	}
	if pos < len(text) {
		sb.WriteString(text[pos:])
	}
	return sb.String()
}

// firstIndex 返回 rest 中任一 seps 最早出现的位置，均不出现时返回 len(rest)
func firstIndex(rest string, seps ...string) int {
	best := len(rest)
	for _, sep := range seps {
		if i := strings.Index(rest, sep); i >= 0 && i < best {
			best = i
		}
	}
	return best
}
