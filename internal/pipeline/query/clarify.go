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

var clarifyingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`to help (?:you|better|more|precisely)`),
	regexp.MustCompile(`could you (?:please )?(?:clarify|specify|tell me|provide)`),
	regexp.MustCompile(`which (?:one|method|way|option)`),
	regexp.MustCompile(`what (?:error|message|method|happened|did you)`),
	regexp.MustCompile(`are you (?:trying|using|getting)`),
	regexp.MustCompile(`do you (?:have|see|use|get)`),
	regexp.MustCompile(`please (?:clarify|specify|provide|tell)`),
	regexp.MustCompile(`чтобы помочь`),
	regexp.MustCompile(`уточните`),
	regexp.MustCompile(`какой|какая|какое`),
}

// IsClarifying 判断回答是否以追问为主
//
// 两个及以上问号一律视为追问；恰好一个问号时，命中追问句式且少于 50 词，
// 或全文少于 20 词，视为追问。
func IsClarifying(text string) bool {
	switch strings.Count(text, "?") {
	case 0:
		return false
	case 1:
	default:
		return true
	}
	words := len(strings.Fields(text))
	lower := strings.ToLower(text)
	for _, p := range clarifyingPatterns {
		if p.MatchString(lower) && words < 50 {
			return true
		}
	}
	return words < 20
}
