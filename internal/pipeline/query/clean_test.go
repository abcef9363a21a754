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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanAnswer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "numbered sections",
			in:   "(1) Answer: Reset your password via the login page.\n(2) Sources: https://help.example.com/kb/pw_reset\n(3) Next steps:\n- Do something useful",
			want: "Reset your password via the login page.",
		},
		{
			name: "plain headings",
			in:   "Summary line.\n\nSources:\n- https://help.example.com/kb/pw_reset\n\nNext steps:\n- Try again later please",
			want: "Summary line.",
		},
		{
			name: "russian sources header",
			in:   "Ответ.\n(2) Источники: ссылка\n\nДальше текст",
			want: "Ответ.\n\nДальше текст",
		},
		{
			name: "word containing sources is kept",
			in:   "Resources are limited on the Free tier.",
			want: "Resources are limited on the Free tier.",
		},
		{
			name: "step markers",
			in:   "(1) First\n(2) Second\n(3) Third",
			want: "First\nSecond\nThird",
		},
		{
			name: "blank lines collapsed",
			in:   "  Line one\n\n\n\n\nLine two  ",
			want: "Line one\n\nLine two",
		},
		{
			name: "case insensitive next steps",
			in:   "Do this first.\nNEXT STEPS - call us",
			want: "Do this first.",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanAnswer(tc.in))
		})
	}
}

func TestIsClarifying(t *testing.T) {
	long := "Open the login page and press the Sign in with Google button, then pick the account you used when you registered and finish the flow there, is that clear"

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"no question", "Reset your password from the login page.", false},
		{"two questions", "What error do you see? Which method do you use?", true},
		{"two questions long", long + "? " + long + "?", true},
		{"short single question", "Can I help with anything?", true},
		{"pattern under fifty words", long + ". Could you clarify which account you mean?", true},
		{"long without pattern", long + "?", false},
		{"russian pattern", "Уточните, пожалуйста, " + long + "?", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsClarifying(tc.in))
		})
	}
}

func TestExtractNextSteps(t *testing.T) {
	text := "Here is the fix.\n\nNext steps:\n- Contact your bank to confirm the charge\n- Short\n• Retry the payment in fifteen minutes\n"
	assert.Equal(t, []string{
		"Contact your bank to confirm the charge",
		"Retry the payment in fifteen minutes",
	}, ExtractNextSteps(text))

	numbered := "Summary.\n5. Next steps:\n- Keep the invoice number nearby\n- Check the gateway status page\n"
	assert.Equal(t, []string{"Keep the invoice number nearby", "Check the gateway status page"}, ExtractNextSteps(numbered))

	many := "Next steps:\n- Step number one here\n- Step number two here\n- Step number three here\n- Step number four here\n- Step number five here\n"
	assert.Len(t, ExtractNextSteps(many), 4)

	assert.Empty(t, ExtractNextSteps("No bullet list in this answer."))
	assert.Empty(t, ExtractNextSteps("Which one? Next steps:\n- Reply with the method you prefer\n"))
}

func TestStepTemplates(t *testing.T) {
	tpl := DefaultStepTemplates()

	steps := tpl.Steps("pw_reset", false)
	assert.Len(t, steps, 3)
	assert.Equal(t, "Use \"Sign in with Google\" on the login page", steps[0])

	steps = tpl.Steps("pw_reset", true)
	assert.Equal(t, "Are you trying to log in, or did you lose access to Google account?", steps[3])

	steps = tpl.Steps("api_rate_limit", true)
	assert.Equal(t, "Answer the clarifying question above", steps[3])

	steps = tpl.Steps("unknown", false)
	assert.Equal(t, []string{"Follow the steps provided above", "Check the knowledge base article for details"}, steps)

	// 返回副本，调用方修改不影响模板
	steps[0] = "changed"
	assert.Equal(t, "Follow the steps provided above", tpl.Steps("unknown", false)[0])
}

func TestGenericNextSteps(t *testing.T) {
	assert.Equal(t, "Wait for response on ticket TCK-00042", GenericNextSteps("TCK-00042", true)[0])
	assert.Equal(t, "Answer the clarifying questions above", GenericNextSteps("", true)[0])
	assert.Equal(t, "Try rephrasing your question", GenericNextSteps("", false)[0])
}
