package windowing

import (
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// SummaryDelimiter terminates every digest so downstream prompt assembly can
// tell where injected summary text ends.
const SummaryDelimiter = "--- end of summary ---"

// digestTextCap bounds the text carried per message into the digest.
const digestTextCap = 200

// Digest produces a condensed textual digest of msgs: one line per message
// with a role label, the leading text capped at ~200 runes, and the names of
// any tools invoked. The result is intended to be injected as a prefix to
// the system prompt in place of the digested messages.
func Digest(msgs []anthropic.MessageParam) string {
	if len(msgs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Summary of earlier conversation:\n")
	for _, m := range msgs {
		role := "user"
		if m.Role == anthropic.MessageParamRoleAssistant {
			role = "assistant"
		}
		text, tools := digestParts(m)

		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(clampDigestText(text))
		if len(tools) > 0 {
			b.WriteString(" (tools: ")
			b.WriteString(strings.Join(tools, ", "))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	b.WriteString(SummaryDelimiter)
	return b.String()
}

// digestParts collects m's joined text and the tool names it invokes.
// Tool results contribute no text; their presence is implied by the
// assistant's tool names.
func digestParts(m anthropic.MessageParam) (string, []string) {
	var text strings.Builder
	var tools []string
	for _, blk := range m.Content {
		if tb := blk.OfText; tb != nil {
			if text.Len() > 0 {
				text.WriteString(" ")
			}
			text.WriteString(strings.TrimSpace(tb.Text))
		}
		if tu := blk.OfToolUse; tu != nil && tu.Name != "" {
			tools = append(tools, tu.Name)
		}
	}
	return strings.TrimSpace(text.String()), tools
}

func clampDigestText(s string) string {
	r := []rune(s)
	if len(r) <= digestTextCap {
		return s
	}
	return string(r[:digestTextCap]) + "..."
}
