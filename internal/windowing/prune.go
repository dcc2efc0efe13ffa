package windowing

import (
	"strings"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
)

// ackPhrases are short acknowledgment-only texts considered low-information
// regardless of the minimum-length rule. Matching is case-insensitive on
// trimmed text.
var ackPhrases = map[string]struct{}{
	"ok":        {},
	"okay":      {},
	"k":         {},
	"thanks":    {},
	"thank you": {},
	"sure":      {},
	"yep":       {},
	"yes":       {},
	"got it":    {},
}

// PruneLowValue removes low-information messages from all but the most
// recent keepRecent messages. A message is low-information when its content
// is text-only and the joined text is an acknowledgment phrase or shorter
// than minChars runes. Messages carrying any structured block (tool_use,
// tool_result, or anything non-text) are never pruned. Order is preserved
// and the input slice is not mutated.
func PruneLowValue(msgs []anthropic.MessageParam, keepRecent, minChars int) []anthropic.MessageParam {
	if len(msgs) == 0 {
		return msgs
	}
	protectFrom := len(msgs) - keepRecent
	if protectFrom < 0 {
		protectFrom = 0
	}

	out := make([]anthropic.MessageParam, 0, len(msgs))
	for i, m := range msgs {
		if i < protectFrom && isLowValue(m, minChars) {
			debugf("pruned low-value message %d", i)
			continue
		}
		out = append(out, m)
	}
	return out
}

// isLowValue reports whether m is a prunable text-only message.
func isLowValue(m anthropic.MessageParam, minChars int) bool {
	var joined strings.Builder
	for _, blk := range m.Content {
		tb := blk.OfText
		if tb == nil {
			// Structured content: never prune.
			return false
		}
		joined.WriteString(tb.Text)
	}

	text := strings.TrimSpace(joined.String())
	if _, ok := ackPhrases[strings.ToLower(text)]; ok {
		return true
	}
	return utf8.RuneCountInString(text) < minChars
}
