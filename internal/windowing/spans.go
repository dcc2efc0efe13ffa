// Package windowing bounds and selects the message history sent with each
// model request.
package windowing

import "github.com/anthropics/anthropic-sdk-go"

// Span is a contiguous run of messages [Start, End) that moves through
// windowing as one unit. A paired span holds an assistant tool_use message
// together with the user message answering it; paired spans are never cut
// apart by window selection or truncation.
type Span struct {
	Start  int
	End    int
	Paired bool
}

// AtomicSpans splits msgs into spans. An assistant message carrying tool_use
// blocks pairs with the next message when that message answers it completely:
//   - the next message is a user message, immediately adjacent;
//   - its tool_result blocks form the leading segment (text may follow the
//     results but never interleave them);
//   - result ids and tool_use ids match exactly, no misses and no strays.
//
// Results with is_error set pair like any other. A round that fails
// validation degrades to single-message spans rather than guessing.
func AtomicSpans(msgs []anthropic.MessageParam) []Span {
	spans := make([]Span, 0, len(msgs))
	for i := 0; i < len(msgs); i++ {
		if calls := toolCallIDs(msgs[i]); len(calls) > 0 {
			if i+1 == len(msgs) {
				debugf("span %d unpaired: history ends at the tool_use", i)
			} else if reason := pairViolation(msgs[i+1], calls); reason != "" {
				debugf("span %d unpaired: %s", i, reason)
			} else {
				spans = append(spans, Span{Start: i, End: i + 2, Paired: true})
				i++
				continue
			}
		}
		spans = append(spans, Span{Start: i, End: i + 1})
	}
	return spans
}

// toolCallIDs returns the tool_use ids of an assistant message, nil for any
// other message.
func toolCallIDs(m anthropic.MessageParam) map[string]struct{} {
	if m.Role != anthropic.MessageParamRoleAssistant {
		return nil
	}
	var ids map[string]struct{}
	for _, blk := range m.Content {
		if tu := blk.OfToolUse; tu != nil && tu.ID != "" {
			if ids == nil {
				ids = make(map[string]struct{})
			}
			ids[tu.ID] = struct{}{}
		}
	}
	return ids
}

// pairViolation reports why user message m fails to answer the given tool
// calls, or "" when it forms a valid pair.
func pairViolation(m anthropic.MessageParam, calls map[string]struct{}) string {
	if m.Role != anthropic.MessageParamRoleUser {
		return "next message is not from the user"
	}
	answered := make(map[string]struct{}, len(calls))
	leading := true
	for _, blk := range m.Content {
		tr := blk.OfToolResult
		if tr == nil {
			leading = false
			continue
		}
		if !leading {
			return "tool_result after other content"
		}
		if _, ok := calls[tr.ToolUseID]; !ok {
			return "tool_result answers no pending call"
		}
		answered[tr.ToolUseID] = struct{}{}
	}
	if len(answered) != len(calls) {
		return "tool calls left unanswered"
	}
	return ""
}
