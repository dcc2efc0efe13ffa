package windowing

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
)

// Limits carries the bounds applied by one Truncate pass. Zero values
// disable the corresponding step.
type Limits struct {
	MaxMessages           int     // hard cap on message count
	RecentWindow          int     // messages kept verbatim when the summarize split fires
	ProtectRecent         int     // trailing messages exempt from content truncation
	PruneKeep             int     // trailing messages exempt from pruning
	MinPrunableChars      int     // prune threshold for text-only messages
	MaxToolResultChars    int     // per-block cap on tool_result content
	MaxAssistantTextChars int     // per-block cap on assistant free text
	AutoSummarizeRatio    float64 // usage ratio above which the split is preferred over trimming
	TokenBudget           int     // denominator for the usage ratio
}

// TruncateStats reports what one Truncate pass did.
type TruncateStats struct {
	Pruned          int // messages removed by low-value pruning
	Dropped         int // messages discarded by the hard-cap trim
	ToSummarize     int // messages handed off for summarization
	TruncatedBlocks int // content blocks clamped with a marker
	Estimate        int // post-prune token estimate used for the usage ratio
}

// TruncateResult is the outcome of a Truncate pass. ToSummarize is non-empty
// only when the history was over the hard cap and usage exceeded the
// auto-summarize ratio; the caller owns requesting the actual summary.
type TruncateResult struct {
	Messages    []anthropic.MessageParam
	ToSummarize []anthropic.MessageParam
	Stats       TruncateStats
}

// Truncate bounds a history in three steps: low-value pruning, a hard cap on
// message count (splitting off older messages for summarization when usage is
// high, trimming them otherwise), and per-message content truncation sparing
// the most recent messages.
//
// Cuts never separate a tool_use from its tool_result: a cut landing inside
// a pair is moved back to the pair's start so both ends stay on the kept side.
// The input slice is never mutated; clamped messages are rebuilt.
func Truncate(msgs []anthropic.MessageParam, lim Limits, c TokenCounter) TruncateResult {
	var stats TruncateStats

	cur := PruneLowValue(msgs, lim.PruneKeep, lim.MinPrunableChars)
	stats.Pruned = len(msgs) - len(cur)

	stats.Estimate = CountMessages(c, cur)

	var toSummarize []anthropic.MessageParam
	if lim.MaxMessages > 0 && len(cur) > lim.MaxMessages {
		if shouldSummarize(len(cur), stats.Estimate, lim) {
			cut := snapToSpanStart(cur, len(cur)-lim.RecentWindow)
			toSummarize = cur[:cut]
			cur = cur[cut:]
			stats.ToSummarize = len(toSummarize)
		} else {
			cut := snapToSpanStart(cur, len(cur)-lim.MaxMessages)
			stats.Dropped = cut
			cur = cur[cut:]
		}
	}

	cur, stats.TruncatedBlocks = truncateContents(cur, lim)

	return TruncateResult{Messages: cur, ToSummarize: toSummarize, Stats: stats}
}

// shouldSummarize decides between the summarize split and the simple trim
// for an over-cap history.
func shouldSummarize(n, estimate int, lim Limits) bool {
	if lim.AutoSummarizeRatio <= 0 || lim.TokenBudget <= 0 || lim.RecentWindow <= 0 {
		return false
	}
	if n <= lim.RecentWindow {
		return false
	}
	usage := float64(estimate) / float64(lim.TokenBudget)
	return usage > lim.AutoSummarizeRatio
}

// snapToSpanStart moves a message-index cut down to the start of the span
// containing it, so a tool_use/tool_result pair is never split. A cut on a
// span boundary is returned unchanged.
func snapToSpanStart(msgs []anthropic.MessageParam, cut int) int {
	if cut <= 0 {
		return 0
	}
	if cut >= len(msgs) {
		return len(msgs)
	}
	for _, s := range AtomicSpans(msgs) {
		if s.Start < cut && cut < s.End {
			debugf("cut %d snapped to span start %d", cut, s.Start)
			return s.Start
		}
	}
	return cut
}

// truncateContents applies per-block content caps to all but the last
// ProtectRecent messages. Returns the (possibly rebuilt) slice and the
// number of blocks clamped.
func truncateContents(msgs []anthropic.MessageParam, lim Limits) ([]anthropic.MessageParam, int) {
	protectFrom := len(msgs) - lim.ProtectRecent
	if protectFrom < 0 {
		protectFrom = 0
	}

	clamped := 0
	out := msgs
	for i := 0; i < protectFrom; i++ {
		m, n := truncateMessage(msgs[i], lim)
		if n == 0 {
			continue
		}
		if clamped == 0 {
			// First modification: copy the slice so the input stays untouched.
			out = make([]anthropic.MessageParam, len(msgs))
			copy(out, msgs)
		}
		out[i] = m
		clamped += n
	}
	return out, clamped
}

// truncateMessage rebuilds m with over-limit blocks clamped. Returns the
// original message and 0 when nothing needed clamping.
func truncateMessage(m anthropic.MessageParam, lim Limits) (anthropic.MessageParam, int) {
	clamped := 0
	var content []anthropic.ContentBlockParamUnion

	for bi, blk := range m.Content {
		var replaced *anthropic.ContentBlockParamUnion

		if tb := blk.OfText; tb != nil && m.Role == anthropic.MessageParamRoleAssistant && lim.MaxAssistantTextChars > 0 {
			if text, did := clampWithMarker(tb.Text, lim.MaxAssistantTextChars); did {
				nb := *tb
				nb.Text = text
				replaced = &anthropic.ContentBlockParamUnion{OfText: &nb}
			}
		}

		if tr := blk.OfToolResult; tr != nil && lim.MaxToolResultChars > 0 {
			if nb, did := clampToolResult(*tr, lim.MaxToolResultChars); did {
				replaced = &anthropic.ContentBlockParamUnion{OfToolResult: &nb}
			}
		}

		if replaced != nil {
			if content == nil {
				content = make([]anthropic.ContentBlockParamUnion, len(m.Content))
				copy(content, m.Content)
			}
			content[bi] = *replaced
			clamped++
		}
	}

	if clamped == 0 {
		return m, 0
	}
	m.Content = content
	return m, clamped
}

// clampToolResult clamps a tool_result's content to max runes. Nested text
// payloads are joined before clamping; the rebuilt block carries a single
// text element.
func clampToolResult(tr anthropic.ToolResultBlockParam, max int) (anthropic.ToolResultBlockParam, bool) {
	if nested, ok := any(tr.Content).([]anthropic.ToolResultBlockParamContentUnion); ok {
		var joined strings.Builder
		for i, nb := range nested {
			if nt := nb.OfText; nt != nil {
				if i > 0 {
					joined.WriteString("\n")
				}
				joined.WriteString(nt.Text)
			}
		}
		text, did := clampWithMarker(joined.String(), max)
		if !did {
			return tr, false
		}
		tr.Content = []anthropic.ToolResultBlockParamContentUnion{
			{OfText: &anthropic.TextBlockParam{Text: text}},
		}
		return tr, true
	}
	if s, ok := any(tr.Content).(string); ok {
		text, did := clampWithMarker(s, max)
		if !did {
			return tr, false
		}
		tr.Content = []anthropic.ToolResultBlockParamContentUnion{
			{OfText: &anthropic.TextBlockParam{Text: text}},
		}
		return tr, true
	}
	return tr, false
}

// clampWithMarker truncates s to at most max runes including a marker that
// records the original length. Strings at or under max pass through, so a
// second pass is a no-op.
func clampWithMarker(s string, max int) (string, bool) {
	total := utf8.RuneCountInString(s)
	if total <= max {
		return s, false
	}
	marker := fmt.Sprintf("\n[truncated: %d chars total]", total)
	keep := max - utf8.RuneCountInString(marker)
	if keep < 0 {
		keep = 0
	}
	r := []rune(s)
	return string(r[:keep]) + marker, true
}
