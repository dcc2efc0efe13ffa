package windowing

import "github.com/anthropics/anthropic-sdk-go"

// Stats describes one window preparation pass.
type Stats struct {
	Total            int  // estimated tokens across the included spans
	Budget           int  // the budget the walk ran against
	IncludedSpans    int
	SkippedSpans     int
	OverBudgetNewest bool // the newest span alone exceeds Budget
}

// PrepareSendWindow selects the suffix of msgs that fits the token budget.
// Spans are taken whole, newest first, so a tool_use/tool_result pair never
// straddles the window edge; the walk stops at the first span that does not
// fit. When even the newest span exceeds the budget the window comes back
// empty with OverBudgetNewest set, and callers treat that as a configuration
// fault rather than send a request the API would reject.
func PrepareSendWindow(msgs []anthropic.MessageParam, budget int, c TokenCounter) ([]anthropic.MessageParam, Stats) {
	spans := AtomicSpans(msgs)
	stats := Stats{Budget: budget, SkippedSpans: len(spans)}
	if len(spans) == 0 {
		return nil, stats
	}
	if budget <= 0 {
		stats.OverBudgetNewest = true
		return nil, stats
	}

	start := len(msgs)
	for i := len(spans) - 1; i >= 0; i-- {
		cost := c.CountSpan(spans[i], msgs)
		if stats.Total+cost > budget {
			if stats.IncludedSpans == 0 {
				debugf("newest span cost %d exceeds budget %d", cost, budget)
				stats.OverBudgetNewest = true
			}
			break
		}
		stats.Total += cost
		stats.IncludedSpans++
		stats.SkippedSpans--
		start = spans[i].Start
	}
	if stats.IncludedSpans == 0 {
		return nil, stats
	}
	return msgs[start:], stats
}
