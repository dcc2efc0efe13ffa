// Package metrics derives deterministic size features from text. The same
// arithmetic feeds send-window sizing and the calibration events, so the
// estimates the agent plans with are the estimates it records.
package metrics

import (
	"strings"
	"unicode/utf8"
)

// Features is the set of local counts taken over one piece of text.
type Features struct {
	Bytes         int
	Runes         int
	Words         int
	Lines         int
	TokenEstimate int
}

// CountFeatures measures s. Words split on Unicode whitespace; lines follow
// the countLines rule.
func CountFeatures(s string) Features {
	return Features{
		Bytes:         len(s),
		Runes:         utf8.RuneCountInString(s),
		Words:         len(strings.Fields(s)),
		Lines:         countLines(s),
		TokenEstimate: EstimateTokens(s),
	}
}

// EstimateTokens approximates the token cost of s as ceil(runes/4).
// Deterministic and monotonic in input length.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

// countLines counts newline-separated lines: empty input has none, and a
// trailing newline opens a final empty line.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return 1 + strings.Count(s, "\n")
}
