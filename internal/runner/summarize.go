package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/agent-core/internal/provider"
	"github.com/petasbytes/agent-core/internal/telemetry"
	"github.com/petasbytes/agent-core/internal/windowing"
)

// Summarizer condenses messages split off from the active history into a
// summary string. Implementations must be safe to call from a background
// goroutine.
type Summarizer interface {
	Summarize(ctx context.Context, msgs []anthropic.MessageParam) (string, error)
}

// DigestSummarizer produces the deterministic local digest, with no model
// round trip. It is the default: summarization never becomes another way
// for a turn to fail.
type DigestSummarizer struct{}

func (DigestSummarizer) Summarize(_ context.Context, msgs []anthropic.MessageParam) (string, error) {
	return windowing.Digest(msgs), nil
}

// ModelSummarizer asks the model to condense the local digest further.
// Falls back to the plain digest when the call fails, so the summarized
// history is never lost.
type ModelSummarizer struct {
	Client    ModelClient
	Model     string
	MaxTokens int
}

func (s ModelSummarizer) Summarize(ctx context.Context, msgs []anthropic.MessageParam) (string, error) {
	digest := windowing.Digest(msgs)
	if digest == "" {
		return "", nil
	}

	maxTokens := s.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	prompt := fmt.Sprintf(
		"Condense the following conversation digest into a short paragraph that preserves decisions, open tasks, and file names. Reply with the paragraph only.\n\n%s",
		digest,
	)

	msg, err := s.Client.Send(ctx, provider.Request{
		Model:     s.Model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return digest, nil
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(tb.Text)
		}
	}
	condensed := strings.TrimSpace(b.String())
	if condensed == "" {
		return digest, nil
	}
	// Keep the delimiter so prompt assembly stays uniform across summarizers.
	if !strings.HasSuffix(condensed, windowing.SummaryDelimiter) {
		condensed = condensed + "\n" + windowing.SummaryDelimiter
	}
	return condensed, nil
}

// spawnSummary launches the summarizer on its own goroutine and registers
// the job with the turn. A failed summarizer falls back to the local
// digest so the split-off messages always leave a trace in the summary.
func (r *Runner) spawnSummary(ctx context.Context, turn *Turn, msgs []anthropic.MessageParam) {
	turnID, _ := telemetry.TurnIDFromContext(ctx)
	job := &summaryJob{done: make(chan struct{})}
	turn.enqueueSummary(job)
	r.notifier().SummaryQueued(len(msgs))

	go func() {
		defer close(job.done)
		text, err := r.summarizer().Summarize(ctx, msgs)
		if err != nil || text == "" {
			text = windowing.Digest(msgs)
		}
		job.text = text
		telemetry.Emit("summary_generated", map[string]any{
			"turn_id":      turnID,
			"messages":     len(msgs),
			"summary_size": len(text),
			"fallback":     err != nil,
		})
	}()
}

func (r *Runner) summarizer() Summarizer {
	if r.Summarizer != nil {
		return r.Summarizer
	}
	return DigestSummarizer{}
}
