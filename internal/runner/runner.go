package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/agent-core/internal/config"
	"github.com/petasbytes/agent-core/internal/provider"
	"github.com/petasbytes/agent-core/internal/telemetry"
	"github.com/petasbytes/agent-core/internal/windowing"
	"github.com/petasbytes/agent-core/tools"
)

// ModelClient is the provider surface the loop depends on.
// *provider.Client satisfies it.
type ModelClient interface {
	Send(ctx context.Context, req provider.Request) (*anthropic.Message, error)
}

// Notifier receives progress callbacks from the loop: assistant text, tool
// activity, and history maintenance. Calls are synchronous and must return
// quickly. Notifications never affect control flow; a nil Runner.Notifier
// disables them all.
type Notifier interface {
	AssistantText(text string)
	ToolStarted(name string)
	ToolFinished(name string, err error)
	HistoryTruncated(stats windowing.TruncateStats)
	SummaryQueued(messages int)
}

type noopNotifier struct{}

func (noopNotifier) AssistantText(string)                     {}
func (noopNotifier) ToolStarted(string)                       {}
func (noopNotifier) ToolFinished(string, error)               {}
func (noopNotifier) HistoryTruncated(windowing.TruncateStats) {}
func (noopNotifier) SummaryQueued(int)                        {}

// UnexpectedStopError reports a stop reason the loop has no handling for.
// Fatal: continuing past an unknown stop reason risks corrupting the
// conversation.
type UnexpectedStopError struct {
	StopReason string
}

func (e *UnexpectedStopError) Error() string {
	return fmt.Sprintf("unexpected stop reason %q", e.StopReason)
}

// Notice is the short user-facing line for the failure.
func (e *UnexpectedStopError) Notice() string {
	return fmt.Sprintf("The model stopped for an unhandled reason (%s).", e.StopReason)
}

// Advice is the longer remediation hint.
func (e *UnexpectedStopError) Advice() string {
	return "This usually means the API introduced a stop reason this agent predates. The conversation is intact; retry, or update the agent."
}

// Runner drives the request/tool loop for one conversation.
type Runner struct {
	Client     ModelClient
	Tools      []tools.ToolDefinition
	Config     *config.Config
	Summarizer Summarizer // nil means DigestSummarizer
	Notifier   Notifier   // nil disables notifications
}

func New(client ModelClient, toolDefs []tools.ToolDefinition, cfg *config.Config) *Runner {
	return &Runner{Client: client, Tools: toolDefs, Config: cfg}
}

func (r *Runner) notifier() Notifier {
	if r.Notifier != nil {
		return r.Notifier
	}
	return noopNotifier{}
}

// RunTurn runs one user turn to completion: model calls and tool
// round-trips until the model ends its turn, a stop is requested, the
// iteration cap is hit, or a fatal error occurs. The caller appends the
// user message to turn.Messages first. Every history mutation lands on the
// turn, including partial progress on failure.
//
// The returned Result is never nil; err is non-nil only when Result.State
// is StateFailed.
func (r *Runner) RunTurn(ctx context.Context, turn *Turn) (res *Result, err error) {
	turnID, ok := telemetry.TurnIDFromContext(ctx)
	if !ok {
		turnID = fmt.Sprintf("turn-%d", time.Now().UnixNano())
		ctx = telemetry.WithTurnID(ctx, turnID)
	}
	defer func() {
		if res == nil {
			return
		}
		telemetry.Emit("turn_complete", map[string]any{
			"turn_id":    turnID,
			"state":      res.State.String(),
			"iterations": res.Iterations,
			"truncated":  res.Truncated,
		})
	}()

	counter := windowing.HeuristicCounter{}
	budget := r.Config.Window.MessageTokenBudget(r.Config.MaxTokens)
	maxIter := r.Config.Agent.MaxIterations

	for iter := 1; iter <= maxIter; iter++ {
		turn.drainSummary()

		tr := windowing.Truncate(turn.Messages, r.limits(budget), counter)
		turn.Messages = tr.Messages
		if len(tr.ToSummarize) > 0 {
			r.spawnSummary(ctx, turn, tr.ToSummarize)
		}
		if s := tr.Stats; s.Pruned+s.Dropped+s.ToSummarize+s.TruncatedBlocks > 0 {
			r.notifier().HistoryTruncated(s)
			telemetry.Emit("history_truncated", map[string]any{
				"turn_id":          turnID,
				"pruned":           s.Pruned,
				"dropped":          s.Dropped,
				"to_summarize":     s.ToSummarize,
				"truncated_blocks": s.TruncatedBlocks,
				"estimate":         s.Estimate,
			})
		}

		window, stats := windowing.PrepareSendWindow(turn.Messages, budget, counter)
		telemetry.Emit("window_prepared", map[string]any{
			"turn_id":            turnID,
			"model":              r.Config.Model,
			"budget":             stats.Budget,
			"total_estimated":    stats.Total,
			"included_spans":     stats.IncludedSpans,
			"skipped_spans":      stats.SkippedSpans,
			"over_budget_newest": stats.OverBudgetNewest,
		})
		if os.Getenv("AGT_VERBOSE_WINDOW_LOGS") == "1" {
			fmt.Fprintf(os.Stderr,
				"window: model=%s budget=%d est_total=%d spans_in=%d spans_skip=%d newest_over=%t\n",
				r.Config.Model, stats.Budget, stats.Total, stats.IncludedSpans, stats.SkippedSpans, stats.OverBudgetNewest,
			)
		}
		// Content caps should guarantee the newest span fits. If it still
		// doesn't, the budget is misconfigured; fail fast.
		if stats.OverBudgetNewest {
			return &Result{
				State:      StateFailed,
				Iterations: iter,
				Notice:     "The newest messages alone exceed the context budget.",
				Advice:     "Raise window.token_budget (or context_window) with some headroom, or lower window.max_tool_result_chars so large tool output is clamped sooner.",
			}, fmt.Errorf("send window: the newest messages exceed the %d-token budget", budget)
		}

		req := provider.Request{
			Model:       r.Config.Model,
			MaxTokens:   r.Config.MaxTokens,
			System:      r.systemPrompt(turn),
			CacheSystem: r.Config.CacheSystemPrompt,
			Messages:    window,
		}
		// Calibration runs measure baseline behavior without tools.
		if !telemetry.CalibrationModeEnabled() {
			req.Tools = r.anthropicTools()
		}

		msg, sendErr := r.Client.Send(ctx, req)
		if sendErr != nil {
			return r.failResult(sendErr, iter)
		}

		turn.Messages = append(turn.Messages, msg.ToParam())

		var texts []string
		var toolUses []anthropic.ToolUseBlock
		for _, block := range msg.Content {
			switch v := block.AsAny().(type) {
			case anthropic.TextBlock:
				texts = append(texts, v.Text)
				r.notifier().AssistantText(v.Text)
			case anthropic.ToolUseBlock:
				toolUses = append(toolUses, v)
			}
		}

		switch msg.StopReason {
		case anthropic.StopReasonEndTurn:
			return &Result{
				State:      StateDone,
				FinalText:  strings.Join(texts, "\n"),
				Iterations: iter,
			}, nil

		case anthropic.StopReasonToolUse:
			if len(toolUses) == 0 {
				return &Result{
					State:      StateFailed,
					Iterations: iter,
					Notice:     "The model response was malformed.",
					Advice:     "Retry the message. If this keeps happening the configured model may be incompatible with this agent.",
				}, errors.New("model stopped for tool_use but sent no tool calls")
			}
			turn.Messages = append(turn.Messages, anthropic.NewUserMessage(r.runTools(ctx, toolUses)...))

		case anthropic.StopReasonMaxTokens:
			if len(toolUses) == 0 {
				return &Result{
					State:      StateDone,
					FinalText:  strings.Join(texts, "\n"),
					Truncated:  true,
					Iterations: iter,
					Notice:     "Response was cut off by the output token limit.",
					Advice:     `Type "continue" to have the model pick up where it left off, or raise max_tokens in the config.`,
				}, nil
			}
			// Partial tool round: run what arrived so the model can resume.
			turn.Messages = append(turn.Messages, anthropic.NewUserMessage(r.runTools(ctx, toolUses)...))

		default:
			return r.failResult(&UnexpectedStopError{StopReason: string(msg.StopReason)}, iter)
		}

		// A requested stop lands here, after the tool results are safely in
		// the history and before the next model call.
		if turn.Stopped() {
			return &Result{
				State:      StateStoppedByUser,
				Iterations: iter,
				Notice:     "Stopped.",
				Advice:     "Tool results so far are kept in the conversation; your next message resumes from here.",
			}, nil
		}
	}

	return &Result{
		State:      StateMaxIterations,
		Iterations: maxIter,
		Notice:     fmt.Sprintf("Reached the %d-iteration limit for this turn.", maxIter),
		Advice:     "Everything so far is kept. Send a follow-up message to let the model continue, or raise agent.max_iterations.",
	}, nil
}

// failResult converts a fatal loop error into the user-facing Result.
func (r *Runner) failResult(err error, iter int) (*Result, error) {
	res := &Result{State: StateFailed, Iterations: iter}
	var apiErr *provider.APIError
	var stopErr *UnexpectedStopError
	switch {
	case errors.As(err, &apiErr):
		res.Notice = apiErr.Notice()
		res.Advice = apiErr.Advice()
	case errors.As(err, &stopErr):
		res.Notice = stopErr.Notice()
		res.Advice = stopErr.Advice()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		res.Notice = "The request was interrupted."
		res.Advice = "The conversation is intact. Send another message to continue."
	default:
		res.Notice = "The model request failed."
		res.Advice = "Check connectivity and the configured base URL, then retry. Details: " + err.Error()
	}
	return res, err
}

// systemPrompt assembles the outgoing system prompt: the rolling summary,
// when present, precedes the configured base prompt.
func (r *Runner) systemPrompt(turn *Turn) string {
	base := r.Config.SystemPrompt
	switch {
	case turn.Summary == "":
		return base
	case base == "":
		return turn.Summary
	default:
		return turn.Summary + "\n\n" + base
	}
}

func (r *Runner) limits(budget int) windowing.Limits {
	w := r.Config.Window
	return windowing.Limits{
		MaxMessages:           w.MaxMessages,
		RecentWindow:          w.RecentWindow,
		ProtectRecent:         w.ProtectRecent,
		PruneKeep:             w.PruneKeep,
		MinPrunableChars:      w.MinPrunableChars,
		MaxToolResultChars:    w.MaxToolResultChars,
		MaxAssistantTextChars: w.MaxAssistantTextChars,
		AutoSummarizeRatio:    w.AutoSummarizeRatio,
		TokenBudget:           budget,
	}
}
