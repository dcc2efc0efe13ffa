package runner

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/anthropics/anthropic-sdk-go"
)

// State is the terminal condition of one RunTurn call.
type State int

const (
	StateDone State = iota
	StateStoppedByUser
	StateMaxIterations
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDone:
		return "done"
	case StateStoppedByUser:
		return "stopped_by_user"
	case StateMaxIterations:
		return "max_iterations"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Result reports how a turn ended. Notice and Advice are user-facing;
// Notice is the one-liner, Advice the remediation.
type Result struct {
	State      State
	FinalText  string
	Truncated  bool // the output token limit cut FinalText short
	Notice     string
	Advice     string
	Iterations int
}

// Turn is the explicit state threaded through RunTurn. The runner reads
// and writes it but keeps no turn state of its own, so a Turn can be
// persisted, inspected, or resumed by the caller between calls.
type Turn struct {
	// Messages is the full conversation history, oldest first.
	Messages []anthropic.MessageParam
	// Summary holds digests of history that truncation removed. It is
	// injected as a system prompt prefix on every request.
	Summary string

	stop atomic.Bool

	mu   sync.Mutex
	jobs []*summaryJob // in-flight summarization, oldest first
}

type summaryJob struct {
	done chan struct{}
	text string
}

// RequestStop asks the loop to stop before its next model call. Safe to
// call from another goroutine (signal handlers).
func (t *Turn) RequestStop() { t.stop.Store(true) }

// Stopped reports whether a stop was requested. The flag stays set until
// ClearStop.
func (t *Turn) Stopped() bool { return t.stop.Load() }

// ClearStop re-arms the turn after a user-requested stop.
func (t *Turn) ClearStop() { t.stop.Store(false) }

// drainSummary folds completed summarization jobs into Summary without
// blocking. Jobs complete in launch order; a still-running head job
// blocks later completed ones so the summary never reorders history.
func (t *Turn) drainSummary() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.jobs) > 0 {
		j := t.jobs[0]
		select {
		case <-j.done:
			if j.text != "" {
				t.foldSummaryLocked(j.text)
			}
			t.jobs = t.jobs[1:]
		default:
			return
		}
	}
}

// FlushSummary blocks until every in-flight summarization lands or ctx
// ends. Call before persisting the turn so the saved summary is complete.
func (t *Turn) FlushSummary(ctx context.Context) {
	for {
		t.mu.Lock()
		if len(t.jobs) == 0 {
			t.mu.Unlock()
			return
		}
		j := t.jobs[0]
		t.mu.Unlock()

		select {
		case <-j.done:
			t.mu.Lock()
			if j.text != "" {
				t.foldSummaryLocked(j.text)
			}
			if len(t.jobs) > 0 && t.jobs[0] == j {
				t.jobs = t.jobs[1:]
			}
			t.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (t *Turn) foldSummaryLocked(s string) {
	if t.Summary == "" {
		t.Summary = s
		return
	}
	t.Summary = t.Summary + "\n" + s
}

// enqueueSummary registers a job the runner is about to launch.
func (t *Turn) enqueueSummary(j *summaryJob) {
	t.mu.Lock()
	t.jobs = append(t.jobs, j)
	t.mu.Unlock()
}
