package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/agent-core/internal/config"
	"github.com/petasbytes/agent-core/internal/runner"
	"github.com/petasbytes/agent-core/internal/telemetry"
	"github.com/petasbytes/agent-core/memory"
)

// repl owns the interactive loop: one conversation open at a time, at
// most one turn in flight.
type repl struct {
	in     io.Reader
	out    io.Writer
	cfg    *config.Config
	store  *memory.Store
	runner *runner.Runner
	logger *slog.Logger

	conv *memory.Conversation
	turn *runner.Turn

	mu     sync.Mutex
	active *runner.Turn
}

func newREPL(in io.Reader, out io.Writer, cfg *config.Config, store *memory.Store, r *runner.Runner, logger *slog.Logger) *repl {
	app := &repl{in: in, out: out, cfg: cfg, store: store, runner: r, logger: logger}
	app.reset()
	return app
}

// reset starts a fresh conversation.
func (r *repl) reset() {
	r.conv = &memory.Conversation{}
	r.turn = &runner.Turn{}
}

func (r *repl) run(ctx context.Context) error {
	fmt.Fprintln(r.out, "Chat with Claude (Ctrl-C stops a turn, /help for commands)")
	if n := len(r.store.List()); n > 0 {
		fmt.Fprintf(r.out, "%d saved conversation(s); /list to browse.\n", n)
	}

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(r.in)
		for sc.Scan() {
			lines <- sc.Text()
		}
		if err := sc.Err(); err != nil {
			r.logger.Warn("stdin read error", "error", err)
		}
		close(lines)
	}()

	for {
		fmt.Fprint(r.out, "\u001b[94mYou\u001b[0m: ")
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			return r.shutdown()
		case line, ok = <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				return r.shutdown()
			}
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "/"):
			if quit := r.command(ctx, line); quit {
				return r.shutdown()
			}
		default:
			r.userTurn(ctx, line)
		}
		if ctx.Err() != nil {
			return r.shutdown()
		}
	}
}

// userTurn runs one full turn for the given input and persists the
// outcome. Partial progress on failure is persisted too.
func (r *repl) userTurn(ctx context.Context, text string) {
	r.turn.ClearStop()
	ctx = telemetry.WithTurnID(ctx, fmt.Sprintf("turn-%d", time.Now().UnixNano()))
	telemetry.EmitLocalFeatures(ctx, text)
	r.turn.Messages = append(r.turn.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))

	r.setActive(r.turn)
	res, err := r.runner.RunTurn(ctx, r.turn)
	r.setActive(nil)
	if err != nil {
		r.logger.Debug("turn ended with error", "error", err)
	}

	r.printResult(res)
	r.persist(ctx)
}

func (r *repl) printResult(res *runner.Result) {
	if res == nil {
		return
	}
	if res.State == runner.StateFailed {
		fmt.Fprintf(r.out, "\u001b[91m%s\u001b[0m\n", res.Notice)
		if res.Advice != "" {
			fmt.Fprintln(r.out, res.Advice)
		}
		return
	}
	if res.Notice != "" {
		fmt.Fprintf(r.out, "\u001b[90m%s\u001b[0m\n", res.Notice)
	}
	if res.Advice != "" {
		fmt.Fprintf(r.out, "\u001b[90m%s\u001b[0m\n", res.Advice)
	}
}

// persist folds pending summaries into the conversation and saves it.
// Conversations with no messages are not written.
func (r *repl) persist(ctx context.Context) {
	if !r.cfg.Store.Autosave || len(r.turn.Messages) == 0 {
		return
	}
	r.turn.FlushSummary(ctx)
	r.conv.Summary = r.turn.Summary
	r.conv.Messages = memory.FromParams(r.turn.Messages)
	r.store.EnsureName(ctx, r.conv)
	if err := r.store.Save(r.conv); err != nil {
		r.logger.Warn("save failed", "error", err)
	}
}

// shutdown persists the open conversation before exit. Uses its own
// deadline so a cancelled loop context cannot skip the final save.
func (r *repl) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.persist(ctx)
	return nil
}

// command handles a slash command. Returns true when the loop should exit.
func (r *repl) command(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/help":
		r.printHelp()
	case "/new":
		r.persist(ctx)
		r.reset()
		fmt.Fprintln(r.out, "Started a new conversation.")
	case "/list":
		r.printList()
	case "/open":
		r.open(ctx, arg)
	case "/delete":
		r.delete(arg)
	case "/quit", "/exit":
		return true
	default:
		fmt.Fprintf(r.out, "Unknown command %s; /help lists commands.\n", cmd)
	}
	return false
}

func (r *repl) printHelp() {
	fmt.Fprint(r.out, `Commands:
  /new           start a fresh conversation (current one is saved)
  /list          list saved conversations
  /open <n|id>   open a conversation by list number or id prefix
  /delete <n|id> delete a conversation
  /quit          save and exit
`)
}

func (r *repl) printList() {
	list := r.store.List()
	if len(list) == 0 {
		fmt.Fprintln(r.out, "No saved conversations.")
		return
	}
	for i, m := range list {
		name := m.Name
		if name == "" {
			name = "(unnamed)"
		}
		marker := " "
		if r.conv.ID != "" && m.ID == r.conv.ID {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %2d. %-34s %3d messages  %s\n",
			marker, i+1, name, m.MessageCount, m.UpdatedAt.Local().Format("Jan 2 15:04"))
	}
}

func (r *repl) open(ctx context.Context, arg string) {
	id, err := r.resolve(arg)
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	conv, ok := r.store.Get(id)
	if !ok {
		fmt.Fprintf(r.out, "conversation %s not found\n", id)
		return
	}
	r.persist(ctx)
	r.conv = conv
	r.turn = &runner.Turn{Messages: memory.ToParams(conv.Messages), Summary: conv.Summary}

	name := conv.Name
	if name == "" {
		name = conv.ID
	}
	fmt.Fprintf(r.out, "Opened %q (%d messages).\n", name, len(conv.Messages))
}

func (r *repl) delete(arg string) {
	id, err := r.resolve(arg)
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	if err := r.store.Delete(id); err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	if id == r.conv.ID {
		r.reset()
		fmt.Fprintln(r.out, "Deleted the open conversation; started a new one.")
		return
	}
	fmt.Fprintln(r.out, "Deleted.")
}

// resolve maps a /open or /delete argument to a conversation ID: a list
// number in the /list ordering, or a unique ID prefix.
func (r *repl) resolve(arg string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("missing conversation; use a /list number or an id prefix")
	}
	list := r.store.List()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(list) {
			return "", fmt.Errorf("no conversation %d; /list shows %d", n, len(list))
		}
		return list[n-1].ID, nil
	}
	var match string
	for _, m := range list {
		if strings.HasPrefix(m.ID, arg) {
			if match != "" {
				return "", fmt.Errorf("prefix %q is ambiguous", arg)
			}
			match = m.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no conversation matches %q", arg)
	}
	return match, nil
}

func (r *repl) setActive(t *runner.Turn) {
	r.mu.Lock()
	r.active = t
	r.mu.Unlock()
}

// interrupt requests a cooperative stop of the in-flight turn. Returns
// false when there is nothing to stop, or a stop is already pending, so
// the caller exits instead.
func (r *repl) interrupt() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.active.Stopped() {
		return false
	}
	r.active.RequestStop()
	fmt.Fprintln(r.out, "\nStopping after the current step (Ctrl-C again to exit).")
	return true
}
