package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/agent-core/internal/clock"
	"github.com/petasbytes/agent-core/internal/config"
	"github.com/petasbytes/agent-core/internal/provider"
	"github.com/petasbytes/agent-core/internal/runner"
	"github.com/petasbytes/agent-core/internal/vault"
	"github.com/petasbytes/agent-core/internal/windowing"
	"github.com/petasbytes/agent-core/memory"
	"github.com/petasbytes/agent-core/tools"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "agent: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	path, err := config.FindConfig(os.Getenv("AGT_CONFIG"))
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	if cfg.APIKey() == "" {
		return fmt.Errorf("missing API key; export %s before running", cfg.API.KeyEnv)
	}

	delays, err := cfg.Retry.Policy()
	if err != nil {
		return err
	}
	client := provider.NewClient(
		provider.WithAPIKey(cfg.APIKey()),
		provider.WithBaseURL(cfg.API.BaseURL),
		provider.WithRetryPolicy(delays),
		provider.WithRetryObserver(func(attempt int, delay time.Duration, _ error) {
			fmt.Fprintf(os.Stderr, "\u001b[90m(model overloaded, retry %d in %s)\u001b[0m\n", attempt, delay)
		}),
		provider.WithLogger(logger),
	)

	v, err := vault.New(cfg.Vault.ReadRoot, cfg.Vault.WriteRoot)
	if err != nil {
		return err
	}

	store, err := memory.Open(cfg.Store.Path, cfg.Store.MaxConversations, clock.Real())
	if err != nil {
		return err
	}
	store.Namer = &modelNamer{client: client, model: cfg.Model}

	r := runner.New(client, tools.Registry(v), cfg)
	r.Summarizer = runner.ModelSummarizer{Client: client, Model: cfg.Model}
	r.Notifier = replNotifier{out: os.Stdout}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := newREPL(os.Stdin, os.Stdout, cfg, store, r, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if app.interrupt() {
				continue
			}
			fmt.Println("\nExiting...")
			cancel()
			return
		}
	}()

	return app.run(ctx)
}

// replNotifier renders loop progress to the terminal. Assistant text and
// tool activity keep the original color scheme; maintenance notes are
// dimmed.
type replNotifier struct {
	out io.Writer
}

func (n replNotifier) AssistantText(text string) {
	fmt.Fprintf(n.out, "\u001b[93mClaude\u001b[0m: %s\n", text)
}

func (n replNotifier) ToolStarted(name string) {
	fmt.Fprintf(n.out, "\u001b[92mtool\u001b[0m: %s\n", name)
}

func (n replNotifier) ToolFinished(name string, err error) {
	if err != nil {
		fmt.Fprintf(n.out, "\u001b[92mtool\u001b[0m: %s failed: %v\n", name, err)
	}
}

func (n replNotifier) HistoryTruncated(stats windowing.TruncateStats) {
	fmt.Fprintf(n.out, "\u001b[90m(history trimmed: %d pruned, %d dropped, %d queued for summary)\u001b[0m\n",
		stats.Pruned, stats.Dropped, stats.ToSummarize)
}

func (n replNotifier) SummaryQueued(messages int) {
	fmt.Fprintf(n.out, "\u001b[90m(summarizing %d earlier messages in the background)\u001b[0m\n", messages)
}

// modelNamer asks the model for a short conversation title.
type modelNamer struct {
	client *provider.Client
	model  string
}

func (n *modelNamer) Name(ctx context.Context, msgs []memory.Message) (string, error) {
	var transcript strings.Builder
	for _, m := range msgs {
		for _, blk := range m.Blocks {
			if blk.Type == "text" && strings.TrimSpace(blk.Text) != "" {
				fmt.Fprintf(&transcript, "%s: %s\n", m.Role, blk.Text)
			}
		}
	}
	if transcript.Len() == 0 {
		return "", errors.New("no text to name from")
	}

	prompt := fmt.Sprintf(
		"Give this conversation a short title of at most five words. Reply with the title only.\n\n%s",
		transcript.String(),
	)
	msg, err := n.client.Send(ctx, provider.Request{
		Model:     n.model,
		MaxTokens: 64,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			// Models like to quote titles.
			if name := strings.Trim(strings.TrimSpace(tb.Text), `"`); name != "" {
				return name, nil
			}
		}
	}
	return "", errors.New("empty naming response")
}
