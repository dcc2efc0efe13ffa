// Package provider implements the Anthropic Messages API client: request
// construction from SDK param types, error classification, and bounded
// retry on overload.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/agent-core/internal/clock"
	"github.com/petasbytes/agent-core/internal/config"
	"github.com/petasbytes/agent-core/internal/telemetry"
)

const DefaultModel = anthropic.ModelClaude3_7SonnetLatest
const APIVersion = "2023-06-01"
const DefaultBaseURL = "https://api.anthropic.com"

// RetryObserver is notified once per backoff pause, before the wait
// starts. attempt counts from 1.
type RetryObserver func(attempt int, delay time.Duration, cause error)

// Request is one messages-endpoint call. Messages must already be
// windowed; the client sends them as-is.
type Request struct {
	Model       string
	MaxTokens   int
	System      string
	CacheSystem bool
	Messages    []anthropic.MessageParam
	Tools       []anthropic.ToolUnionParam
}

// Client talks to the messages endpoint directly over HTTP. Only
// overloaded responses are retried; every other failure surfaces as an
// *APIError immediately.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	clk        clock.Clock
	delays     []time.Duration
	observer   RetryObserver
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpClient = h } }

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithAPIKey(key string) Option { return func(c *Client) { c.apiKey = key } }

func WithClock(clk clock.Clock) Option { return func(c *Client) { c.clk = clk } }

// WithRetryPolicy sets the backoff schedule, consumed left to right, one
// delay per overloaded response. An empty slice disables retries.
func WithRetryPolicy(delays []time.Duration) Option {
	return func(c *Client) { c.delays = delays }
}

func WithRetryObserver(fn RetryObserver) Option { return func(c *Client) { c.observer = fn } }

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// NewClient builds a client with production defaults: real clock, the
// 1s/2s/4s retry schedule, and a transport with a generous response
// header timeout (the model can think for a while before replying).
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		clk:     clock.Real(),
		delays:  []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.httpClient == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = 120 * time.Second
		// No global timeout; rely on ctx deadlines for cancellation.
		c.httpClient = &http.Client{Transport: t}
	}
	return c
}

// Send performs the call with retry. On overload it waits per the retry
// schedule and tries again; all other error kinds return on first
// occurrence. When the schedule is exhausted the last overload error is
// returned wrapped, still matchable with errors.As.
func (c *Client) Send(ctx context.Context, req Request) (*anthropic.Message, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  req.Messages,
	}
	if req.System != "" {
		sys := anthropic.TextBlockParam{Text: req.System}
		if req.CacheSystem {
			sys.CacheControl = anthropic.NewCacheControlEphemeralParam()
		}
		params.System = []anthropic.TextBlockParam{sys}
	}
	if len(req.Tools) > 0 {
		params.Tools = req.Tools
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	turnID, _ := telemetry.TurnIDFromContext(ctx)
	for attempt := 0; ; attempt++ {
		telemetry.Emit("request_attempt", map[string]any{
			"turn_id": turnID,
			"attempt": attempt + 1,
			"model":   req.Model,
		})
		msg, err := c.post(ctx, body)
		if err == nil {
			telemetry.Emit("request_complete", map[string]any{
				"turn_id":       turnID,
				"attempts":      attempt + 1,
				"model":         req.Model,
				"stop_reason":   string(msg.StopReason),
				"input_tokens":  msg.Usage.InputTokens,
				"output_tokens": msg.Usage.OutputTokens,
			})
			return msg, nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Kind != KindOverloaded {
			return nil, err
		}
		if attempt >= len(c.delays) {
			return nil, fmt.Errorf("retries exhausted after %d attempts: %w", attempt+1, err)
		}

		delay := c.delays[attempt]
		c.logger.Warn("model overloaded, backing off",
			"attempt", attempt+1,
			"delay", delay,
		)
		telemetry.Emit("request_retry", map[string]any{
			"turn_id":  turnID,
			"attempt":  attempt + 1,
			"delay_ms": delay.Milliseconds(),
			"kind":     string(apiErr.Kind),
		})
		if c.observer != nil {
			c.observer(attempt+1, delay, err)
		}
		select {
		case <-c.clk.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// post performs a single HTTP round trip.
func (c *Client) post(ctx context.Context, body []byte) (*anthropic.Message, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", APIVersion)

	c.logger.Log(ctx, config.LevelTrace, "request payload", "json", string(body))
	telemetry.PersistPayload(ctx, "request", body)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := readAPIError(resp)
		c.logger.Error("API error",
			"status", apiErr.StatusCode,
			"kind", string(apiErr.Kind),
			"message", apiErr.Message,
		)
		return nil, apiErr
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Log(ctx, config.LevelTrace, "response payload", "json", string(respBody))
	telemetry.PersistPayload(ctx, "response", respBody)

	var msg anthropic.Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &msg, nil
}
