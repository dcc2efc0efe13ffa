package provider_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/petasbytes/agent-core/internal/provider"
)

func TestAPIError_MessageIncludesStatusAndKind(t *testing.T) {
	e := &provider.APIError{
		StatusCode: 529,
		Kind:       provider.KindOverloaded,
		Type:       "overloaded_error",
		Message:    "Overloaded",
	}
	got := e.Error()
	if !strings.Contains(got, "529") || !strings.Contains(got, "overloaded") || !strings.Contains(got, "Overloaded") {
		t.Fatalf("unexpected error string: %q", got)
	}
}

func TestAPIError_NoticeAndAdvicePerKind(t *testing.T) {
	kinds := []provider.ErrorKind{
		provider.KindOverloaded,
		provider.KindRateLimited,
		provider.KindInvalidRequest,
		provider.KindUnauthenticated,
		provider.KindServerError,
		provider.KindUnknown,
	}
	seen := map[string]bool{}
	for _, k := range kinds {
		e := &provider.APIError{Kind: k}
		notice, advice := e.Notice(), e.Advice()
		if notice == "" || advice == "" {
			t.Fatalf("kind %s: empty notice or advice", k)
		}
		if seen[notice] {
			t.Fatalf("kind %s: notice %q duplicates another kind's", k, notice)
		}
		seen[notice] = true
	}
}

func TestAPIError_RateLimitNoticeMentionsWait(t *testing.T) {
	e := &provider.APIError{Kind: provider.KindRateLimited, RetryAfter: 30 * time.Second}
	if !strings.Contains(e.Notice(), "30s") {
		t.Fatalf("notice should surface the server wait hint: %q", e.Notice())
	}
}

func TestAPIError_MatchableThroughWrapping(t *testing.T) {
	inner := &provider.APIError{StatusCode: 529, Kind: provider.KindOverloaded}
	wrapped := errorWrap(inner)

	var apiErr *provider.APIError
	if !errors.As(wrapped, &apiErr) || apiErr.Kind != provider.KindOverloaded {
		t.Fatalf("errors.As failed through wrapping: %v", wrapped)
	}
}

func errorWrap(err error) error {
	return &wrappedError{err}
}

type wrappedError struct{ inner error }

func (w *wrappedError) Error() string { return "wrapped: " + w.inner.Error() }
func (w *wrappedError) Unwrap() error { return w.inner }

func TestRetryAfterHeaderForms(t *testing.T) {
	// Delta-seconds form via a real 429 response path.
	hs := make(http.Header)
	hs.Set("Retry-After", "12")
	fake := &scriptedTransport{responses: []cannedResponse{{
		status: 429,
		body:   `{"type":"error","error":{"type":"rate_limit_error","message":"later"}}`,
		header: hs,
	}}}
	cli := provider.NewClient(provider.WithHTTPClient(&http.Client{Transport: fake}))

	_, err := cli.Send(context.Background(), basicRequest())
	var apiErr *provider.APIError
	if !errors.As(err, &apiErr) || apiErr.RetryAfter != 12*time.Second {
		t.Fatalf("unexpected RetryAfter: %v", err)
	}
}

func TestClassification_FallsBackToStatusCode(t *testing.T) {
	// Body that is not the structured error envelope.
	tests := []struct {
		status int
		want   provider.ErrorKind
	}{
		{529, provider.KindOverloaded},
		{429, provider.KindRateLimited},
		{400, provider.KindInvalidRequest},
		{401, provider.KindUnauthenticated},
		{403, provider.KindUnauthenticated},
		{502, provider.KindServerError},
		{418, provider.KindUnknown},
	}
	for _, tt := range tests {
		fake := &scriptedTransport{responses: []cannedResponse{{status: tt.status, body: "upstream gateway breakage"}}}
		// Empty retry policy: even the 529 row fails fast here.
		cli := provider.NewClient(
			provider.WithHTTPClient(&http.Client{Transport: fake}),
			provider.WithRetryPolicy(nil),
		)

		_, err := cli.Send(context.Background(), basicRequest())

		var apiErr *provider.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("status %d: expected APIError, got %v", tt.status, err)
		}
		if apiErr.Kind != tt.want {
			t.Fatalf("status %d: got kind %s want %s", tt.status, apiErr.Kind, tt.want)
		}
		if apiErr.Message != "upstream gateway breakage" {
			t.Fatalf("status %d: raw body should become the message, got %q", tt.status, apiErr.Message)
		}
	}
}
