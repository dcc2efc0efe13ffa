package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrorKind classifies a failed API response. Retry decisions and user
// messaging both branch on it.
type ErrorKind string

const (
	KindOverloaded      ErrorKind = "overloaded"
	KindRateLimited     ErrorKind = "rate_limited"
	KindInvalidRequest  ErrorKind = "invalid_request"
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindServerError     ErrorKind = "server_error"
	KindUnknown         ErrorKind = "unknown"
)

// APIError is a non-200 response from the messages endpoint.
type APIError struct {
	StatusCode int
	Kind       ErrorKind
	Type       string // wire error type, e.g. "overloaded_error"
	Message    string
	RetryAfter time.Duration // server hint on 429; 0 when absent
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("anthropic API error %d (%s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("anthropic API error %d (%s)", e.StatusCode, e.Kind)
}

// Notice returns a one-line description for direct display.
func (e *APIError) Notice() string {
	switch e.Kind {
	case KindOverloaded:
		return "The model is overloaded right now."
	case KindRateLimited:
		if e.RetryAfter > 0 {
			return fmt.Sprintf("Rate limited; the server asked for a %s wait.", e.RetryAfter)
		}
		return "Rate limited by the API."
	case KindInvalidRequest:
		return "The API rejected the request."
	case KindUnauthenticated:
		return "Authentication with the API failed."
	case KindServerError:
		return "The API hit an internal error."
	default:
		return "The API returned an unexpected error."
	}
}

// Advice returns remediation guidance to show alongside Notice.
func (e *APIError) Advice() string {
	switch e.Kind {
	case KindOverloaded:
		return "Wait a little and retry; overload usually clears within a minute."
	case KindRateLimited:
		return "Wait for the rate limit window to pass, or reduce request frequency."
	case KindInvalidRequest:
		return "Reduce the conversation history (start a new conversation with /new) or switch to a model with a larger context window."
	case KindUnauthenticated:
		return "Check that the API key environment variable is set to a valid, active key."
	case KindServerError:
		return "Retry shortly; if the failure persists, switch models or check the provider status page."
	default:
		return "Inspect the logged response body; this failure is not a known kind."
	}
}

// classify maps a status code plus the body's error type onto an
// ErrorKind. The wire type wins when recognised; the status code is the
// fallback for bodies that didn't parse.
func classify(status int, wireType string) ErrorKind {
	switch wireType {
	case "overloaded_error":
		return KindOverloaded
	case "rate_limit_error":
		return KindRateLimited
	case "invalid_request_error":
		return KindInvalidRequest
	case "authentication_error", "permission_error":
		return KindUnauthenticated
	case "api_error":
		return KindServerError
	}
	switch {
	case status == 529:
		return KindOverloaded
	case status == 429:
		return KindRateLimited
	case status == 400:
		return KindInvalidRequest
	case status == 401 || status == 403:
		return KindUnauthenticated
	case status >= 500:
		return KindServerError
	}
	return KindUnknown
}

// errorBodyCap bounds how much of an error body we read; real API errors
// are small and an HTML gateway page should not blow up logs.
const errorBodyCap = 4096

// readAPIError consumes resp's body and builds the classified error.
func readAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyCap))

	var wire struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &wire)

	e := &APIError{
		StatusCode: resp.StatusCode,
		Type:       wire.Error.Type,
		Message:    wire.Error.Message,
		Kind:       classify(resp.StatusCode, wire.Error.Type),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}

// parseRetryAfter handles both forms of the header: delta-seconds and
// HTTP-date.
func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
