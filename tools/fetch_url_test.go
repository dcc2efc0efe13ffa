package tools_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/petasbytes/agent-core/tools"
)

func fetchWith(t *testing.T, client *http.Client, in tools.FetchURLInput) (string, error) {
	t.Helper()
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	return tools.FetchURLTool(client).Function(b)
}

func TestFetchURL_ExtractsTitleAndText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Release Notes</title>
<script>var hidden = "secret";</script>
<style>.x { color: red; }</style></head>
<body><nav>Home | About</nav>
<h1>Changes</h1><p>Fixed the parser.</p><p>Added caching.</p>
<footer>Copyright</footer></body></html>`))
	}))
	defer srv.Close()

	out, err := fetchWith(t, srv.Client(), tools.FetchURLInput{URL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	for _, want := range []string{"Release Notes", "Changes", "Fixed the parser.", "Added caching."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, deny := range []string{"secret", "color: red", "Home | About", "Copyright"} {
		if strings.Contains(out, deny) {
			t.Errorf("output should not contain %q:\n%s", deny, out)
		}
	}
}

func TestFetchURL_PlainTextPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain body\n"))
	}))
	defer srv.Close()

	out, err := fetchWith(t, srv.Client(), tools.FetchURLInput{URL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out != "plain body\n" {
		t.Fatalf("got %q", out)
	}
}

func TestFetchURL_MaxCharsAppliesSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("a", 500)))
	}))
	defer srv.Close()

	out, err := fetchWith(t, srv.Client(), tools.FetchURLInput{URL: srv.URL, MaxChars: 100})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !strings.HasPrefix(out, strings.Repeat("a", 100)) {
		t.Fatalf("expected clamped prefix, got %q", out)
	}
	if !strings.Contains(out, "truncated") {
		t.Fatalf("expected truncation sentinel, got %q", out)
	}
}

func TestFetchURL_RejectsNonHTTPScheme(t *testing.T) {
	_, err := fetchWith(t, nil, tools.FetchURLInput{URL: "file:///etc/passwd"})
	if err == nil {
		t.Fatal("expected error for non-http scheme")
	}
	if !strings.Contains(err.Error(), "unsupported scheme") {
		t.Fatalf("expected unsupported scheme error, got: %v", err)
	}
}

func TestFetchURL_ServerErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fetchWith(t, srv.Client(), tools.FetchURLInput{URL: srv.URL})
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status in error, got: %v", err)
	}
}
