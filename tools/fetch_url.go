package tools

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type FetchURLInput struct {
	URL      string `json:"url" jsonschema_description:"Absolute http or https URL to fetch."`
	MaxChars int    `json:"max_chars,omitempty" jsonschema_description:"Maximum characters of extracted text to return (default 12000)."`
}

const defaultFetchTimeout = 15 * time.Second

// defaultFetchMaxBytes caps how much of the response body is read.
const defaultFetchMaxBytes int64 = 2 * 1024 * 1024

// fetchRuneCap is the ceiling on extracted text, matching read_file's
// page ceiling so both tools feed the send window comparably sized results.
const fetchRuneCap = 12_000

const fetchMoreSentinel = "-- truncated; raise max_chars or fetch a more specific page --\n"

var FetchURLInputSchema = GenerateSchema[FetchURLInput]()

// FetchURLTool returns the fetch_url definition. A nil client selects a
// default with a 15s timeout; tests inject their own.
func FetchURLTool(client *http.Client) ToolDefinition {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return ToolDefinition{
		Name:        "fetch_url",
		Description: "Fetch a web page over http(s) and return its readable text content. HTML is reduced to text; script, style, and navigation chrome are dropped.",
		InputSchema: FetchURLInputSchema,
		Function: func(input json.RawMessage) (string, error) {
			return fetchURL(client, input)
		},
	}
}

// fetchURL downloads a page and reduces it to text with the same overall
// rune cap and sentinel as read_file, so tool results stay predictably
// small for windowing.
func fetchURL(client *http.Client, input json.RawMessage) (string, error) {
	var in FetchURLInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}

	u, err := url.Parse(in.URL)
	if err != nil {
		return "", fmt.Errorf("fetch_url: invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("fetch_url: unsupported scheme %q", u.Scheme)
	}

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("fetch_url: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.8,*/*;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch_url: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch_url: server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, defaultFetchMaxBytes))
	if err != nil {
		return "", fmt.Errorf("fetch_url: read body: %w", err)
	}

	var out string
	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "text/html"), strings.Contains(contentType, "application/xhtml"):
		out = htmlToText(string(body))
	case utf8.Valid(body):
		out = string(body)
	default:
		return "", fmt.Errorf("fetch_url: non-text content (%s)", contentType)
	}

	maxChars := in.MaxChars
	if maxChars <= 0 || maxChars > fetchRuneCap {
		maxChars = fetchRuneCap
	}
	if clamped, cut := capRunes(out, maxChars); cut {
		out = clamped
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += fetchMoreSentinel
	}
	return out, nil
}

// skipElements are HTML elements whose content is excluded from extraction.
var skipElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
}

// htmlToText parses HTML and returns readable text: the title first when
// present, then visible body text with block elements separated by newlines.
func htmlToText(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		// Unparseable input is returned as-is; the rune cap still applies.
		return raw
	}

	var b strings.Builder
	if title := findTitle(doc); title != "" {
		b.WriteString(strings.TrimSpace(title))
		b.WriteString("\n\n")
	}
	extractText(doc, &b)
	return collapseBlankLines(b.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		return b.String()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func extractText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode {
		if skipElements[n.DataAtom] || n.DataAtom == atom.Title {
			return
		}
		if isBlockElement(n.DataAtom) && b.Len() > 0 {
			b.WriteString("\n")
		}
	}
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			b.WriteString(text)
			b.WriteString(" ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, b)
	}
	if n.Type == html.ElementNode && (n.DataAtom == atom.Br || n.DataAtom == atom.Li) {
		b.WriteString("\n")
	}
}

func isBlockElement(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Main,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Blockquote, atom.Pre, atom.Ul, atom.Ol, atom.Table, atom.Tr:
		return true
	}
	return false
}

// collapseBlankLines trims trailing spaces and squeezes runs of blank lines.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	prevEmpty := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if prevEmpty {
				continue
			}
			prevEmpty = true
		} else {
			prevEmpty = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
