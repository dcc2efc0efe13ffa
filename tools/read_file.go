package tools

import (
	"encoding/json"
	"strings"

	"github.com/petasbytes/agent-core/internal/vault"
)

type ReadFileInput struct {
	Path   string `json:"path" jsonschema_description:"Relative file path."`
	Offset int    `json:"offset,omitempty" jsonschema_description:"Line offset (0-based) to start reading from."`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Maximum lines to return from offset (default 200)."`
}

var ReadFileInputSchema = GenerateSchema[ReadFileInput]()

// Output caps. Tool results feed straight into the send window, so a page
// of file content has to stay small no matter what the file holds.
const (
	readPageLines  = 200    // lines per page when limit is unset
	readLineRunes  = 2000   // longest line returned intact
	readTotalRunes = 12_000 // ceiling across the whole page
)

const readMoreSentinel = "-- truncated; use offset/limit to fetch more --\n"

// ReadFileTool binds read_file to v's sandbox.
func ReadFileTool(v *vault.Vault) ToolDefinition {
	return ToolDefinition{
		Name:        "read_file",
		Description: "Read the contents of a file addressed by a relative file path within the workspace. Directory paths and unsafe paths are rejected.",
		InputSchema: ReadFileInputSchema,
		Function: func(input json.RawMessage) (string, error) {
			return readFile(v, input)
		},
	}
}

// readFile returns one page of a file: limit lines starting at offset, each
// line capped at readLineRunes and the whole page at readTotalRunes. When
// anything was left out, the page ends with readMoreSentinel so the model
// pages onward instead of assuming it saw the whole file.
func readFile(v *vault.Vault, input json.RawMessage) (string, error) {
	var in ReadFileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}

	content, err := v.ReadFile(in.Path)
	if err != nil {
		return "", err
	}

	limit := in.Limit
	if limit <= 0 {
		limit = readPageLines
	}
	lines := strings.Split(content, "\n")
	from := min(max(in.Offset, 0), len(lines))
	to := min(from+limit, len(lines))

	clipped := to < len(lines)
	page := make([]string, 0, to-from)
	for _, line := range lines[from:to] {
		capped, cut := capRunes(line, readLineRunes)
		clipped = clipped || cut
		page = append(page, capped)
	}

	out, cut := capRunes(strings.Join(page, "\n"), readTotalRunes)
	clipped = clipped || cut

	if clipped {
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += readMoreSentinel
	}
	return out, nil
}

// capRunes cuts s to at most n runes, reporting whether anything was cut.
func capRunes(s string, n int) (string, bool) {
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]), true
}
