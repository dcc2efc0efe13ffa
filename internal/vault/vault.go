// Package vault provides sandboxed file access for tool execution.
// A Vault carries resolved read/write roots; all tool file operations
// address paths relative to those roots and never escape them.
package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ToolError is a machine-readable error body for surfacing back to the agent as JSON.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error returns a compact, single-line JSON string to keep tool_result payloads small.
func (e ToolError) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Vault is a pair of resolved sandbox roots. Zero value is not usable; use New.
type Vault struct {
	readRoot  string
	writeRoot string
}

// New resolves absolute sandbox roots and returns a Vault over them.
// An empty readRoot defaults to the current working directory; an empty
// writeRoot defaults to the read root. Symlinks in the roots are resolved
// up front so later boundary checks are reliable.
func New(readRoot, writeRoot string) (*Vault, error) {
	if readRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getwd: %w", err)
		}
		readRoot = cwd
	}
	if writeRoot == "" {
		writeRoot = readRoot
	}

	readRoot, err := filepath.Abs(readRoot)
	if err != nil {
		return nil, fmt.Errorf("abs(readRoot): %w", err)
	}
	writeRoot, err = filepath.Abs(writeRoot)
	if err != nil {
		return nil, fmt.Errorf("abs(writeRoot): %w", err)
	}

	// If EvalSymlinks fails (e.g., non-existent), fall back to the absolute path as-is.
	if r, err := filepath.EvalSymlinks(readRoot); err == nil {
		readRoot = r
	}
	if w, err := filepath.EvalSymlinks(writeRoot); err == nil {
		writeRoot = w
	}

	return &Vault{readRoot: readRoot, writeRoot: writeRoot}, nil
}

// ReadRoot returns the resolved absolute read root.
func (v *Vault) ReadRoot() string { return v.readRoot }

// WriteRoot returns the resolved absolute write root.
func (v *Vault) WriteRoot() string { return v.writeRoot }
