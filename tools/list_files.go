package tools

import (
	"encoding/json"
	"slices"

	"github.com/petasbytes/agent-core/internal/vault"
)

type ListFilesInput struct {
	Path     string `json:"path,omitempty" jsonschema_description:"Optional relative path to list files from (defaults to current directory)."`
	Page     int    `json:"page,omitempty" jsonschema_description:"1-based page number (default 1)."`
	PageSize int    `json:"page_size,omitempty" jsonschema_description:"Page size (default 200)."`
}

var ListFilesInputSchema = GenerateSchema[ListFilesInput]()

const listPageSize = 200 // entries per page when page_size is unset

// ListFilesTool binds list_files to v's sandbox.
func ListFilesTool(v *vault.Vault) ToolDefinition {
	return ToolDefinition{
		Name:        "list_files",
		Description: "List names of files in a directory within the workspace (non-recursive).",
		InputSchema: ListFilesInputSchema,
		Function: func(input json.RawMessage) (string, error) {
			return listFiles(v, input)
		},
	}
}

// listFiles returns one page of directory entries as a JSON string array.
// Entries are sorted here so paging stays stable across filesystems; an
// out-of-range page is an empty array rather than an error.
func listFiles(v *vault.Vault, input json.RawMessage) (string, error) {
	var in ListFilesInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}

	names, err := v.ListFiles(in.Path)
	if err != nil {
		return "", err
	}
	slices.Sort(names)

	size := in.PageSize
	if size <= 0 {
		size = listPageSize
	}
	from := (max(in.Page, 1) - 1) * size
	if from >= len(names) {
		return "[]", nil
	}
	to := min(from+size, len(names))

	b, err := json.Marshal(names[from:to])
	if err != nil {
		return "", err
	}
	return string(b), nil
}
