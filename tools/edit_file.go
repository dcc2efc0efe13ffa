package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/petasbytes/agent-core/internal/vault"
)

type EditFileInput struct {
	Path   string `json:"path" jsonschema_description:"Target relative file path"`
	OldStr string `json:"old_str" jsonschema_description:"Exact text to replace; must be present once when editing an existing file."`
	NewStr string `json:"new_str" jsonschema_description:"New text to write or replace old_str with"`
}

var EditFileInputSchema = GenerateSchema[EditFileInput]()

// EditFileTool binds edit_file to v's sandbox.
func EditFileTool(v *vault.Vault) ToolDefinition {
	return ToolDefinition{
		Name: "edit_file",
		Description: `Create or modify a text file addressed by a relative path within the workspace.

When old_str is empty and the file does not exist, a new file is created with new_str as its content.

When editing an existing file, every occurrence of old_str is replaced with new_str; old_str and new_str must differ.
`,
		InputSchema: EditFileInputSchema,
		Function: func(input json.RawMessage) (string, error) {
			return editFile(v, input)
		},
	}
}

func editFile(v *vault.Vault, input json.RawMessage) (string, error) {
	var in EditFileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	if in.Path == "" {
		return "", errors.New("path is required")
	}
	if in.OldStr == in.NewStr {
		return "", errors.New("old_str and new_str must differ")
	}

	current, err := v.ReadFile(in.Path)
	if err != nil {
		// A missing file plus an empty old_str means create; the write path
		// still enforces its own policy.
		if in.OldStr == "" {
			if werr := v.WriteFile(in.Path, in.NewStr); werr != nil {
				return "", werr
			}
			return fmt.Sprintf("Successfully created file %s", in.Path), nil
		}
		return "", err
	}

	if in.OldStr == "" {
		return "", errors.New("old_str must be provided when editing an existing file")
	}
	replaced := strings.ReplaceAll(current, in.OldStr, in.NewStr)
	if replaced == current {
		return "", errors.New("old_str not found in file")
	}
	if err := v.WriteFile(in.Path, replaced); err != nil {
		return "", err
	}
	return "OK", nil
}
