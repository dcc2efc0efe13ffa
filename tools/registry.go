package tools

import "github.com/petasbytes/agent-core/internal/vault"

// Registry returns all tool definitions wired for the agent, with the file
// tools bound to v's sandbox.
func Registry(v *vault.Vault) []ToolDefinition {
	return []ToolDefinition{
		ReadFileTool(v),
		ListFilesTool(v),
		EditFileTool(v),
		FetchURLTool(nil),
	}
}
