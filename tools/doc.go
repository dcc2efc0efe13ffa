// Package tools is the tool surface offered to the model. Each
// ToolDefinition couples a wire name and JSON input schema with the Go
// handler that serves it. The file tools run inside a vault sandbox and
// page their output so a single result can never flood the send window;
// fetch_url reduces an http(s) page to readable text.
package tools
