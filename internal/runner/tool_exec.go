package runner

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/petasbytes/agent-core/internal/telemetry"
	"github.com/petasbytes/agent-core/tools"
)

func (r *Runner) anthropicTools() []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(r.Tools))
	for _, t := range r.Tools {
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: t.InputSchema,
		}})
	}
	return out
}

// runTools executes tool_use blocks in response order and returns one
// tool_result per block, in that same order. Once ctx is cancelled the
// remaining blocks are answered with cancellation errors instead of
// being executed.
func (r *Runner) runTools(ctx context.Context, blocks []anthropic.ToolUseBlock) []anthropic.ContentBlockParamUnion {
	results := make([]anthropic.ContentBlockParamUnion, 0, len(blocks))
	for _, b := range blocks {
		if ctx.Err() != nil {
			results = append(results, anthropic.NewToolResultBlock(b.ID, "execution cancelled", true))
			continue
		}
		results = append(results, r.execTool(ctx, b.ID, b.Name, json.RawMessage(b.JSON.Input.Raw())))
	}
	return results
}

// execTool dispatches one tool_use block. Failures of any kind fold into an
// is_error tool_result; they never surface as transport errors.
func (r *Runner) execTool(ctx context.Context, id, name string, input json.RawMessage) anthropic.ContentBlockParamUnion {
	var def *tools.ToolDefinition
	for i := range r.Tools {
		if r.Tools[i].Name == name {
			def = &r.Tools[i]
			break
		}
	}

	turnID, _ := telemetry.TurnIDFromContext(ctx)

	// Helper to emit a tool_exec event. Error strings stay generic so raw
	// payloads never reach telemetry.
	emit := func(durationMs int64, inputSize int, outputSize int, errStr string) {
		fields := map[string]any{
			"tool_name":   name,
			"duration_ms": durationMs,
			"input_size":  inputSize,
			"output_size": outputSize,
			"turn_id":     turnID,
		}
		if errStr != "" {
			fields["error"] = errStr
		} else {
			fields["error"] = nil
		}
		telemetry.Emit("tool_exec", fields)
	}

	start := time.Now()
	inSize := len(input)

	if def == nil {
		emit(time.Since(start).Milliseconds(), inSize, 0, "tool not found")
		r.notifier().ToolFinished(name, errors.New("tool not found"))
		return anthropic.NewToolResultBlock(id, "tool not found", true)
	}

	r.notifier().ToolStarted(name)
	resp, err := def.Function(input)
	if err != nil {
		emit(time.Since(start).Milliseconds(), inSize, 0, "tool error")
		r.notifier().ToolFinished(name, err)
		// Preserve the detailed error message in the tool result content
		// returned to the model.
		return anthropic.NewToolResultBlock(id, err.Error(), true)
	}
	outSize := len(resp)
	emit(time.Since(start).Milliseconds(), inSize, outSize, "")
	r.notifier().ToolFinished(name, nil)
	return anthropic.NewToolResultBlock(id, resp, false)
}
