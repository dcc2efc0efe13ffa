package telemetry

import (
	"context"

	"github.com/petasbytes/agent-core/internal/metrics"
)

// EmitLocalFeatures records deterministic text features of an outgoing user
// message. Only the counts leave the process, never the text itself. Emitted
// in calibration mode so local estimates can be lined up against the usage
// numbers the API reports for the same turn.
func EmitLocalFeatures(ctx context.Context, user string) {
	if !CalibrationModeEnabled() || !ObserveEnabled() {
		return
	}
	id, _ := TurnIDFromContext(ctx)
	f := metrics.CountFeatures(user)
	Emit("local_features", map[string]any{
		"turn_id":          id,
		"features_version": "1",
		"user": map[string]any{
			"bytes":          f.Bytes,
			"runes":          f.Runes,
			"words":          f.Words,
			"lines":          f.Lines,
			"token_estimate": f.TokenEstimate,
		},
	})
}
