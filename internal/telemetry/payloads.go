package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

var payloadSeq atomic.Uint64

// PersistPayload writes one raw API payload to payloads/ under the artifacts
// dir when AGT_PERSIST_API_PAYLOADS=1 (or calibration mode defaults it on).
// kind labels the direction, e.g. "request" or "response". Files are named
// <turn>-<seq>-<kind>.json; a process-wide sequence keeps retries distinct.
// Returns the written path, or "" when disabled or on write failure.
// Failures are reported to stderr and never surfaced to the caller.
func PersistPayload(ctx context.Context, kind string, data []byte) string {
	if !PersistPayloadsEnabled() {
		return ""
	}

	turnID, ok := TurnIDFromContext(ctx)
	if !ok {
		turnID = "untagged"
	}

	dir := filepath.Join(artifactsDir(), "payloads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		warnf("mkdir %s: %v", dir, err)
		return ""
	}

	seq := payloadSeq.Add(1)
	name := fmt.Sprintf("%s-%06d-%s.json", turnID, seq, kind)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		warnf("write %s: %v", path, err)
		return ""
	}

	Emit("payload_persisted", map[string]any{
		"turn_id": turnID,
		"kind":    kind,
		"path":    path,
		"bytes":   len(data),
	})
	return path
}
