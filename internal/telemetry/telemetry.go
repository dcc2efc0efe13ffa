// Package telemetry writes local observability artifacts: structured events
// as JSONL lines, and optionally the raw API payloads behind them. Nothing
// here ever fails the caller; telemetry problems are reported on stderr and
// swallowed.
//
// Artifacts land under AGT_ARTIFACTS_DIR when set, otherwise under .agent in
// the working directory.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const eventsFile = "events.jsonl"

// artifactsDir resolves the directory artifacts are written under.
func artifactsDir() string {
	if d := os.Getenv("AGT_ARTIFACTS_DIR"); d != "" {
		return d
	}
	return ".agent"
}

// warnf reports a telemetry-internal failure without surfacing it.
func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "telemetry: "+format+"\n", args...)
}

// Emit appends one event to events.jsonl when observation is enabled
// (AGT_OBSERVE_JSON=1, or calibration mode defaulting it on). The line
// carries the caller's fields plus "event" and an RFC3339Nano UTC "time";
// the caller's map is left untouched.
func Emit(name string, fields map[string]any) {
	if !ObserveEnabled() {
		return
	}

	rec := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		rec[k] = v
	}
	rec["event"] = name
	rec["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	line, err := json.Marshal(rec)
	if err != nil {
		warnf("marshal %s: %v", name, err)
		return
	}
	if err := appendLine(filepath.Join(artifactsDir(), eventsFile), line); err != nil {
		warnf("%v", err)
	}
}

// appendLine appends b plus a trailing newline to path, creating the parent
// directory and the file as needed.
func appendLine(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return nil
}
