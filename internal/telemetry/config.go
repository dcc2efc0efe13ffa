package telemetry

import "os"

// Capture flags latch once at process start so a run cannot change its own
// observability mid-flight. Setting a variable to 1 later still switches the
// flag on; a startup 1 is never revoked.
var startup struct {
	calibration bool
	observe     bool
	persist     bool
}

func init() {
	startup.calibration = os.Getenv("AGT_CALIBRATION_MODE") == "1"
	startup.observe = flagOr("AGT_OBSERVE_JSON", startup.calibration)
	startup.persist = flagOr("AGT_PERSIST_API_PAYLOADS", startup.calibration)
}

// flagOr reads an explicit 0/1 variable, falling back to def when unset.
// Calibration runs want the full record, so both capture flags default on
// under AGT_CALIBRATION_MODE=1.
func flagOr(name string, def bool) bool {
	if v, ok := os.LookupEnv(name); ok {
		return v == "1"
	}
	return def
}

// CalibrationModeEnabled reports whether this run is collecting calibration
// data for the token estimator.
func CalibrationModeEnabled() bool {
	return startup.calibration || os.Getenv("AGT_CALIBRATION_MODE") == "1"
}

// ObserveEnabled reports whether JSONL event emission is on.
func ObserveEnabled() bool {
	return startup.observe || os.Getenv("AGT_OBSERVE_JSON") == "1"
}

// PersistPayloadsEnabled reports whether raw API payload capture is on.
func PersistPayloadsEnabled() bool {
	return startup.persist || os.Getenv("AGT_PERSIST_API_PAYLOADS") == "1"
}
