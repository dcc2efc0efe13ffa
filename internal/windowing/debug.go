package windowing

import (
	"fmt"
	"os"
)

// The windowing passes are pure functions with no logger threaded through.
// Decisions that leave no trace in the returned values can be watched on
// stderr by setting AGT_VERBOSE_WINDOW_LOGS=1.
var debugOn = os.Getenv("AGT_VERBOSE_WINDOW_LOGS") == "1"

func debugf(format string, args ...any) {
	if debugOn {
		fmt.Fprintf(os.Stderr, "windowing: "+format+"\n", args...)
	}
}
