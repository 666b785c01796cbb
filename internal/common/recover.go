package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
)

// Recovered runs fn with panic protection. A panic is logged, dumped to
// a crash report, and swallowed so the caller keeps running. Scheduled
// pipeline runs go through this so one bad trigger cannot take the
// process down.
func Recovered(logger arbor.ILogger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			stackTrace := GetStackTrace()
			if logger != nil {
				logger.Error().
					Str("task", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Msg("Recovered from panic, continuing")
			}
			WriteCrashFile(r, stackTrace)
		}
	}()

	fn()
}
