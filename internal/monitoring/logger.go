package monitoring

import "log"

// Logf is the package-level diagnostic logger for the trajectory pipeline.
// It defaults to log.Printf but may be replaced by SetLogger. Tests or
// embedding applications can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
