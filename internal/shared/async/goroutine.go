// Package async starts background goroutines that log panics instead of
// crashing the process.
package async

import "runtime/debug"

// PanicLogger receives recovered panics.
type PanicLogger interface {
	Error(format string, args ...any)
}

// Go runs fn on a new goroutine and recovers any panic it raises.
func Go(logger PanicLogger, name string, fn func()) {
	go func() {
		defer Recover(logger, name)
		fn()
	}()
}

// Recover must be deferred. It logs a recovered panic with its stack.
func Recover(logger PanicLogger, name string) {
	r := recover()
	if r == nil {
		return
	}
	if logger == nil {
		return
	}
	logger.Error("goroutine panic [%s]: %v\n%s", name, r, debug.Stack())
}
