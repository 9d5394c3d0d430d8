// Package safego launches background goroutines that survive panics. The job
// tickers all go through it so one bad tick cannot silently kill its
// scheduler.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go runs fn on a new goroutine under a recover guard. name identifies the
// loop in the panic log; the stack is captured at recovery so the offending
// tick can be found even though the goroutine itself is gone.
func Go(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background goroutine panicked",
					"goroutine", name,
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
