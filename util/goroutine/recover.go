package goroutine

import (
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"
)

// StackTraceBufferSize bounds the stack captured for a recovered panic
const StackTraceBufferSize = 4096

// PanicError is a recovered panic turned into an error value
type PanicError struct {
	Name  string
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Name, e.Value)
}

// Recover recovers from a panic in the calling goroutine and logs it.
// It must be deferred directly. If logger is nil the panic goes to stderr.
func Recover(name string, logger *zap.SugaredLogger) {
	if r := recover(); r != nil {
		report(name, r, logger)
	}
}

// RecoverTo behaves like Recover and additionally hands the panic to onPanic
// as a *PanicError, so a worker can turn it into a per-item failure.
func RecoverTo(name string, logger *zap.SugaredLogger, onPanic func(*PanicError)) {
	if r := recover(); r != nil {
		pe := report(name, r, logger)
		if onPanic != nil {
			onPanic(pe)
		}
	}
}

func report(name string, r interface{}, logger *zap.SugaredLogger) *PanicError {
	buf := make([]byte, StackTraceBufferSize)
	n := runtime.Stack(buf, false)
	pe := &PanicError{Name: name, Value: r, Stack: string(buf[:n])}

	if logger != nil {
		logger.Errorw("Goroutine panic recovered",
			"goroutine", name,
			"panic", r,
			"stack", pe.Stack)
	} else {
		fmt.Fprintf(os.Stderr, "PANIC in goroutine %s (no logger): %v\n%s\n", name, r, pe.Stack)
	}
	return pe
}
