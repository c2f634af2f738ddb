package goroutine

import (
	"runtime"
	"testing"
	"time"
)

const (
	leakTimeout      = 5 * time.Second
	leakPollInterval = 50 * time.Millisecond
)

// AssertNoLeaks fails t if, after the test and its cleanups, more goroutines
// are running than when AssertNoLeaks was called. Call it first in tests
// that start worker pools.
func AssertNoLeaks(t testing.TB) {
	t.Helper()
	before := runtime.NumGoroutine()

	t.Cleanup(func() {
		if WaitForGoroutineCount(before, leakTimeout, leakPollInterval) {
			return
		}
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		t.Errorf("goroutine leak: started with %d goroutines, ended with %d\n%s",
			before, runtime.NumGoroutine(), buf[:n])
	})
}

// WaitForGoroutineCount polls until at most target goroutines run or the
// timeout expires. It reports whether the target was reached.
func WaitForGoroutineCount(target int, timeout, pollInterval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if runtime.NumGoroutine() <= target {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}
