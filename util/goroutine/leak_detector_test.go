package goroutine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitForGoroutineCount(t *testing.T) {
	base := 0
	stop := make(chan struct{})
	go func() { <-stop }()

	assert.False(t, WaitForGoroutineCount(base, 20*time.Millisecond, 5*time.Millisecond))

	close(stop)
	assert.True(t, WaitForGoroutineCount(1000, time.Second, 5*time.Millisecond))
}

func TestAssertNoLeaks_FinishedWorkers(t *testing.T) {
	AssertNoLeaks(t)

	done := make(chan struct{})
	go func() {
		time.Sleep(5 * time.Millisecond)
		close(done)
	}()
	<-done
}
