package safego

import (
	"testing"
	"time"
)

func TestGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})
	Go("panicky", func() {
		defer close(done)
		panic("tick went wrong")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("panicking goroutine never ran")
	}

	// The process is still alive; later launches keep working.
	ran := make(chan struct{})
	Go("healthy", func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("goroutine after a recovered panic never ran")
	}
}
