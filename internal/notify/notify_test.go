package notify

import (
	"context"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestPushNonBlockingWhenFull(t *testing.T) {
	n := New(1, log.Default())
	n.Push(Event{Code: "first"})
	// Channel is now full; a second Push must not block.
	done := make(chan struct{})
	go func() {
		n.Push(Event{Code: "second"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Push blocked on a full channel")
	}
	assert.EqualValues(t, 1, n.Dropped())
}

func TestRunDrainsPushedEventsUntilCancelled(t *testing.T) {
	n := New(4, log.Default())
	n.Push(Event{Severity: SeverityConfig, Code: "ratio_out_of_range"})
	n.Push(Event{Severity: SeverityFatal, Code: "boom"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	// Give the drainer a moment to process both events, then stop it.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestNewDefaultsLoggerWhenNil(t *testing.T) {
	n := New(0, nil)
	assert.NotPanics(t, func() { n.Push(Event{Code: "x"}) })
}
