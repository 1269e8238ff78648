package collector

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushThenRunDrainsOnTick(t *testing.T) {
	c := New(16, 5*time.Millisecond, nil)
	var ran atomic.Int32
	c.Push(func() { ran.Add(1) })
	c.Push(func() { ran.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return ran.Load() == 2 }, 200*time.Millisecond, time.Millisecond)
	assert.EqualValues(t, 2, c.Ran())
	cancel()
	<-done
}

func TestRunDrainsAllOnContextCancel(t *testing.T) {
	c := New(16, time.Hour, nil) // tick never fires on its own within the test window
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		c.Push(func() { ran.Add(1) })
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.EqualValues(t, 5, ran.Load(), "shutdown drain must run every queued destructor")
}

func TestPushBeyondCapacityLeaksRatherThanBlocks(t *testing.T) {
	c := New(2, time.Hour, nil)
	c.Push(func() {})
	c.Push(func() {})
	// Queue is now full; a third push must return immediately rather than
	// block the caller (the audio thread's hard requirement).
	done := make(chan struct{})
	go func() {
		c.Push(func() {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Push blocked on a full queue")
	}
	assert.EqualValues(t, 1, c.Leaked())
}
