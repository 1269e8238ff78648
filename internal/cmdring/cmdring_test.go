package cmdring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundsCapacityToPowerOfTwoWithFloor(t *testing.T) {
	r := New(10)
	assert.Equal(t, 1024, len(r.buf), "capacity below the 1024 floor must be raised")

	r2 := New(3000)
	assert.Equal(t, 4096, len(r2.buf), "capacity must round up to the next power of two")
}

func TestTryPushAndDrainFIFOOrder(t *testing.T) {
	r := New(8)
	for i := 0; i < 5; i++ {
		require.NoError(t, r.TryPush(Command{Kind: SetGlobalBPM, GlobalBPM: float64(i)}))
	}
	assert.Equal(t, 5, r.Len())

	var seen []float64
	n := r.Drain(10, func(c Command) { seen = append(seen, c.GlobalBPM) })
	assert.Equal(t, 5, n)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, seen)
	assert.Equal(t, 0, r.Len())
}

func TestTryPushFailsWhenFull(t *testing.T) {
	r := New(1) // rounds up to 1024 internal slots, still a fixed bound
	capacity := len(r.buf)
	for i := 0; i < capacity; i++ {
		require.NoError(t, r.TryPush(Command{}))
	}
	err := r.TryPush(Command{})
	assert.ErrorIs(t, err, ErrFull{})
}

func TestDrainRespectsMax(t *testing.T) {
	r := New(8)
	for i := 0; i < 5; i++ {
		require.NoError(t, r.TryPush(Command{}))
	}
	n := r.Drain(2, func(Command) {})
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, r.Len())
}

func TestPushBackoffSucceedsOnceSpaceFrees(t *testing.T) {
	r := New(1)
	capacity := len(r.buf)
	for i := 0; i < capacity; i++ {
		require.NoError(t, r.TryPush(Command{}))
	}

	done := make(chan error, 1)
	go func() {
		done <- r.PushBackoff(Command{Kind: SetGlobalBPM, GlobalBPM: 128}, 50*time.Millisecond)
	}()

	// Free one slot shortly after the backoff loop starts.
	time.Sleep(2 * time.Millisecond)
	r.Drain(1, func(Command) {})

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("PushBackoff did not return after a slot freed")
	}
}

func TestPushBackoffReturnsErrFullAfterDeadline(t *testing.T) {
	r := New(1)
	capacity := len(r.buf)
	for i := 0; i < capacity; i++ {
		require.NoError(t, r.TryPush(Command{}))
	}
	err := r.PushBackoff(Command{}, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrFull{})
}
