package delayline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroDelayIsPassthroughOnceFilled(t *testing.T) {
	l := New(16)
	in := []float32{0.1, 0.2, 0.3, 0.4}
	out := make([]float32, 4)
	l.Process(in, out)
	assert.Equal(t, in, out)
}

func TestDelayShiftsOutputBySetFrames(t *testing.T) {
	l := New(16)
	l.SetDelay(2)
	assert.Equal(t, 2, l.Delay())

	// Feed 5 distinct frames and confirm frame i appears at output i+2.
	in := make([]float32, 5*2)
	for i := 0; i < 5; i++ {
		in[2*i] = float32(i + 1)
		in[2*i+1] = float32(i + 1)
	}
	out := make([]float32, len(in))
	l.Process(in, out)

	assert.Equal(t, float32(0), out[0], "line needs delay+1 frames filled before output is trusted")
	assert.Equal(t, float32(0), out[2])
	assert.Equal(t, float32(1), out[4], "frame 0's value should appear at output frame 2")
	assert.Equal(t, float32(2), out[6], "frame 1's value should appear at output frame 3")
	assert.Equal(t, float32(3), out[8], "frame 2's value should appear at output frame 4")
}

func TestSetDelayClampsToCapacity(t *testing.T) {
	l := New(8)
	l.SetDelay(1000)
	assert.Equal(t, 7, l.Delay(), "delay must clamp to capacity-1")

	l.SetDelay(-5)
	assert.Equal(t, 0, l.Delay())
}

func TestProcessWrapsAroundRingCapacity(t *testing.T) {
	l := New(4)
	l.SetDelay(3)
	// Push more frames than capacity to exercise the wraparound write
	// pointer; the output must still lag input by exactly 3 frames once
	// the ring has filled past the delay.
	const total = 20
	in := make([]float32, total*2)
	for i := 0; i < total; i++ {
		in[2*i] = float32(i)
		in[2*i+1] = float32(i)
	}
	out := make([]float32, total*2)
	l.Process(in, out)
	for i := 3; i < total; i++ {
		assert.Equal(t, float32(i-3), out[2*i], "frame %d", i)
	}
}
