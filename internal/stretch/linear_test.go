package stretch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func stereoRamp(n int) []float32 {
	out := make([]float32, n*2)
	for i := 0; i < n; i++ {
		out[2*i] = float32(i)
		out[2*i+1] = float32(-i)
	}
	return out
}

func TestLinearPrimitiveIdentityLengthPassthrough(t *testing.T) {
	p := NewLinearPrimitive()
	in := stereoRamp(16)
	out := make([]float32, len(in))
	p.Process(in, out)
	assert.Equal(t, in, out, "same-length resample with no transpose must be exact passthrough")
}

func TestLinearPrimitiveUpsampleStaysWithinInputRange(t *testing.T) {
	p := NewLinearPrimitive()
	in := stereoRamp(8)
	out := make([]float32, 40) // 20 output frames from 8 input frames
	p.Process(in, out)
	for i := 0; i < 20; i++ {
		l := out[2*i]
		assert.GreaterOrEqual(t, l, float32(0))
		assert.LessOrEqual(t, l, float32(7))
	}
}

func TestLinearPrimitiveSingleFrameInputHolds(t *testing.T) {
	p := NewLinearPrimitive()
	in := []float32{0.5, -0.5}
	out := make([]float32, 10)
	p.Process(in, out)
	for i := 0; i < 5; i++ {
		assert.Equal(t, float32(0.5), out[2*i])
		assert.Equal(t, float32(-0.5), out[2*i+1])
	}
}

func TestLinearPrimitiveEmptyInputYieldsSilence(t *testing.T) {
	p := NewLinearPrimitive()
	out := make([]float32, 8)
	p.Process(nil, out)
	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

func TestLinearPrimitiveTransposeChangesOutputLength1to1Mapping(t *testing.T) {
	p := NewLinearPrimitive()
	p.SetTransposeSemitones(12) // one octave up
	in := stereoRamp(64)
	out := make([]float32, 64*2)
	// Must not panic and must fully populate out regardless of the
	// intermediate pitch-shifted buffer length.
	p.Process(in, out)
	assert.Len(t, out, 128)
}

func TestSemitoneRatioOctave(t *testing.T) {
	assert.InDelta(t, 2.0, semitoneRatio(12), 1e-9)
	assert.InDelta(t, 0.5, semitoneRatio(-12), 1e-9)
	assert.InDelta(t, 1.0, semitoneRatio(0), 1e-9)
}
