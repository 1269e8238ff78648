package stretch

import "math"

// maxScratchFrames bounds LinearPrimitive's preallocated pitch-shift
// scratch buffer. At 48 kHz this covers +/-1 octave of transpose on a
// callback of up to ~8192 frames (~170ms), comfortably larger than any
// realistic driver period.
const maxScratchFrames = 1 << 15

// LinearPrimitive is a simple linear-interpolation stand-in for the real
// stretch/pitch backend spec §6 treats as an opaque external collaborator
// (a production engine would swap in a phase vocoder or WSOLA
// implementation). It satisfies the same allocation-free-hot-path
// requirement by preallocating its pitch-shift scratch buffer once, at
// construction, rather than per Process call.
type LinearPrimitive struct {
	ratio     float64
	transpose float64
	scratch   []float32
}

// NewLinearPrimitive constructs a ready-to-use primitive.
func NewLinearPrimitive() *LinearPrimitive {
	return &LinearPrimitive{ratio: 1, scratch: make([]float32, maxScratchFrames*2)}
}

func (p *LinearPrimitive) SetRatio(r float64)               { p.ratio = r }
func (p *LinearPrimitive) SetTransposeSemitones(t float64) { p.transpose = t }

// Process resamples in (len(in)/2 frames) to exactly len(out)/2 frames. If
// a transpose is set, it resamples in to an intermediate length of
// len(out)/2 frames scaled by the semitone ratio, then that to len(out)/2
// frames. The output pitch depends only on the in/out frame counts, so
// the transpose does not shift pitch.
func (p *LinearPrimitive) Process(in []float32, out []float32) {
	nIn := len(in) / 2
	nOut := len(out) / 2
	if p.transpose == 0 {
		resampleStereo(in, nIn, out, nOut)
		return
	}
	factor := semitoneRatio(p.transpose)
	nMid := int(math.Round(float64(nOut) * factor))
	if nMid < 1 {
		nMid = 1
	}
	if nMid > maxScratchFrames {
		nMid = maxScratchFrames
	}
	scratch := p.scratch[:nMid*2]
	resampleStereo(in, nIn, scratch, nMid)
	resampleStereo(scratch, nMid, out, nOut)
}

// semitoneRatio converts a semitone offset to a frequency ratio.
func semitoneRatio(semitones float64) float64 {
	return math.Pow(2, semitones/12.0)
}

// resampleStereo linearly interpolates nIn interleaved stereo frames of
// src into exactly nOut frames of dst. dst must have length 2*nOut.
func resampleStereo(src []float32, nIn int, dst []float32, nOut int) {
	if nOut <= 0 {
		return
	}
	if nIn <= 0 {
		for i := range dst[:2*nOut] {
			dst[i] = 0
		}
		return
	}
	if nIn == 1 {
		l, r := src[0], src[1]
		for i := 0; i < nOut; i++ {
			dst[2*i] = l
			dst[2*i+1] = r
		}
		return
	}
	step := float64(nIn-1) / float64(maxInt(nOut-1, 1))
	for i := 0; i < nOut; i++ {
		pos := step * float64(i)
		i0 := int(pos)
		if i0 >= nIn-1 {
			i0 = nIn - 2
		}
		frac := float32(pos - float64(i0))
		l := src[2*i0] + (src[2*i0+2]-src[2*i0])*frac
		r := src[2*i0+1] + (src[2*i0+3]-src[2*i0+1])*frac
		dst[2*i] = l
		dst[2*i+1] = r
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
