// Package stretch implements C6: per-deck drift-free time-stretch to the
// global BPM, plus independent pitch transpose for key matching.
//
// The hard requirement (spec §4.6, §8 property 2) is that the engine
// never loses or gains a source sample to rounding: the stretcher carries
// a fractional_residual across callback boundaries so that, over any
// interval spanning K callbacks of N frames each, the total number of
// source samples read is floor(K*N/r) or ceil(K*N/r) — never further off
// than that, no matter how the interval is chopped into callbacks.
package stretch

import "math"

// Stretcher owns one deck's drift-free fractional sample accumulator and
// drives an opaque Primitive that performs the actual resample/pitch
// shift. The accumulator lives here, in the engine-owned component,
// precisely because spec §4.6 calls the resample/pitch math itself "an
// opaque collaborator" but assigns the drift-free bookkeeping to the
// engine.
type Stretcher struct {
	ratio     float64 // r = bpm_global / bpm_original
	transpose float64 // semitones
	residual  float64 // fractional_residual in [0,1)
	prim      Primitive
}

// New creates a Stretcher with ratio 1 (no stretch) driving prim. If prim
// is nil, a LinearPrimitive is used.
func New(prim Primitive) *Stretcher {
	if prim == nil {
		prim = NewLinearPrimitive()
	}
	return &Stretcher{ratio: 1, prim: prim}
}

// SetRatio sets bpm_global/bpm_original. Values must be > 0; the caller
// (the conductor) is responsible for rejecting out-of-range ratios as a
// Configuration error before calling SetRatio.
func (s *Stretcher) SetRatio(r float64) {
	s.ratio = r
	s.prim.SetRatio(r)
}

// Ratio returns the current stretch ratio.
func (s *Stretcher) Ratio() float64 { return s.ratio }

// SetTransposeSemitones sets the key-match pitch transpose.
func (s *Stretcher) SetTransposeSemitones(t float64) {
	s.transpose = t
	s.prim.SetTransposeSemitones(t)
}

// SourceReadLength computes how many source samples to read this
// callback to produce nOutputFrames output frames, carrying the
// fractional remainder forward. This is the drift-free core of §4.6.
func (s *Stretcher) SourceReadLength(nOutputFrames int) int {
	want := float64(nOutputFrames)/s.ratio + s.residual
	n := math.Floor(want)
	s.residual = want - n
	return int(n)
}

// Residual exposes the current fractional residual, for tests and the
// drift-free property.
func (s *Stretcher) Residual() float64 { return s.residual }

// Process stretches the len(in)/2 stereo input frames into exactly
// len(out)/2 stereo output frames via the underlying Primitive.
func (s *Stretcher) Process(in []float32, out []float32) {
	s.prim.Process(in, out)
}

// Primitive is the opaque stretch/pitch-shift backend (spec §6): a
// per-deck object with set_ratio, set_transpose_semitones, and a
// whole-block process, required to be allocation-free on its hot path.
type Primitive interface {
	SetRatio(r float64)
	SetTransposeSemitones(t float64)
	// Process reads interleaved stereo in (len(in)/2 frames) and writes
	// exactly len(out)/2 interleaved stereo frames.
	Process(in []float32, out []float32)
}
