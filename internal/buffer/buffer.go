// Package buffer implements the shared audio buffer (spec §3/§4.1, C1):
// a reference-counted, immutable, 48 kHz planar-stereo PCM buffer for a
// loaded track's four stems. It is the only object simultaneously
// referenced by multiple threads while being read; once constructed it
// is never mutated, so concurrent reads require no synchronization.
//
// Allocation happens only in New, on the loader thread. The audio thread
// never allocates or frees a SharedStemBuffer directly: dropping the last
// reference hands the storage to a DropSink (the deferred collector, C4)
// instead of freeing it inline.
package buffer

import (
	"errors"
	"sync/atomic"
)

// SampleRate is the engine's fixed internal sample rate. The driver's
// output rate may differ; resampling to it is the driver adapter's job,
// not the engine's.
const SampleRate = 48000

// Stem indexes the four fixed stems carried by every deck.
type Stem int

const (
	Vocals Stem = iota
	Drums
	Bass
	Other
	NumStems
)

func (s Stem) String() string {
	switch s {
	case Vocals:
		return "vocals"
	case Drums:
		return "drums"
	case Bass:
		return "bass"
	case Other:
		return "other"
	default:
		return "stem?"
	}
}

// PlanarStereo is one stem's audio: interleaved L,R float32 samples at
// SampleRate, length 2*totalSamples.
type PlanarStereo []float32

// Frames reports the number of stereo frames held.
func (p PlanarStereo) Frames() int64 { return int64(len(p) / 2) }

// ErrOutOfMemory is returned by New when any of the four stems is nil;
// the only failure mode C1 defines (spec §4.1).
var ErrOutOfMemory = errors.New("buffer: out of memory")

// DropSink receives the erased destructor for a buffer whose refcount has
// reached zero. The deferred collector (package collector) implements
// this; buffer does not import it directly to avoid a cycle back to the
// package that schedules teardown.
type DropSink interface {
	Push(func())
}

// SharedStemBuffer is C1: four planar stereo stems plus a reference
// count. Reads during audio processing never touch the refcount; a
// handle's lifetime on the audio thread is guaranteed by the fact that it
// only enters via a LoadTrack command and only leaves via a later
// LoadTrack or engine shutdown, both of which route the replaced handle
// through the DropSink.
type SharedStemBuffer struct {
	stems    [NumStems]PlanarStereo
	refcount atomic.Int32
	sink     DropSink
}

// New allocates a SharedStemBuffer from four already-decoded stems. It is
// meant to be called on the loader thread only.
func New(stems [NumStems]PlanarStereo, sink DropSink) (*SharedStemBuffer, error) {
	for _, s := range stems {
		if s == nil {
			return nil, ErrOutOfMemory
		}
	}
	b := &SharedStemBuffer{stems: stems, sink: sink}
	b.refcount.Store(1)
	return b, nil
}

// Retain increments the reference count and returns the same handle,
// mirroring C1's clone_handle. Safe to call from any thread.
func (b *SharedStemBuffer) Retain() *SharedStemBuffer {
	b.refcount.Add(1)
	return b
}

// Release decrements the reference count. On the transition to zero the
// underlying storage is handed to the DropSink rather than freed inline,
// so Release is safe to call from the audio thread.
func (b *SharedStemBuffer) Release() {
	if b.refcount.Add(-1) == 0 {
		stems := b.stems
		if b.sink != nil {
			b.sink.Push(func() {
				for i := range stems {
					stems[i] = nil
				}
			})
		}
	}
}

// RefCount returns the current reference count; exposed for tests and the
// ownership-safety property (spec §8 property 4).
func (b *SharedStemBuffer) RefCount() int32 { return b.refcount.Load() }

// Stem returns the planar stereo data for a stem. Never returns nil for a
// validly constructed buffer.
func (b *SharedStemBuffer) Stem(s Stem) PlanarStereo { return b.stems[s] }

// TotalSamples returns the per-stem frame count (all four stems share the
// same length by construction).
func (b *SharedStemBuffer) TotalSamples() int64 {
	return b.stems[0].Frames()
}
