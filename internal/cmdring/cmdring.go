// Package cmdring implements the single-producer/single-consumer command
// ring described in spec §3/§4.2: the only channel by which the Control,
// Loader, and MIDI threads reach the audio thread. The audio callback
// drains it at the start of every callback and never blocks on it.
package cmdring

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mesh-audio/djengine/internal/buffer"
)

// Kind tags a Command's payload.
type Kind int

const (
	LoadTrack Kind = iota
	UnloadTrack
	SetTransport
	SetLoop
	BeatJump
	SetStemMute
	SetStemSolo
	SetLinkedStem
	ToggleLinkedStem
	SetGlobalBPM
	SetMasterDeck
	SetKeyMatch
	SlicerEnter
	SlicerExit
	SlicerAssignSlot
	SlicerResetQueue
	SlicerLoadPreset
	SetBackpressureConfig
	SetCueEnabled
	Shutdown
)

// TransportAction enumerates spec §4.2's SetTransport actions.
type TransportAction int

const (
	PlayToggle TransportAction = iota
	CuePress
	CueRelease
	HotCuePress
	HotCueClear
	SetCueHere
)

// LoopAction enumerates spec §4.2's SetLoop actions.
type LoopAction int

const (
	LoopToggleAtPlayhead LoopAction = iota
	LoopHalveLength
	LoopDoubleLength
	LoopSetRange
	LoopClear
)

// Command is a single entry in the ring. Every field is read-only from the
// consumer's perspective once pushed; the producer never mutates a pushed
// Command. Unused fields for a given Kind are simply zero.
type Command struct {
	Kind          Kind
	Deck          int
	CorrelationID uuid.UUID

	// LoadTrack / SetLinkedStem payload.
	Buffer   *buffer.SharedStemBuffer
	Metadata *buffer.Metadata

	TransportAction TransportAction
	Slot            int // hot-cue slot, or slicer step

	LoopAction   LoopAction
	LoopBeats    float64
	LoopStart    int64
	LoopEnd      int64

	SignedBeats float64

	Stem buffer.Stem
	Bool bool

	GlobalBPM       float64
	MasterDeckAuto  bool
	MasterDeck      int
	KeyMatchEnabled bool

	SliceIndex      int
	Velocity        float32
	HasLayer        bool
	LayerSlice      int
	LayerVelocity   float32
	PresetID        int
}

// ErrFull is returned by TryPush when the ring has no free slot.
type ErrFull struct{}

func (ErrFull) Error() string { return "mesh-core: command ring full" }

// Ring is a bounded SPSC queue. Capacity is rounded up to a power of two,
// with a floor of 1024 per spec §3.
type Ring struct {
	buf  []Command
	mask uint64
	head atomic.Uint64 // next write index, producer-owned
	tail atomic.Uint64 // next read index, consumer-owned
}

// New creates a Ring with at least the requested capacity.
func New(capacity int) *Ring {
	if capacity < 1024 {
		capacity = 1024
	}
	n := 1
	for n < capacity {
		n <<= 1
	}
	return &Ring{buf: make([]Command, n), mask: uint64(n - 1)}
}

// TryPush attempts a single non-blocking enqueue.
func (r *Ring) TryPush(cmd Command) error {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= uint64(len(r.buf)) {
		return ErrFull{}
	}
	r.buf[head&r.mask] = cmd
	r.head.Store(head + 1)
	return nil
}

// PushBackoff retries TryPush with exponential backoff up to maxWait
// before surfacing ErrFull to the caller, per spec §4.2.
func (r *Ring) PushBackoff(cmd Command, maxWait time.Duration) error {
	if maxWait <= 0 {
		return r.TryPush(cmd)
	}
	delay := time.Microsecond * 50
	deadline := time.Now().Add(maxWait)
	for {
		if err := r.TryPush(cmd); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrFull{}
		}
		time.Sleep(delay)
		delay *= 2
		if delay > 2*time.Millisecond {
			delay = 2 * time.Millisecond
		}
	}
}

// Drain pops up to max commands, in FIFO submission order, invoking fn for
// each. It is the audio thread's only interaction with the ring. Returns
// the number of commands drained.
func (r *Ring) Drain(max int, fn func(Command)) int {
	tail := r.tail.Load()
	head := r.head.Load()
	n := 0
	for tail != head && n < max {
		fn(r.buf[tail&r.mask])
		tail++
		n++
	}
	r.tail.Store(tail)
	return n
}

// Len reports the number of commands currently queued. Safe to call from
// either thread; the value is a momentary snapshot.
func (r *Ring) Len() int {
	return int(r.head.Load() - r.tail.Load())
}
