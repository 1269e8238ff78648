// Package stateboard implements the atomic state board (spec §3/§4.3,
// C3): a process-wide, lock-free table of per-deck and per-slicer runtime
// state, published once per callback by the audio thread and read at
// display rate by the GUI/control layer.
//
// Every field is a single-word atomic written with a plain Store at the
// end of the callback and read with a plain Load by readers. No field
// spans are synchronized against each other — the spec explicitly
// accepts a reader observing, e.g., a fresh is_playing with a stale
// position, because no invariant spans two fields (see the Open Question
// in spec §9: if one is ever added, publication must widen to a
// snapshot word or a seqlock).
package stateboard

import (
	"math"
	"sync/atomic"
)

const numDecks = 4
const numStems = 4
const slicerSteps = 16

// DeckSnapshot is one deck's published state.
type DeckSnapshot struct {
	Position              int64
	IsPlaying             bool
	LoopActive            bool
	LoopStart             int64
	LoopEnd               int64
	LUFSGain              float64
	KeyTransposeSemitones float64
}

// SlicerSnapshot is one deck's slicer state.
type SlicerSnapshot struct {
	Active            bool
	CurrentSliceIndex int32
	Queue             [slicerSteps]int32
}

// deckFields is cache-line-padded to avoid false sharing between decks;
// the audio thread updates all four every callback.
type deckFields struct {
	position   atomic.Int64
	isPlaying  atomic.Bool
	loopActive atomic.Bool
	loopStart  atomic.Int64
	loopEnd    atomic.Int64
	lufsGain   atomic.Uint64 // math.Float64bits
	keyTransp  atomic.Uint64 // math.Float64bits
	_          [8]uint64     // padding to a cache line
}

type slicerFields struct {
	active   atomic.Bool
	current  atomic.Int32
	queue    [slicerSteps]atomic.Int32
	_        [4]uint64
}

type linkFields struct {
	hasLinked atomic.Bool
	useLinked atomic.Bool
}

// Board is C3.
type Board struct {
	decks   [numDecks]deckFields
	slicers [numDecks]slicerFields
	links   [numDecks][numStems]linkFields
}

// New returns an empty Board.
func New() *Board { return &Board{} }

// PublishDeck writes one deck's snapshot. Called once per callback, at
// the end of conductor processing, with relaxed ordering semantics (Go's
// atomics are sequentially consistent per-variable, which is a strict
// superset of what the spec requires here).
func (b *Board) PublishDeck(i int, s DeckSnapshot) {
	d := &b.decks[i]
	d.position.Store(s.Position)
	d.isPlaying.Store(s.IsPlaying)
	d.loopActive.Store(s.LoopActive)
	d.loopStart.Store(s.LoopStart)
	d.loopEnd.Store(s.LoopEnd)
	d.lufsGain.Store(math.Float64bits(s.LUFSGain))
	d.keyTransp.Store(math.Float64bits(s.KeyTransposeSemitones))
}

// ReadDeck performs independent, non-blocking loads of every field. The
// result is a best-effort snapshot that may be torn across fields if a
// publish races it.
func (b *Board) ReadDeck(i int) DeckSnapshot {
	d := &b.decks[i]
	return DeckSnapshot{
		Position:              d.position.Load(),
		IsPlaying:             d.isPlaying.Load(),
		LoopActive:            d.loopActive.Load(),
		LoopStart:             d.loopStart.Load(),
		LoopEnd:               d.loopEnd.Load(),
		LUFSGain:              math.Float64frombits(d.lufsGain.Load()),
		KeyTransposeSemitones: math.Float64frombits(d.keyTransp.Load()),
	}
}

// PublishSlicer writes one deck's slicer snapshot.
func (b *Board) PublishSlicer(i int, s SlicerSnapshot) {
	sl := &b.slicers[i]
	sl.active.Store(s.Active)
	sl.current.Store(s.CurrentSliceIndex)
	for step := 0; step < slicerSteps; step++ {
		sl.queue[step].Store(s.Queue[step])
	}
}

// ReadSlicer reads one deck's slicer snapshot.
func (b *Board) ReadSlicer(i int) SlicerSnapshot {
	sl := &b.slicers[i]
	var out SlicerSnapshot
	out.Active = sl.active.Load()
	out.CurrentSliceIndex = sl.current.Load()
	for step := 0; step < slicerSteps; step++ {
		out.Queue[step] = sl.queue[step].Load()
	}
	return out
}

// PublishLink writes whether deck/stem has a linked buffer, and whether
// it is currently routed through it.
func (b *Board) PublishLink(deck int, stem int, hasLinked, useLinked bool) {
	l := &b.links[deck][stem]
	l.hasLinked.Store(hasLinked)
	l.useLinked.Store(useLinked)
}

// ReadLink reads one deck/stem's link state.
func (b *Board) ReadLink(deck int, stem int) (hasLinked, useLinked bool) {
	l := &b.links[deck][stem]
	return l.hasLinked.Load(), l.useLinked.Load()
}
