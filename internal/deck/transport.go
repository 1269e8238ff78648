// Package deck implements C5: the per-deck transport/cue/loop/hot-cue
// state machine (spec §3/§4.5). Deck carries slip fields, but nothing
// reads or sets them: no jump is remembered or restored. All mutable
// deck state lives in the audio thread's private memory; every mutation
// here is called only from the engine conductor, while draining the
// command ring or while rendering a callback.
package deck

import (
	"math"

	"github.com/mesh-audio/djengine/internal/buffer"
)

// Transport is one of the five states spec §4.5 names.
type Transport int

const (
	Empty Transport = iota
	Cued
	Playing
	Previewing
	Scratching
)

func (t Transport) String() string {
	switch t {
	case Empty:
		return "empty"
	case Cued:
		return "cued"
	case Playing:
		return "playing"
	case Previewing:
		return "previewing"
	case Scratching:
		return "scratching"
	default:
		return "transport?"
	}
}

// Loop is an optional [Start,End) loop region, snapped to the beat grid.
type Loop struct {
	Start, End int64
	Active     bool
}

// HotCue is one of the eight optional stored sample positions.
type HotCue struct {
	Sample int64
	Color  uint32
	Set    bool
}

// LinkedStem mirrors spec §3's per-stem cross-track reference.
type LinkedStem struct {
	Ref    *buffer.LinkedStemRef
	Active bool
}

// minLoopBeats / maxLoopBeats bound HalveLength/DoubleLength per spec
// §4.5 ("never shrink below one beat or grow beyond 64 bars").
const (
	minLoopBeats = 1
	maxLoopBeats = 64 * 4 // 64 bars * 4 beats/bar
)

// Deck is C5.
type Deck struct {
	Index int

	transport Transport
	buf       *buffer.SharedStemBuffer
	meta      *buffer.Metadata

	position int64
	cuePoint int64
	cueSet   bool

	// previewAnchor is where a CueRelease snaps back to: either the deck's
	// cue point (ordinary cue-preview) or a hot-cue position (hot-cue
	// preview entered from Cued), per spec §4.5.
	previewAnchor int64

	hotCues [8]HotCue
	loop    Loop

	slip              bool
	slipSavedPosition int64
	slipActive        bool

	muteStem [buffer.NumStems]bool
	soloStem [buffer.NumStems]bool
	linked   [buffer.NumStems]LinkedStem

	lufsGain float64

	keyMatchEnabled      bool
	transposeSemitones   float64
	playStartedAtSamples int64

	cueEnabled bool
}

// SetCueEnabled configures whether this deck is routed to the cue bus
// (spec §4.8 step 5).
func (d *Deck) SetCueEnabled(on bool) { d.cueEnabled = on }

// CueEnabled reports whether this deck is currently routed to the cue
// bus.
func (d *Deck) CueEnabled() bool { return d.cueEnabled }

// New constructs an empty deck.
func New(index int) *Deck {
	return &Deck{Index: index}
}

// Transport reports the current transport state.
func (d *Deck) Transport() Transport { return d.transport }

// IsEmpty reports whether the deck has no track loaded; every command
// other than LoadTrack and SetCueEnabled is a documented no-op against an
// empty deck.
func (d *Deck) IsEmpty() bool { return d.transport == Empty }

// IsPlaying reports whether the deck is actively advancing and audible:
// Playing or Previewing both read from the buffer.
func (d *Deck) IsPlaying() bool {
	return d.transport == Playing || d.transport == Previewing
}

// Readable reports whether the conductor should read and render this
// deck's stems this callback. Every non-Empty, non-Cued state reads from
// the buffer; Scratching is included even though no command in this
// engine core drives it directly (it is set by a control-surface
// integration external to this package).
func (d *Deck) Readable() bool {
	return d.transport == Playing || d.transport == Previewing || d.transport == Scratching
}

// Position returns the deck's current source-domain sample position.
func (d *Deck) Position() int64 { return d.position }

// Metadata returns the loaded track's metadata, or nil if empty.
func (d *Deck) Metadata() *buffer.Metadata { return d.meta }

// Buffer returns the loaded host buffer, or nil if empty.
func (d *Deck) Buffer() *buffer.SharedStemBuffer { return d.buf }

// PlayStartedAt returns the engine-tick at which this deck most recently
// transitioned into Playing; used by the conductor for master selection.
func (d *Deck) PlayStartedAt() int64 { return d.playStartedAtSamples }

// LUFSGain returns the pre-fader gain multiplier computed at load time.
func (d *Deck) LUFSGain() float64 { return d.lufsGain }

// Loop returns the current loop state.
func (d *Deck) Loop() Loop { return d.loop }

// KeyMatchEnabled reports whether key-match is on for this deck.
func (d *Deck) KeyMatchEnabled() bool { return d.keyMatchEnabled }

// LoadTrack replaces the deck's buffer and metadata (spec §4.2/§4.5). The
// caller is responsible for routing the previously-held buffer (if any)
// to the deferred collector; LoadTrack returns it so the conductor can do
// so without Deck importing collector.
func (d *Deck) LoadTrack(buf *buffer.SharedStemBuffer, meta *buffer.Metadata, targetLUFS float64) (previous *buffer.SharedStemBuffer) {
	previous = d.buf
	d.buf = buf
	d.meta = meta
	d.transport = Cued
	d.position = meta.FirstBeatSample
	d.cuePoint = meta.FirstBeatSample
	d.cueSet = true
	d.previewAnchor = d.cuePoint
	d.loop = Loop{}
	for i := range d.hotCues {
		d.hotCues[i] = HotCue{}
	}
	for i := range d.muteStem {
		d.muteStem[i] = false
		d.soloStem[i] = false
	}
	d.lufsGain = lufsGainMultiplier(targetLUFS, meta.LUFSIntegrated)
	d.playStartedAtSamples = 0
	return previous
}

// lufsGainMultiplier implements spec §4.5: 10^((target-track)/20), applied
// once after stem sum, before effects.
func lufsGainMultiplier(targetLUFS, trackLUFS float64) float64 {
	return math.Pow(10, (targetLUFS-trackLUFS)/20.0)
}

// UnloadTrack clears the deck back to Empty and returns the buffer handle
// the caller must route to the collector.
func (d *Deck) UnloadTrack() (previous *buffer.SharedStemBuffer) {
	previous = d.buf
	*d = Deck{Index: d.Index}
	return previous
}

// PlayToggle implements the Cued<->Playing transition, plus the
// cue-pressed-then-play edge case (Previewing -> Playing).
func (d *Deck) PlayToggle(engineTick int64) {
	if d.IsEmpty() {
		return
	}
	switch d.transport {
	case Cued:
		d.transport = Playing
		d.playStartedAtSamples = engineTick
	case Playing:
		d.transport = Cued
	case Previewing:
		// Cue-pressed-then-play: stays at the current (previewed)
		// position; the subsequent CueRelease must not snap back.
		d.transport = Playing
		d.playStartedAtSamples = engineTick
	}
}

// CuePress implements cue-preview: only defined from the stopped (Cued)
// state. While Playing it is ignored per spec §4.5.
func (d *Deck) CuePress() {
	if d.IsEmpty() || d.transport != Cued {
		return
	}
	d.previewAnchor = d.cuePoint
	d.position = d.cuePoint
	d.transport = Previewing
}

// CueRelease snaps back to the preview anchor and returns to Cued. If the
// deck transitioned to Playing while the cue button was held (see
// PlayToggle), this is a no-op, matching the documented edge case.
func (d *Deck) CueRelease() {
	if d.IsEmpty() || d.transport != Previewing {
		return
	}
	d.position = d.previewAnchor
	d.transport = Cued
}

// SetCueHere sets the cue point to the current position.
func (d *Deck) SetCueHere() {
	if d.IsEmpty() {
		return
	}
	d.cuePoint = d.position
	d.cueSet = true
}

// HotCuePress implements the beat-aligned hot-cue jump (spec §4.5/§4.6).
func (d *Deck) HotCuePress(slot int, engineTick int64) {
	if d.IsEmpty() || slot < 0 || slot >= len(d.hotCues) {
		return
	}
	hc := d.hotCues[slot]
	if !hc.Set {
		return
	}
	target := d.beatAlignedJumpTarget(hc.Sample)
	switch d.transport {
	case Playing:
		d.position = target
		d.clampIntoLoop()
	case Cued:
		d.previewAnchor = target
		d.position = target
		d.transport = Previewing
	}
}

// beatAlignedJumpTarget computes hot_cue + delta, where delta is the
// signed, <= half-beat offset of the current position from the nearest
// beat line (spec §4.5: "preserves the phase within the beat grid").
// Clamped to 0: a hot cue near track start with a negative phase delta
// must not jump before sample 0.
func (d *Deck) beatAlignedJumpTarget(hotCueSample int64) int64 {
	if d.meta == nil {
		return hotCueSample
	}
	nearest := d.meta.NearestBeatSample(d.position)
	delta := d.position - nearest
	target := hotCueSample + delta
	if target < 0 {
		target = 0
	}
	return target
}

// HotCueClear clears a hot-cue slot. State-preserving.
func (d *Deck) HotCueClear(slot int) {
	if d.IsEmpty() || slot < 0 || slot >= len(d.hotCues) {
		return
	}
	d.hotCues[slot] = HotCue{}
}

// SetHotCue stores a hot cue at the given sample position in slot. No
// conductor command calls it; LoadTrack starts every slot empty.
func (d *Deck) SetHotCue(slot int, sample int64, color uint32) {
	if d.IsEmpty() || slot < 0 || slot >= len(d.hotCues) {
		return
	}
	d.hotCues[slot] = HotCue{Sample: sample, Color: color, Set: true}
}

// HotCue returns one hot-cue slot's state.
func (d *Deck) HotCue(slot int) HotCue {
	if slot < 0 || slot >= len(d.hotCues) {
		return HotCue{}
	}
	return d.hotCues[slot]
}

