package slicer

import (
	"math"

	"github.com/mesh-audio/djengine/internal/buffer"
	"github.com/mesh-audio/djengine/internal/errs"
)

// DefaultWindowBars is the slicer window size in bars when none is
// configured explicitly (spec §4.7).
const DefaultWindowBars = 4

// gridTolerance is how far (in samples) a window's nominal length may
// fall from an exact multiple of 16 before it is rejected as
// CodeSlicerBufferNotGridAligned.
const gridTolerance = 1.0

// Slicer is C7: one deck's 16-step, per-stem slice re-arranger. It reads
// from a sliding sequence of bar-aligned windows of the host buffer and,
// within each window, re-maps the 16 equal slices per the active step
// sequence.
type Slicer struct {
	active       bool
	pendingEnter bool
	pendingExit  bool

	windowBars  int
	windowStart int64 // source-domain sample where the current window began
	windowLen   int64
	sliceLength int64

	sequences [buffer.NumStems]StepSequence
	affected  [buffer.NumStems]bool
	presetID  int

	currentStep int
	deckIndex   int // for error reporting only
}

// New creates a Slicer preloaded with the identity preset (a transparent
// no-op until a non-identity preset or AssignSlot edit is applied).
func New(deckIndex int) *Slicer {
	s := &Slicer{windowBars: DefaultWindowBars, deckIndex: deckIndex}
	s.loadPreset(identityPreset(1))
	return s
}

func (s *Slicer) loadPreset(p Preset) {
	s.presetID = p.ID
	s.sequences = p.PerStem
	s.affected = p.AffectedStems
}

// LoadPreset installs one of the built-in catalog's programs by ID
// (1..8). Loading preset 1 is equivalent to ResetQueue.
func (s *Slicer) LoadPreset(id int) bool {
	p, ok := PresetByID(id)
	if !ok {
		return false
	}
	s.loadPreset(p)
	return true
}

// ResetQueue restores the identity preset (spec §4.7: "preset 1 acts as
// a reset").
func (s *Slicer) ResetQueue() { s.loadPreset(identityPreset(1)) }

// AssignSlot edits a single step of one stem's sequence and marks the
// loaded program as hand-edited (PresetID then reports 0). It only
// mutates the live sequence data consumed by Render; neither it nor the
// conductor plays an audition of the assigned slice.
func (s *Slicer) AssignSlot(stem buffer.Stem, step int, slot Slot) {
	if step < 0 || step >= Steps {
		return
	}
	s.sequences[stem][step] = slot
	s.presetID = 0
}

// SetAffected configures whether a stem participates in slicing at all;
// stems outside this set bypass the slicer entirely (spec §4.7).
func (s *Slicer) SetAffected(stem buffer.Stem, on bool) { s.affected[stem] = on }

// Affected reports whether stem is currently routed through the slicer.
func (s *Slicer) Affected(stem buffer.Stem) bool { return s.active && s.affected[stem] }

// Active reports whether the slicer is currently engaged.
func (s *Slicer) Active() bool { return s.active }

// PresetID returns the currently loaded preset ID (0 if slots were
// hand-edited since the last LoadPreset/ResetQueue — callers that only
// ever use LoadPreset/ResetQueue will see a stable, meaningful ID).
func (s *Slicer) PresetID() int { return s.presetID }

// CurrentStep returns the step index (0..15) the window is currently
// rendering, for UI/stateboard publication.
func (s *Slicer) CurrentStep() int { return s.currentStep }

// Sequence returns stem's currently loaded step sequence, for
// stateboard publication.
func (s *Slicer) Sequence(stem buffer.Stem) StepSequence { return s.sequences[stem] }

// SetWindowBars configures the window size; takes effect the next time a
// window is armed: at the bar boundary that honors an Enter or, while
// active, at the bar line that ends the current window.
func (s *Slicer) SetWindowBars(bars int) {
	if bars > 0 {
		s.windowBars = bars
	}
}

// Enter arms the slicer to engage at the next bar boundary (spec §4.7:
// "Enter/Exit... honored only at the next bar boundary"). It is a no-op
// if already active or already pending.
func (s *Slicer) Enter() {
	if s.active {
		return
	}
	s.pendingEnter = true
	s.pendingExit = false
}

// Exit arms the slicer to disengage at the next bar boundary.
func (s *Slicer) Exit() {
	if !s.active {
		s.pendingEnter = false
		return
	}
	s.pendingExit = true
}

// OnBarBoundary must be called by the conductor whenever the deck's
// playhead crosses a bar line (every 4 beats). meta is the host track's
// metadata; barStartSample is the source-domain sample of the bar line
// just crossed. It honors any pending Enter/Exit and, while active,
// re-arms window geometry once this bar line ends the current window.
//
// Returns a ConfigError (and leaves the slicer inactive) if the window
// length implied by windowBars bars does not divide evenly into 16
// slices within tolerance — CodeSlicerBufferNotGridAligned.
func (s *Slicer) OnBarBoundary(meta *buffer.Metadata, barStartSample int64) error {
	if s.pendingEnter {
		s.pendingEnter = false
		if err := s.armWindow(meta, barStartSample); err != nil {
			return err
		}
		s.active = true
		s.currentStep = 0
		return nil
	}
	if s.pendingExit {
		s.pendingExit = false
		s.active = false
		return nil
	}
	if s.active {
		// The window is re-armed only at the bar line that ends it, so
		// windows advance in a contiguous, always-grid-snapped sequence
		// (spec §4.7). One sample of slack covers windowLen's rounding.
		if barStartSample+1 < s.windowStart+s.windowLen {
			return nil
		}
		if err := s.armWindow(meta, barStartSample); err != nil {
			s.active = false
			return err
		}
	}
	return nil
}

func (s *Slicer) armWindow(meta *buffer.Metadata, start int64) error {
	spb := meta.SamplesPerBeat()
	nominal := float64(s.windowBars*4) * spb
	sliceLenF := nominal / float64(Steps)
	sliceLen := int64(math.Round(sliceLenF))
	if sliceLen < 1 {
		sliceLen = 1
	}
	windowLen := sliceLen * int64(Steps)
	if math.Abs(nominal-float64(windowLen)) > gridTolerance {
		return errs.NewConfigError(errs.CodeSlicerBufferNotGridAligned, s.deckIndex,
			"slicer window is not evenly divisible into 16 grid-aligned slices")
	}
	s.windowStart = start
	s.windowLen = windowLen
	s.sliceLength = sliceLen
	return nil
}

// stepFadeLength is the release fade applied to a muted step, per spec
// §4.7: "a linear fade-out of length slice_length/4 samples... rather
// than an instantaneous gate."
func (s *Slicer) stepFadeLength() int64 {
	l := s.sliceLength / 4
	if l < 1 {
		l = 1
	}
	return l
}

// Render fills out (len(out)/2 stereo frames) for one stem by reading
// src starting at the virtual source position t (source-domain sample
// index of the first output frame, before slicer re-mapping), applying
// the active step sequence. If the slicer is inactive or the stem is
// unaffected, callers should read src directly instead of calling
// Render; Render always assumes s.active && s.Affected(stem).
func (s *Slicer) Render(src buffer.PlanarStereo, stem buffer.Stem, t int64, out []float32) {
	seq := &s.sequences[stem]
	n := len(out) / 2
	fadeLen := s.stepFadeLength()
	for i := 0; i < n; i++ {
		pos := t + int64(i)
		l, r, step := s.sampleAt(src, seq, pos, fadeLen)
		out[2*i] = l
		out[2*i+1] = r
		s.currentStep = step
	}
}

func (s *Slicer) sampleAt(src buffer.PlanarStereo, seq *StepSequence, pos int64, fadeLen int64) (float32, float32, int) {
	rel := pos - s.windowStart
	windowIdx := floorDiv(rel, s.windowLen)
	intraWindow := rel - windowIdx*s.windowLen
	windowBase := s.windowStart + windowIdx*s.windowLen
	step := int(intraWindow / s.sliceLength)
	if step >= Steps {
		step = Steps - 1
	}
	stepOffset := intraWindow - int64(step)*s.sliceLength
	slot := seq[step]

	if slot.Muted {
		gain := float32(1)
		if stepOffset < fadeLen {
			gain = 1 - float32(stepOffset)/float32(fadeLen)
		} else {
			gain = 0
		}
		if gain == 0 {
			return 0, 0, step
		}
		// A muted step still fades out whatever the *previous* step was
		// playing, not silence-to-silence: read the previous step's primary
		// slice on past its end and ramp it down.
		prev, prevBase := seq[(step+Steps-1)%Steps], windowBase
		if step == 0 {
			prevBase -= s.windowLen
		}
		if prev.Muted {
			return 0, 0, step
		}
		l, r := readSlice(src, prevBase, s.sliceLength, prev.SliceIndex, s.sliceLength+stepOffset)
		return l * gain * prev.Velocity, r * gain * prev.Velocity, step
	}

	l, r := readSlice(src, windowBase, s.sliceLength, slot.SliceIndex, stepOffset)
	l *= slot.Velocity
	r *= slot.Velocity
	if slot.HasLayer {
		ll, rl := readSlice(src, windowBase, s.sliceLength, slot.LayerSliceIndex, stepOffset)
		l += ll * slot.LayerVelocity
		r += rl * slot.LayerVelocity
	}
	return l, r, step
}

func readSlice(src buffer.PlanarStereo, windowBase int64, sliceLength int64, sliceIndex int, offset int64) (float32, float32) {
	idx := windowBase + int64(sliceIndex)*sliceLength + offset
	if idx < 0 || idx >= src.Frames() {
		return 0, 0
	}
	return src[2*idx], src[2*idx+1]
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
