// Package slicer implements C7: the per-deck, per-stem 16-step
// re-arrangement engine (spec §4.7). A slicer window is a contiguous,
// bar-aligned span of the track; it is divided into 16 equal slices and
// played back under a step sequence that can repeat, layer, mute, or
// re-order those slices.
package slicer

import "github.com/mesh-audio/djengine/internal/buffer"

// Steps is the fixed step-sequence length.
const Steps = 16

// Slot is one step of a per-stem sequence: a primary slice (with
// velocity), an optional layered second slice, or Muted.
type Slot struct {
	Muted           bool
	SliceIndex      int
	Velocity        float32
	HasLayer        bool
	LayerSliceIndex int
	LayerVelocity   float32
}

// IdentitySlot is the default, passthrough slot for step i.
func IdentitySlot(i int) Slot {
	return Slot{SliceIndex: i, Velocity: 1}
}

// StepSequence is one stem's 16-step program.
type StepSequence [Steps]Slot

// IdentitySequence returns the default sequence: playback indistinguishable
// from passthrough (spec §4.7).
func IdentitySequence() StepSequence {
	var seq StepSequence
	for i := range seq {
		seq[i] = IdentitySlot(i)
	}
	return seq
}

// Preset is one of the 8 built-in, addressable step-sequence programs
// (spec §4.7: "content is configuration, not behavior").
type Preset struct {
	ID            int
	PerStem       [buffer.NumStems]StepSequence
	AffectedStems [buffer.NumStems]bool
}

// identityPreset is preset 1: identity on every stem, every stem affected
// (so engaging it is audibly a no-op — it "acts as a reset").
func identityPreset(id int) Preset {
	p := Preset{ID: id}
	for s := 0; s < int(buffer.NumStems); s++ {
		p.PerStem[s] = IdentitySequence()
		p.AffectedStems[s] = true
	}
	return p
}

// reverseSequence returns the step sequence that plays slices back to
// front.
func reverseSequence() StepSequence {
	var seq StepSequence
	for i := range seq {
		seq[i] = Slot{SliceIndex: Steps - 1 - i, Velocity: 1}
	}
	return seq
}

// halfTimeSequence plays each pair of slices as a single repeated slice,
// a common "halftime" beat-slicing effect.
func halfTimeSequence() StepSequence {
	var seq StepSequence
	for i := range seq {
		seq[i] = Slot{SliceIndex: (i / 2) * 2, Velocity: 1}
	}
	return seq
}

// stutterSequence repeats slice 0 on every even step and advances
// normally on odd steps, a classic stutter/glitch pattern.
func stutterSequence() StepSequence {
	var seq StepSequence
	for i := range seq {
		if i%2 == 0 {
			seq[i] = Slot{SliceIndex: 0, Velocity: 1}
		} else {
			seq[i] = Slot{SliceIndex: i, Velocity: 1}
		}
	}
	return seq
}

// everyOtherMutedSequence mutes every other step, identity otherwise.
func everyOtherMutedSequence() StepSequence {
	var seq StepSequence
	for i := range seq {
		if i%2 == 1 {
			seq[i] = Slot{Muted: true}
		} else {
			seq[i] = IdentitySlot(i)
		}
	}
	return seq
}

// buildPreset constructs a preset where drums/bass follow fn and
// vocals/other stay identity, with every stem affected — a reasonable
// default shape for the built-in catalog's non-identity entries.
func buildPreset(id int, fn func() StepSequence) Preset {
	p := Preset{ID: id}
	identity := IdentitySequence()
	for s := 0; s < int(buffer.NumStems); s++ {
		p.AffectedStems[s] = true
		if s == int(buffer.Drums) || s == int(buffer.Bass) {
			p.PerStem[s] = fn()
		} else {
			p.PerStem[s] = identity
		}
	}
	return p
}

// BuiltinPresets is the 8-entry, 1-indexed (by ID) preset catalog (spec
// §4.7). Index 0 of the slice holds ID 1 (identity/reset).
var BuiltinPresets = [8]Preset{
	identityPreset(1),
	buildPreset(2, reverseSequence),
	buildPreset(3, halfTimeSequence),
	buildPreset(4, stutterSequence),
	buildPreset(5, everyOtherMutedSequence),
	buildPreset(6, reverseSequence),
	buildPreset(7, halfTimeSequence),
	buildPreset(8, stutterSequence),
}

// PresetByID looks up a built-in preset by its 1..8 ID.
func PresetByID(id int) (Preset, bool) {
	if id < 1 || id > len(BuiltinPresets) {
		return Preset{}, false
	}
	return BuiltinPresets[id-1], true
}
