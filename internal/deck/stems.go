package deck

import "github.com/mesh-audio/djengine/internal/buffer"

// SetStemMute / SetStemSolo implement spec §4.2's per-stem gates.
func (d *Deck) SetStemMute(stem buffer.Stem, on bool) {
	if d.IsEmpty() {
		return
	}
	d.muteStem[stem] = on
}

func (d *Deck) SetStemSolo(stem buffer.Stem, on bool) {
	if d.IsEmpty() {
		return
	}
	d.soloStem[stem] = on
}

// Gate implements spec §4.5's per-stem gate g_i: if any stem on the deck
// is soloed, g_i = solo_i for every stem; otherwise g_i = !mute_i.
func (d *Deck) Gate(stem buffer.Stem) bool {
	anySolo := false
	for _, s := range d.soloStem {
		if s {
			anySolo = true
			break
		}
	}
	if anySolo {
		return d.soloStem[stem]
	}
	return !d.muteStem[stem]
}

// SetLinkedStem installs (or, if ref is nil, clears) a cross-track stem
// reference for the given stem slot.
func (d *Deck) SetLinkedStem(stem buffer.Stem, ref *buffer.LinkedStemRef) {
	if d.IsEmpty() {
		return
	}
	if ref == nil {
		d.linked[stem] = LinkedStem{}
		return
	}
	d.linked[stem] = LinkedStem{Ref: ref, Active: d.linked[stem].Active}
}

// ToggleLinkedStem flips whether a stem reads from its linked buffer
// (when one is installed) versus the host buffer.
func (d *Deck) ToggleLinkedStem(stem buffer.Stem) {
	if d.IsEmpty() || d.linked[stem].Ref == nil {
		return
	}
	d.linked[stem].Active = !d.linked[stem].Active
}

// HasLinkedStem reports whether a linked reference is installed.
func (d *Deck) HasLinkedStem(stem buffer.Stem) bool {
	return d.linked[stem].Ref != nil
}

// UsingLinkedStem reports whether stem is currently routed through its
// linked buffer.
func (d *Deck) UsingLinkedStem(stem buffer.Stem) bool {
	return d.linked[stem].Ref != nil && d.linked[stem].Active
}

// EffectiveStem returns the planar stereo buffer the conductor should
// read for this stem this callback: the linked buffer when active, the
// host buffer otherwise.
func (d *Deck) EffectiveStem(stem buffer.Stem) buffer.PlanarStereo {
	if d.UsingLinkedStem(stem) {
		return d.linked[stem].Ref.Buffer.Stem(stem)
	}
	if d.buf == nil {
		return nil
	}
	return d.buf.Stem(stem)
}

// EffectiveMetadata returns the metadata driving stem's beat grid: the
// linked track's metadata when the stem is routed through it, otherwise
// the host track's. Only the slicer's window alignment needs this; the
// deck's own transport/loop timeline always uses the host metadata.
func (d *Deck) EffectiveMetadata(stem buffer.Stem) *buffer.Metadata {
	if d.UsingLinkedStem(stem) {
		return d.linked[stem].Ref.Metadata
	}
	return d.meta
}

// SetKeyMatch enables/disables key-match transpose for this deck.
func (d *Deck) SetKeyMatch(enabled bool) {
	if d.IsEmpty() {
		return
	}
	d.keyMatchEnabled = enabled
}

// SetTransposeSemitones records the transpose computed by the conductor
// from key-match (spec §4.6); 0 when key-match is off or this deck is
// master.
func (d *Deck) SetTransposeSemitones(t float64) { d.transposeSemitones = t }

// TransposeSemitones returns the currently applied transpose.
func (d *Deck) TransposeSemitones() float64 { return d.transposeSemitones }
