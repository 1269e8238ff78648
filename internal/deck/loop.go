package deck

import "math"

// clampIntoLoop snaps d.position into [loop.Start, loop.End) via the
// modular wrap formula of spec §4.5, if a loop is active and the
// position has landed outside it (e.g. after a hot-cue jump or
// phase-lock adjustment).
func (d *Deck) clampIntoLoop() {
	if !d.loop.Active {
		return
	}
	d.position = d.wrapIntoLoop(d.position)
}

// wrapIntoLoop implements: reading the buffer at p where p >= loop.End
// reads loop.Start + ((p - loop.Start) mod (loop.End - loop.Start)). It
// is exact integer arithmetic, so the loop never drifts relative to the
// grid regardless of how long it plays (spec §8 property 3).
func (d *Deck) wrapIntoLoop(p int64) int64 {
	if !d.loop.Active {
		return p
	}
	length := d.loop.End - d.loop.Start
	if length <= 0 {
		return p
	}
	if p < d.loop.Start {
		// Shouldn't normally happen, but stay well-defined: wrap forward.
		off := (d.loop.Start - p) % length
		if off == 0 {
			return d.loop.Start
		}
		return d.loop.End - off
	}
	off := (p - d.loop.Start) % length
	return d.loop.Start + off
}

// AdvanceAndWrap moves the deck's source-domain playhead forward by n
// samples (as read this callback), applying the loop wrap formula. This
// is the only place d.position changes during ordinary playback.
func (d *Deck) AdvanceAndWrap(n int64) {
	if n <= 0 {
		return
	}
	if d.loop.Active {
		length := d.loop.End - d.loop.Start
		if length > 0 {
			off := (d.position - d.loop.Start + n) % length
			d.position = d.loop.Start + off
			return
		}
	}
	d.position += n
}

// SetPosition sets the deck's source-domain playhead directly, snapping
// it into the active loop if one is engaged. Used by the conductor's
// phase-lock (spec §4.6), which computes a new position outside the
// normal AdvanceAndWrap path.
func (d *Deck) SetPosition(p int64) {
	d.position = p
	d.clampIntoLoop()
}

// SourceIndexAt maps a virtual read offset (0..n-1 within the current
// callback) to the actual source-domain sample index, honoring loop
// wrap. The conductor calls this once per sample it reads this callback.
func (d *Deck) SourceIndexAt(offset int64) int64 {
	return d.wrapIntoLoop(d.position + offset)
}

// ToggleAtPlayhead implements spec §4.5's SetLoop::ToggleAtPlayhead: if a
// loop is active it is cleared; otherwise a new loop of the given beat
// length is created, snapped to the grid.
func (d *Deck) ToggleAtPlayhead(beats float64) {
	if d.IsEmpty() || d.meta == nil {
		return
	}
	if d.loop.Active {
		d.loop = Loop{}
		return
	}
	beatCount := clampBeats(int64(math.Round(beats)))
	startIdx := d.meta.BeatIndexAtOrBefore(d.position)
	start := d.meta.GridSample(startIdx)
	end := d.meta.GridSample(startIdx + beatCount)
	d.loop = Loop{Start: start, End: end, Active: true}
}

// HalveLength / DoubleLength keep Start fixed and scale the loop length in
// beats, clamped to [1 beat, 64 bars].
func (d *Deck) HalveLength() { d.scaleLoopBeats(0.5) }
func (d *Deck) DoubleLength() { d.scaleLoopBeats(2) }

func (d *Deck) scaleLoopBeats(factor float64) {
	if d.IsEmpty() || d.meta == nil || !d.loop.Active {
		return
	}
	spb := d.meta.SamplesPerBeat()
	currentBeats := int64(math.Round(float64(d.loop.End-d.loop.Start) / spb))
	newBeats := clampBeats(int64(math.Round(float64(currentBeats) * factor)))
	startIdx := d.meta.BeatIndexAtOrBefore(d.loop.Start)
	d.loop.End = d.meta.GridSample(startIdx + newBeats)
}

func clampBeats(beats int64) int64 {
	if beats < minLoopBeats {
		return minLoopBeats
	}
	if beats > maxLoopBeats {
		return maxLoopBeats
	}
	return beats
}

// SetLoopRange sets an explicit [start,end) loop range.
func (d *Deck) SetLoopRange(start, end int64) {
	if d.IsEmpty() || end <= start {
		return
	}
	d.loop = Loop{Start: start, End: end, Active: true}
}

// ClearLoop clears the loop; idempotent.
func (d *Deck) ClearLoop() {
	d.loop = Loop{}
}

// BeatJump moves the playhead by signedBeats beats (spec §4.2/§4.5). If a
// loop is active, the loop region moves by the same amount and is
// re-snapped to the grid so the jump "feels intrinsic."
func (d *Deck) BeatJump(signedBeats float64) {
	if d.IsEmpty() || d.meta == nil {
		return
	}
	spb := d.meta.SamplesPerBeat()
	shift := int64(math.Round(signedBeats * spb))
	if d.loop.Active {
		newStartIdx := d.meta.BeatIndexAtOrBefore(d.loop.Start + shift)
		beatCount := int64(math.Round(float64(d.loop.End-d.loop.Start) / spb))
		d.loop.Start = d.meta.GridSample(newStartIdx)
		d.loop.End = d.meta.GridSample(newStartIdx + beatCount)
	}
	d.position += shift
	if d.position < 0 {
		d.position = 0
	}
	d.clampIntoLoop()
}
