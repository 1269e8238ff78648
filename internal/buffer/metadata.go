package buffer

import (
	"math"

	"github.com/mesh-audio/djengine/internal/key"
)

// CuePoint is one optional, labeled sample position (spec §3).
type CuePoint struct {
	Sample int64
	Label  string
	Color  uint32
	Set    bool
}

// SavedLoop is an optional [Start,End) range saved with the track.
type SavedLoop struct {
	Start, End int64
	Set        bool
}

// LinkedStemRef is a cross-track stem reference resolved to a buffer and
// its own metadata (spec §3: "stem_links[4]").
type LinkedStemRef struct {
	Buffer   *SharedStemBuffer
	Metadata *Metadata
}

// Metadata is the prepared track metadata that travels alongside a
// SharedStemBuffer (spec §3). It is read-only from the audio thread for
// the lifetime of the LoadTrack that introduced it.
type Metadata struct {
	BPMOriginal     float64
	FirstBeatSample int64
	Key             key.Key
	LUFSIntegrated  float64
	CuePoints       [8]CuePoint
	SavedLoops      [8]SavedLoop
	DropMarker      int64
	HasDropMarker   bool
	StemLinks       [NumStems]*LinkedStemRef
}

// SamplesPerBeat is the beat grid's fixed spacing, derived from
// BPMOriginal (spec GLOSSARY).
func (m *Metadata) SamplesPerBeat() float64 {
	return (60.0 * float64(SampleRate)) / m.BPMOriginal
}

// GridSample returns the (rounded-to-integer-sample) position of the
// beatIndex'th beat line, where beat 0 is FirstBeatSample.
func (m *Metadata) GridSample(beatIndex int64) int64 {
	return m.FirstBeatSample + int64(math.Round(float64(beatIndex)*m.SamplesPerBeat()))
}

// BeatIndexAtOrBefore returns the (possibly negative) index of the beat
// line at or before pos.
func (m *Metadata) BeatIndexAtOrBefore(pos int64) int64 {
	spb := m.SamplesPerBeat()
	beats := float64(pos-m.FirstBeatSample) / spb
	return int64(math.Floor(beats))
}

// NearestBeatAtOrBefore returns the beat-grid sample position at or
// before pos.
func (m *Metadata) NearestBeatAtOrBefore(pos int64) int64 {
	return m.GridSample(m.BeatIndexAtOrBefore(pos))
}

// BeatPhase returns position's offset in samples from the nearest prior
// beat-grid line (spec GLOSSARY: "Phase (beat)").
func (m *Metadata) BeatPhase(pos int64) int64 {
	return pos - m.NearestBeatAtOrBefore(pos)
}

// NearestBeatSample returns the beat-grid sample position closest to pos
// on either side (used by the beat-aligned hot-cue jump, spec §4.5, which
// bounds the offset to +/- half a beat).
func (m *Metadata) NearestBeatSample(pos int64) int64 {
	spb := m.SamplesPerBeat()
	beats := float64(pos-m.FirstBeatSample) / spb
	idx := int64(math.Round(beats))
	return m.GridSample(idx)
}
