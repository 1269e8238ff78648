package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-audio/djengine/internal/key"
)

func testMeta() *Metadata {
	return &Metadata{
		BPMOriginal:     120,
		FirstBeatSample: 1000,
		Key:             key.Key{Root: 0, Mode: key.Major},
	}
}

func TestSamplesPerBeat(t *testing.T) {
	m := testMeta()
	want := 60.0 * SampleRate / 120.0
	assert.InDelta(t, want, m.SamplesPerBeat(), 1e-9)
}

func TestGridSampleRoundTrip(t *testing.T) {
	m := testMeta()
	spb := m.SamplesPerBeat()
	for _, beat := range []int64{-2, 0, 1, 7, 100} {
		pos := m.GridSample(beat)
		idx := m.BeatIndexAtOrBefore(pos)
		assert.Equal(t, beat, idx, "grid sample for beat %d should round-trip through BeatIndexAtOrBefore", beat)
		_ = spb
	}
}

func TestBeatIndexAtOrBeforeFloorsTowardsNegativeInfinity(t *testing.T) {
	m := testMeta()
	spb := m.SamplesPerBeat()
	// One sample before the first beat line after FirstBeatSample should
	// still report beat 0, not 1.
	pos := m.FirstBeatSample + int64(spb) - 1
	assert.EqualValues(t, 0, m.BeatIndexAtOrBefore(pos))
}

func TestBeatPhaseWithinOneBeat(t *testing.T) {
	m := testMeta()
	spb := m.SamplesPerBeat()
	pos := m.FirstBeatSample + int64(spb*3.25)
	phase := m.BeatPhase(pos)
	assert.GreaterOrEqual(t, phase, int64(0))
	assert.Less(t, phase, int64(spb)+1)
}

func TestNearestBeatSampleSnapsToCloserLine(t *testing.T) {
	m := testMeta()
	spb := m.SamplesPerBeat()
	// Just past the midpoint between beat 2 and beat 3 should snap to beat 3.
	pos := m.GridSample(2) + int64(spb*0.6)
	assert.Equal(t, m.GridSample(3), m.NearestBeatSample(pos))
}
