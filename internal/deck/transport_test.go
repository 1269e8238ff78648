package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-audio/djengine/internal/buffer"
	"github.com/mesh-audio/djengine/internal/key"
)

func testStemBuffer(t *testing.T, frames int64) *buffer.SharedStemBuffer {
	t.Helper()
	var stems [buffer.NumStems]buffer.PlanarStereo
	for i := range stems {
		stems[i] = make(buffer.PlanarStereo, frames*2)
	}
	b, err := buffer.New(stems, nil)
	require.NoError(t, err)
	return b
}

func testTrackMeta() *buffer.Metadata {
	return &buffer.Metadata{
		BPMOriginal:     120,
		FirstBeatSample: 480, // one beat in at 48kHz/120bpm = 24000 samples; pick a simple offset instead
		Key:             key.Key{Root: 0, Mode: key.Major},
		LUFSIntegrated:  -14,
	}
}

func TestLoadTrackEntersCued(t *testing.T) {
	d := New(0)
	meta := testTrackMeta()
	prev := d.LoadTrack(testStemBuffer(t, 48000), meta, -14)
	assert.Nil(t, prev)
	assert.Equal(t, Cued, d.Transport())
	assert.Equal(t, meta.FirstBeatSample, d.Position())
	assert.False(t, d.IsEmpty())
}

func TestLoadTrackReturnsPreviousBufferForCollectorRouting(t *testing.T) {
	d := New(0)
	meta := testTrackMeta()
	first := testStemBuffer(t, 1000)
	require.Nil(t, d.LoadTrack(first, meta, -14))

	second := testStemBuffer(t, 2000)
	prev := d.LoadTrack(second, meta, -14)
	assert.Same(t, first, prev)
}

func TestPlayToggleCuedToPlayingAndBack(t *testing.T) {
	d := New(0)
	d.LoadTrack(testStemBuffer(t, 48000), testTrackMeta(), -14)

	d.PlayToggle(1000)
	assert.Equal(t, Playing, d.Transport())
	assert.EqualValues(t, 1000, d.PlayStartedAt())

	d.PlayToggle(2000)
	assert.Equal(t, Cued, d.Transport())
}

func TestPlayToggleOnEmptyDeckIsNoop(t *testing.T) {
	d := New(0)
	d.PlayToggle(1)
	assert.Equal(t, Empty, d.Transport())
}

func TestCuePressPreviewAndReleaseSnapsBack(t *testing.T) {
	d := New(0)
	meta := testTrackMeta()
	d.LoadTrack(testStemBuffer(t, 48000), meta, -14)
	d.SetCueHere()
	cue := d.Position()

	// Preview from the cue point, then release back to it.
	d.CuePress()
	assert.Equal(t, Previewing, d.Transport())

	d.CueRelease()
	assert.Equal(t, Cued, d.Transport())
	assert.Equal(t, cue, d.Position())
}

func TestCuePressWhilePlayingIsIgnored(t *testing.T) {
	d := New(0)
	d.LoadTrack(testStemBuffer(t, 48000), testTrackMeta(), -14)
	d.PlayToggle(0)
	d.CuePress()
	assert.Equal(t, Playing, d.Transport())
}

func TestCuePressedThenPlayStaysAtPreviewedPosition(t *testing.T) {
	d := New(0)
	d.LoadTrack(testStemBuffer(t, 48000), testTrackMeta(), -14)
	d.CuePress()
	previewed := d.Position()

	// Simulate advancing the playhead while previewing.
	d.AdvanceAndWrap(500)
	moved := d.Position()
	require.NotEqual(t, previewed, moved)

	d.PlayToggle(10)
	assert.Equal(t, Playing, d.Transport())

	// CueRelease after this transition must be a no-op (edge case, spec §4.5).
	d.CueRelease()
	assert.Equal(t, Playing, d.Transport())
	assert.Equal(t, moved, d.Position())
}

func TestHotCuePressBeatAlignedJump(t *testing.T) {
	d := New(0)
	meta := testTrackMeta()
	d.LoadTrack(testStemBuffer(t, 480000), meta, -14)
	d.SetHotCue(0, meta.FirstBeatSample+100000, 0)

	d.PlayToggle(0)
	d.HotCuePress(0, 0)
	assert.Equal(t, Playing, d.Transport())
	// Position should land near the hot cue, offset by the phase the
	// playhead had relative to the grid before the jump.
	assert.InDelta(t, float64(meta.FirstBeatSample+100000), float64(d.Position()), meta.SamplesPerBeat())
}

func TestHotCueClearAndGetters(t *testing.T) {
	d := New(0)
	d.LoadTrack(testStemBuffer(t, 48000), testTrackMeta(), -14)
	d.SetHotCue(2, 500, 0xff0000)
	hc := d.HotCue(2)
	assert.True(t, hc.Set)
	assert.EqualValues(t, 500, hc.Sample)

	d.HotCueClear(2)
	assert.False(t, d.HotCue(2).Set)
}

func TestReadableCoversPlayingPreviewingScratching(t *testing.T) {
	d := New(0)
	d.LoadTrack(testStemBuffer(t, 48000), testTrackMeta(), -14)
	assert.False(t, d.Readable(), "cued deck is not readable")

	d.PlayToggle(0)
	assert.True(t, d.Readable())

	d.PlayToggle(0)
	d.CuePress()
	require.Equal(t, Previewing, d.Transport())
	assert.True(t, d.Readable())

	d.transport = Scratching
	assert.True(t, d.Readable())
}

func TestUnloadTrackResetsToEmptyAndReturnsHandle(t *testing.T) {
	d := New(3)
	b := testStemBuffer(t, 48000)
	d.LoadTrack(b, testTrackMeta(), -14)
	prev := d.UnloadTrack()
	assert.Same(t, b, prev)
	assert.True(t, d.IsEmpty())
	assert.Equal(t, 3, d.Index, "Index must survive the reset")
}

func TestSetCueEnabled(t *testing.T) {
	d := New(0)
	assert.False(t, d.CueEnabled())
	d.SetCueEnabled(true)
	assert.True(t, d.CueEnabled())
}

func TestLUFSGainMatchesTarget(t *testing.T) {
	d := New(0)
	meta := testTrackMeta()
	meta.LUFSIntegrated = -20
	d.LoadTrack(testStemBuffer(t, 48000), meta, -14)
	// target - track = 6dB => gain = 10^(6/20)
	assert.InDelta(t, 1.9952623, d.LUFSGain(), 1e-5)
}
