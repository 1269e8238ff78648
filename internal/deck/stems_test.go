package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-audio/djengine/internal/buffer"
)

func TestGateDefaultsOpenWithNoMuteOrSolo(t *testing.T) {
	d := New(0)
	d.LoadTrack(testStemBuffer(t, 48000), testTrackMeta(), -14)
	for s := buffer.Stem(0); s < buffer.NumStems; s++ {
		assert.True(t, d.Gate(s))
	}
}

func TestGateMuteClosesOnlyThatStem(t *testing.T) {
	d := New(0)
	d.LoadTrack(testStemBuffer(t, 48000), testTrackMeta(), -14)
	d.SetStemMute(buffer.Bass, true)
	assert.False(t, d.Gate(buffer.Bass))
	assert.True(t, d.Gate(buffer.Drums))
}

func TestGateSoloOverridesMuteAndClosesNonSoloedStems(t *testing.T) {
	d := New(0)
	d.LoadTrack(testStemBuffer(t, 48000), testTrackMeta(), -14)
	d.SetStemMute(buffer.Bass, true) // muted but irrelevant once anything is soloed
	d.SetStemSolo(buffer.Drums, true)
	assert.True(t, d.Gate(buffer.Drums))
	assert.False(t, d.Gate(buffer.Vocals))
	assert.False(t, d.Gate(buffer.Bass))
	assert.False(t, d.Gate(buffer.Other))
}

func TestStemGatesOnEmptyDeckAreNoop(t *testing.T) {
	d := New(0)
	d.SetStemMute(buffer.Bass, true)
	d.SetStemSolo(buffer.Drums, true)
	// No panic, no state retained once a track loads fresh.
	d.LoadTrack(testStemBuffer(t, 48000), testTrackMeta(), -14)
	assert.True(t, d.Gate(buffer.Bass))
}

func TestLinkedStemToggleRoutesToLinkedBuffer(t *testing.T) {
	d := New(0)
	d.LoadTrack(testStemBuffer(t, 48000), testTrackMeta(), -14)
	assert.False(t, d.HasLinkedStem(buffer.Vocals))

	linkedBuf := testStemBuffer(t, 48000)
	linkedBuf.Stem(buffer.Vocals)[0] = 0.75
	ref := &buffer.LinkedStemRef{Buffer: linkedBuf, Metadata: testTrackMeta()}
	d.SetLinkedStem(buffer.Vocals, ref)
	require.True(t, d.HasLinkedStem(buffer.Vocals))
	assert.False(t, d.UsingLinkedStem(buffer.Vocals), "installing a link must not activate it")

	d.ToggleLinkedStem(buffer.Vocals)
	assert.True(t, d.UsingLinkedStem(buffer.Vocals))
	assert.Equal(t, float32(0.75), d.EffectiveStem(buffer.Vocals)[0])

	d.ToggleLinkedStem(buffer.Vocals)
	assert.False(t, d.UsingLinkedStem(buffer.Vocals))
}

func TestSetLinkedStemNilClearsLink(t *testing.T) {
	d := New(0)
	d.LoadTrack(testStemBuffer(t, 48000), testTrackMeta(), -14)
	ref := &buffer.LinkedStemRef{Buffer: testStemBuffer(t, 48000), Metadata: testTrackMeta()}
	d.SetLinkedStem(buffer.Bass, ref)
	d.ToggleLinkedStem(buffer.Bass)
	d.SetLinkedStem(buffer.Bass, nil)
	assert.False(t, d.HasLinkedStem(buffer.Bass))
	assert.False(t, d.UsingLinkedStem(buffer.Bass))
}

func TestEffectiveMetadataFollowsLinkActivation(t *testing.T) {
	d := New(0)
	hostMeta := testTrackMeta()
	d.LoadTrack(testStemBuffer(t, 48000), hostMeta, -14)
	linkedMeta := testTrackMeta()
	linkedMeta.BPMOriginal = 140
	ref := &buffer.LinkedStemRef{Buffer: testStemBuffer(t, 48000), Metadata: linkedMeta}
	d.SetLinkedStem(buffer.Other, ref)

	assert.Same(t, hostMeta, d.EffectiveMetadata(buffer.Other))
	d.ToggleLinkedStem(buffer.Other)
	assert.Same(t, linkedMeta, d.EffectiveMetadata(buffer.Other))
}

func TestSetKeyMatchAndTranspose(t *testing.T) {
	d := New(0)
	d.LoadTrack(testStemBuffer(t, 48000), testTrackMeta(), -14)
	assert.False(t, d.KeyMatchEnabled())
	d.SetKeyMatch(true)
	assert.True(t, d.KeyMatchEnabled())

	d.SetTransposeSemitones(3.5)
	assert.Equal(t, 3.5, d.TransposeSemitones())
}
