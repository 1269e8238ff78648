package stateboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishAndReadDeckRoundTrips(t *testing.T) {
	b := New()
	snap := DeckSnapshot{
		Position:              123456,
		IsPlaying:             true,
		LoopActive:            true,
		LoopStart:             1000,
		LoopEnd:               2000,
		LUFSGain:              1.995,
		KeyTransposeSemitones: -3.5,
	}
	b.PublishDeck(2, snap)
	got := b.ReadDeck(2)
	assert.Equal(t, snap, got)
}

func TestReadDeckUnpublishedIsZeroValue(t *testing.T) {
	b := New()
	got := b.ReadDeck(0)
	assert.Equal(t, DeckSnapshot{}, got)
}

func TestPublishDeckDoesNotAffectOtherDecks(t *testing.T) {
	b := New()
	b.PublishDeck(0, DeckSnapshot{Position: 1, IsPlaying: true})
	b.PublishDeck(1, DeckSnapshot{Position: 2, IsPlaying: false})
	assert.NotEqual(t, b.ReadDeck(0), b.ReadDeck(1))
	assert.EqualValues(t, 1, b.ReadDeck(0).Position)
	assert.EqualValues(t, 2, b.ReadDeck(1).Position)
}

func TestPublishAndReadSlicerRoundTrips(t *testing.T) {
	b := New()
	var queue [16]int32
	for i := range queue {
		queue[i] = int32(i)
	}
	snap := SlicerSnapshot{Active: true, CurrentSliceIndex: 7, Queue: queue}
	b.PublishSlicer(3, snap)
	got := b.ReadSlicer(3)
	assert.Equal(t, snap, got)
}

func TestPublishAndReadLinkRoundTrips(t *testing.T) {
	b := New()
	b.PublishLink(1, 2, true, false)
	hasLinked, useLinked := b.ReadLink(1, 2)
	assert.True(t, hasLinked)
	assert.False(t, useLinked)

	b.PublishLink(1, 2, true, true)
	hasLinked, useLinked = b.ReadLink(1, 2)
	assert.True(t, hasLinked)
	assert.True(t, useLinked)
}
