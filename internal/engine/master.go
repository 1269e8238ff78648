package engine

import (
	"math"

	"github.com/mesh-audio/djengine/internal/buffer"
	"github.com/mesh-audio/djengine/internal/deck"
	"github.com/mesh-audio/djengine/internal/key"
	"github.com/mesh-audio/djengine/internal/stateboard"
)

// noMaster is the sentinel masterDeckIdx value meaning "no deck is
// currently playing, so there is nothing to lock or key-match against."
const noMaster = -1

// selectMaster recomputes the master deck (spec §4.8 step 2): the
// longest-playing deck (smallest play_started_at), tie-broken by
// smallest deck index, unless a control-layer SetMasterDeck override is
// in effect.
func (e *Engine) selectMaster() {
	if !e.masterAuto {
		if e.masterDeckIdx < 0 || e.masterDeckIdx >= NumDecks || !e.decks[e.masterDeckIdx].IsPlaying() {
			e.masterDeckIdx = noMaster
		}
		return
	}
	best := noMaster
	for d := 0; d < NumDecks; d++ {
		dk := e.decks[d]
		if !dk.IsPlaying() {
			continue
		}
		if best == noMaster || dk.PlayStartedAt() < e.decks[best].PlayStartedAt() {
			best = d
		}
	}
	e.masterDeckIdx = best
}

// applyPhaseLockOnTransitions phase-locks any non-master deck that just
// transitioned into Playing this callback (spec §4.6), then records this
// callback's transport states for next callback's edge detection.
func (e *Engine) applyPhaseLockOnTransitions() {
	if e.phaseSyncEnabled && e.masterDeckIdx != noMaster {
		for d := 0; d < NumDecks; d++ {
			if d == e.masterDeckIdx {
				continue
			}
			dk := e.decks[d]
			if dk.Transport() == deck.Playing && e.prevTransport[d] != deck.Playing {
				e.phaseLock(d, e.masterDeckIdx)
			}
		}
	}
	for d := 0; d < NumDecks; d++ {
		e.prevTransport[d] = e.decks[d].Transport()
	}
}

// phaseLock implements spec §4.6's formula: p' = p - ((p - this.first_beat)
// mod this.spb) + phi_master * (this.spb / master.spb), snapped into the
// deck's loop range if one is active.
func (e *Engine) phaseLock(d int, masterIdx int) {
	dk := e.decks[d]
	master := e.decks[masterIdx]
	metaD, metaM := dk.Metadata(), master.Metadata()
	if metaD == nil || metaM == nil {
		return
	}
	spbM := metaM.SamplesPerBeat()
	spbD := metaD.SamplesPerBeat()
	if spbM <= 0 || spbD <= 0 {
		return
	}
	phiMaster := floorMod(float64(master.Position()-metaM.FirstBeatSample), spbM)
	p := dk.Position()
	phaseD := floorMod(float64(p-metaD.FirstBeatSample), spbD)
	pPrime := float64(p) - phaseD + phiMaster*(spbD/spbM)
	dk.SetPosition(int64(math.Round(pPrime)))
}

func floorMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}

// applyKeyMatch recomputes every non-master, key-match-enabled deck's
// transpose from the master's key (spec §4.6).
func (e *Engine) applyKeyMatch() {
	master := noMaster
	var masterKey key.Key
	if e.masterDeckIdx != noMaster {
		m := e.decks[e.masterDeckIdx]
		if m.Metadata() != nil {
			master = e.masterDeckIdx
			masterKey = m.Metadata().Key
		}
	}
	for d := 0; d < NumDecks; d++ {
		dk := e.decks[d]
		if d == master || !dk.KeyMatchEnabled() || dk.IsEmpty() || master == noMaster {
			dk.SetTransposeSemitones(0)
			continue
		}
		t := key.ShortestSignedDistance(masterKey, dk.Metadata().Key)
		dk.SetTransposeSemitones(float64(t))
	}
}

// publish writes every deck's, slicer's, and stem-link's atomics for
// this callback (spec §4.8 step 7).
func (e *Engine) publish() {
	for d := 0; d < NumDecks; d++ {
		dk := e.decks[d]
		loop := dk.Loop()
		e.board.PublishDeck(d, stateboard.DeckSnapshot{
			Position:              dk.Position(),
			IsPlaying:             dk.IsPlaying(),
			LoopActive:            loop.Active,
			LoopStart:             loop.Start,
			LoopEnd:               loop.End,
			LUFSGain:              dk.LUFSGain(),
			KeyTransposeSemitones: dk.TransposeSemitones(),
		})

		sl := e.slicers[d]
		var queue [16]int32
		seq := sl.Sequence(buffer.Drums)
		for step := 0; step < 16; step++ {
			if seq[step].Muted {
				queue[step] = -1
			} else {
				queue[step] = int32(seq[step].SliceIndex)
			}
		}
		e.board.PublishSlicer(d, stateboard.SlicerSnapshot{
			Active:            sl.Active(),
			CurrentSliceIndex: int32(sl.CurrentStep()),
			Queue:             queue,
		})

		for s := buffer.Stem(0); s < buffer.NumStems; s++ {
			e.board.PublishLink(d, int(s), dk.HasLinkedStem(s), dk.UsingLinkedStem(s))
		}
	}
}
