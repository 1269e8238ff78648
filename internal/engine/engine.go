// Package engine implements C8, the conductor: the audio-thread object
// that drains commands, renders every deck through its full per-deck
// pipeline, mixes the result, and publishes atomic state once per
// callback (spec §4.8).
package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mesh-audio/djengine/internal/buffer"
	"github.com/mesh-audio/djengine/internal/cmdring"
	"github.com/mesh-audio/djengine/internal/collector"
	"github.com/mesh-audio/djengine/internal/config"
	"github.com/mesh-audio/djengine/internal/deck"
	"github.com/mesh-audio/djengine/internal/delayline"
	"github.com/mesh-audio/djengine/internal/effect"
	"github.com/mesh-audio/djengine/internal/limiter"
	"github.com/mesh-audio/djengine/internal/notify"
	"github.com/mesh-audio/djengine/internal/slicer"
	"github.com/mesh-audio/djengine/internal/stateboard"
	"github.com/mesh-audio/djengine/internal/stretch"
)

// NumDecks is the fixed deck count this engine core supports.
const NumDecks = 4

// minRatio/maxRatio bound the stretch ratio the conductor will apply;
// outside this range a deck's ratio update for this callback is skipped
// and a ratio_out_of_range Configuration error is reported, per spec §7
// (no numeric bound is given in the spec itself — a +/-100% pitch range
// is the conventional DJ-mixer ceiling, matching common hardware).
const (
	minRatio = 0.5
	maxRatio = 2.0
)

// maxDelayCompensationFrames bounds the per-deck delay line, sized to
// the effect latency ceiling (spec §4.8 step 4 compensates against the
// largest reported effect latency, which is itself capped at
// effect.LatencyCeiling).
const maxDelayCompensationFrames = effect.LatencyCeiling + 1

// Engine is C8.
type Engine struct {
	cfg config.Config

	ring       *cmdring.Ring
	collector  *collector.Collector
	notifier   *notify.Notifier
	board      *stateboard.Board

	decks      [NumDecks]*deck.Deck
	slicers    [NumDecks]*slicer.Slicer
	stretchers [NumDecks]*stretch.Stretcher
	effects    [NumDecks]*effect.Chain
	delays     [NumDecks]*delayline.Line

	prevTransport [NumDecks]deck.Transport

	globalBPM        float64
	phaseSyncEnabled bool
	masterAuto       bool
	masterDeckIdx    int

	masterChain *limiter.Chain
	cueChain    *limiter.Chain

	maxBlock int
	scratch  engineScratch
}

// New constructs an Engine ready for Process calls once Start has been
// invoked (Start is only required to run the Collector/Notifier
// goroutines; Process itself needs no goroutines and can be called
// standalone in tests).
func New(cfg config.Config) *Engine {
	e := &Engine{
		cfg:              cfg,
		ring:             cmdring.New(cfg.CommandRingCapacity),
		notifier:         notify.New(256, nil),
		globalBPM:        cfg.GlobalBPM,
		phaseSyncEnabled: cfg.PhaseSyncEnabled,
		masterAuto:       true,
		masterDeckIdx:    noMaster,
		masterChain:      limiter.NewChain(),
		cueChain:         limiter.NewChain(),
	}
	e.collector = collector.New(collector.DefaultCapacity, collector.DefaultTick, e.notifier)
	e.board = stateboard.New()
	for i := 0; i < NumDecks; i++ {
		e.decks[i] = deck.New(i)
		e.slicers[i] = slicer.New(i)
		e.slicers[i].SetWindowBars(cfg.SlicerWindowBars)
		e.stretchers[i] = stretch.New(nil)
		e.effects[i] = effect.NewChain(i, nil)
		e.delays[i] = delayline.New(maxDelayCompensationFrames)
	}
	return e
}

// Ring exposes the command ring so Control/Loader/MIDI threads can push
// onto it (spec §4.2: the audio thread only ever drains it).
func (e *Engine) Ring() *cmdring.Ring { return e.ring }

// Notifier exposes the notification sink for control-layer subscribers.
func (e *Engine) Notifier() *notify.Notifier { return e.notifier }

// Board exposes the published atomic state board for display-rate readers.
func (e *Engine) Board() *stateboard.Board { return e.board }

// Collector exposes the deferred-teardown sink (C4) so the loader thread
// can pass it to buffer.New when constructing a SharedStemBuffer.
func (e *Engine) Collector() *collector.Collector { return e.collector }

// Start runs the Collector and Notifier drain loops under ctx, returning
// when either fails or ctx is cancelled. It does not run the audio
// callback itself — that is the driver's job, calling Process directly.
func (e *Engine) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.collector.Run(ctx) })
	g.Go(func() error { return e.notifier.Run(ctx) })
	return g.Wait()
}

// Shutdown pushes a Shutdown command (for parity with the control
// layer's normal command flow) and lets callers cancel the context
// passed to Start; Process itself needs no explicit shutdown call.
func (e *Engine) Shutdown() {
	_ = e.ring.TryPush(cmdring.Command{Kind: cmdring.Shutdown})
}

// PrepareEffect attaches an effect chain plugin to a deck, forwarding
// Prepare with the engine's fixed sample rate and configured max block.
func (e *Engine) PrepareEffect(deckIdx int, eff effect.Effect) {
	if deckIdx < 0 || deckIdx >= NumDecks {
		return
	}
	e.effects[deckIdx] = effect.NewChain(deckIdx, eff)
	if e.maxBlock > 0 {
		e.effects[deckIdx].Prepare(buffer.SampleRate, e.maxBlock)
	}
}

// drainCommands pops up to MaxCmdsPerCallback commands and applies each
// (spec §4.8 step 1). Replaced buffer handles are routed to the
// collector rather than freed inline.
func (e *Engine) drainCommands() {
	max := e.cfg.MaxCmdsPerCallback
	if max <= 0 {
		max = 64
	}
	e.ring.Drain(max, e.apply)
}

func (e *Engine) apply(cmd cmdring.Command) {
	if cmd.Deck < 0 || cmd.Deck >= NumDecks {
		if cmd.Kind == cmdring.SetGlobalBPM {
			e.globalBPM = cmd.GlobalBPM
		}
		if cmd.Kind == cmdring.SetMasterDeck {
			e.masterAuto = cmd.MasterDeckAuto
			e.masterDeckIdx = cmd.MasterDeck
		}
		return
	}
	d := e.decks[cmd.Deck]
	sl := e.slicers[cmd.Deck]

	switch cmd.Kind {
	case cmdring.LoadTrack:
		prev := d.LoadTrack(cmd.Buffer, cmd.Metadata, e.cfg.TargetLUFS)
		if prev != nil {
			prev.Release()
		}
	case cmdring.UnloadTrack:
		prev := d.UnloadTrack()
		if prev != nil {
			prev.Release()
		}
	case cmdring.SetTransport:
		switch cmd.TransportAction {
		case cmdring.PlayToggle:
			d.PlayToggle(e.scratch.tick)
		case cmdring.CuePress:
			d.CuePress()
		case cmdring.CueRelease:
			d.CueRelease()
		case cmdring.HotCuePress:
			d.HotCuePress(cmd.Slot, e.scratch.tick)
		case cmdring.HotCueClear:
			d.HotCueClear(cmd.Slot)
		case cmdring.SetCueHere:
			d.SetCueHere()
		}
	case cmdring.SetLoop:
		switch cmd.LoopAction {
		case cmdring.LoopToggleAtPlayhead:
			d.ToggleAtPlayhead(cmd.LoopBeats)
		case cmdring.LoopHalveLength:
			d.HalveLength()
		case cmdring.LoopDoubleLength:
			d.DoubleLength()
		case cmdring.LoopSetRange:
			d.SetLoopRange(cmd.LoopStart, cmd.LoopEnd)
		case cmdring.LoopClear:
			d.ClearLoop()
		}
	case cmdring.BeatJump:
		d.BeatJump(cmd.SignedBeats)
	case cmdring.SetStemMute:
		d.SetStemMute(cmd.Stem, cmd.Bool)
	case cmdring.SetStemSolo:
		d.SetStemSolo(cmd.Stem, cmd.Bool)
	case cmdring.SetLinkedStem:
		if cmd.Bool {
			ref := &buffer.LinkedStemRef{Buffer: cmd.Buffer, Metadata: cmd.Metadata}
			d.SetLinkedStem(cmd.Stem, ref)
		} else {
			d.SetLinkedStem(cmd.Stem, nil)
		}
	case cmdring.ToggleLinkedStem:
		d.ToggleLinkedStem(cmd.Stem)
	case cmdring.SetKeyMatch:
		d.SetKeyMatch(cmd.KeyMatchEnabled)
	case cmdring.SetCueEnabled:
		d.SetCueEnabled(cmd.Bool)
	case cmdring.SlicerEnter:
		sl.Enter()
	case cmdring.SlicerExit:
		sl.Exit()
	case cmdring.SlicerAssignSlot:
		sl.AssignSlot(cmd.Stem, cmd.Slot, slicer.Slot{
			SliceIndex:      cmd.SliceIndex,
			Velocity:        cmd.Velocity,
			HasLayer:        cmd.HasLayer,
			LayerSliceIndex: cmd.LayerSlice,
			LayerVelocity:   cmd.LayerVelocity,
		})
	case cmdring.SlicerResetQueue:
		sl.ResetQueue()
	case cmdring.SlicerLoadPreset:
		sl.LoadPreset(cmd.PresetID)
	case cmdring.SetBackpressureConfig:
		// Ring capacity/backoff tuning is a control-layer/loader concern
		// (how hard they retry PushBackoff); nothing for the conductor to
		// apply against already-constructed decks.
	case cmdring.Shutdown:
		// No per-deck action; Start's context cancellation is what
		// actually stops the supervised goroutines.
	}
}
