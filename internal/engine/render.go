package engine

import (
	"math"

	"github.com/mesh-audio/djengine/internal/buffer"
	"github.com/mesh-audio/djengine/internal/deck"
	"github.com/mesh-audio/djengine/internal/errs"
	"github.com/mesh-audio/djengine/internal/notify"
	"github.com/mesh-audio/djengine/internal/stretch"
)

// maxSourceFactor bounds how many source-domain samples a single
// callback can ever need relative to N, derived from minRatio (a
// callback needs N/r source samples; r >= minRatio gives a worst case
// of N/minRatio).
const maxSourceFactor = 1.0 / minRatio

// engineScratch holds every preallocated hot-path buffer. Sized once in
// Prepare; Process never grows them.
type engineScratch struct {
	tick   int64
	frames int // frame count of the most recent process call

	masterBus []float32
	cueBus    []float32

	deckOut [NumDecks][]float32 // post delay-line compensation, N frames

	source      [NumDecks][buffer.NumStems][]float32 // as routed through slicer/loop, sourceLen frames
	preEffects  [NumDecks][]float32                  // stem-summed + LUFS gain, sourceLen frames
	postEffects [NumDecks][]float32                  // post effect chain, sourceLen frames
	preDelay    [NumDecks][]float32                  // post stretch, N frames
}

// Prepare allocates every scratch buffer for callbacks of up to
// maxBlockFrames, and forwards Prepare to every deck's effect chain.
// Must be called once, off the audio thread, before the first Process.
func (e *Engine) Prepare(maxBlockFrames int) {
	e.maxBlock = maxBlockFrames
	maxSource := int(math.Ceil(float64(maxBlockFrames) * maxSourceFactor))
	e.scratch.masterBus = make([]float32, maxBlockFrames*2)
	e.scratch.cueBus = make([]float32, maxBlockFrames*2)
	for d := 0; d < NumDecks; d++ {
		e.scratch.deckOut[d] = make([]float32, maxBlockFrames*2)
		e.scratch.preEffects[d] = make([]float32, maxSource*2)
		e.scratch.postEffects[d] = make([]float32, maxSource*2)
		e.scratch.preDelay[d] = make([]float32, maxBlockFrames*2)
		for s := 0; s < buffer.NumStems; s++ {
			e.scratch.source[d][s] = make([]float32, maxSource*2)
		}
		e.effects[d].Prepare(buffer.SampleRate, maxBlockFrames)
	}
}

// Process renders exactly n frames (clamped to the size passed to
// Prepare), per spec §4.8's eight-step callback sequence, and returns
// the four planar (deinterleaved) channel buffers for the master and
// cue buses. This allocates on every call (one make([]float32, ...)
// per returned channel) and must never be called from the real-time
// audio thread; use ProcessInto there instead.
func (e *Engine) Process(n int) (masterL, masterR, cueL, cueR []float32) {
	n = e.process(n)
	master := e.scratch.masterBus[:n*2]
	cue := e.scratch.cueBus[:n*2]
	return deinterleaveL(master), deinterleaveR(master), deinterleaveL(cue), deinterleaveR(cue)
}

// ProcessInto renders exactly n frames (clamped to the size passed to
// Prepare) and returns the number of frames actually processed. It
// allocates nothing: the mixed buses stay in engine-owned scratch
// buffers, readable via InterleavedMaster/InterleavedCue or copied
// directly into caller-owned buffers with DeinterleaveMasterInto /
// DeinterleaveCueInto. This is the entry point real-time callbacks
// must use (spec §4.8/§8 property 1: "the callback never allocates").
func (e *Engine) ProcessInto(n int) int {
	return e.process(n)
}

// DeinterleaveMasterInto and DeinterleaveCueInto copy the most recent
// ProcessInto/Process result into caller-owned planar buffers (each
// must have room for at least the frame count just processed). No
// allocation.
func (e *Engine) DeinterleaveMasterInto(l, r []float32) {
	deinterleaveInto(e.scratch.masterBus[:e.scratch.frames*2], l, r)
}

func (e *Engine) DeinterleaveCueInto(l, r []float32) {
	deinterleaveInto(e.scratch.cueBus[:e.scratch.frames*2], l, r)
}

func deinterleaveInto(buf, l, r []float32) {
	n := len(buf) / 2
	for i := 0; i < n; i++ {
		l[i] = buf[2*i]
		r[i] = buf[2*i+1]
	}
}

// process runs the eight-step callback sequence and returns the
// (clamped) number of frames processed. Shared by Process and
// ProcessInto; contains no allocation itself.
func (e *Engine) process(n int) int {
	if n > e.maxBlock {
		n = e.maxBlock
	}
	e.scratch.frames = n

	// Step 1: drain commands.
	e.drainCommands()

	// Step 2: master selection; phase-lock any deck that just transitioned
	// to Playing this callback, before any reads.
	e.selectMaster()
	e.applyPhaseLockOnTransitions()
	e.applyKeyMatch()

	maxLatency := 0
	var latencies [NumDecks]int
	for d := 0; d < NumDecks; d++ {
		lat, err := e.effects[d].CheckedLatency()
		if err != nil {
			e.reportConfigError(err)
			lat = 0
		}
		latencies[d] = lat
		if lat > maxLatency {
			maxLatency = lat
		}
	}

	// Step 3: per-deck render.
	for d := 0; d < NumDecks; d++ {
		e.renderDeck(d, n)
	}

	// Step 4: latency compensation.
	for d := 0; d < NumDecks; d++ {
		e.delays[d].SetDelay(maxLatency - latencies[d])
		e.delays[d].Process(e.scratch.preDelay[d][:n*2], e.scratch.deckOut[d][:n*2])
	}

	// Step 5: mix into master + cue buses.
	master := e.scratch.masterBus[:n*2]
	cue := e.scratch.cueBus[:n*2]
	for i := range master {
		master[i] = 0
		cue[i] = 0
	}
	for d := 0; d < NumDecks; d++ {
		out := e.scratch.deckOut[d][:n*2]
		for i := range out {
			master[i] += out[i]
		}
		if e.decks[d].CueEnabled() {
			for i := range out {
				cue[i] += out[i]
			}
		}
	}

	// Step 6: master protection.
	e.masterChain.Process(master)
	e.cueChain.Process(cue)

	// Step 7: publish atomics.
	e.publish()

	e.scratch.tick += int64(n)

	// Step 8: caller reads the result via InterleavedMaster/InterleavedCue,
	// DeinterleaveMasterInto/DeinterleaveCueInto, or Process's planar copy.
	return n
}

// InterleavedMaster/InterleavedCue expose this callback's mixed buses in
// their native interleaved-stereo layout, valid only until the next
// ProcessInto/Process call. Prefer these (or DeinterleaveMasterInto /
// DeinterleaveCueInto) on the actual audio thread, since they require no
// allocation.
func (e *Engine) InterleavedMaster() []float32 { return e.scratch.masterBus[:e.scratch.frames*2] }
func (e *Engine) InterleavedCue() []float32    { return e.scratch.cueBus[:e.scratch.frames*2] }

func deinterleaveL(buf []float32) []float32 {
	out := make([]float32, len(buf)/2)
	for i := range out {
		out[i] = buf[2*i]
	}
	return out
}

func deinterleaveR(buf []float32) []float32 {
	out := make([]float32, len(buf)/2)
	for i := range out {
		out[i] = buf[2*i+1]
	}
	return out
}

// renderDeck fills scratch.preDelay[d] with exactly n frames of deck d's
// fully processed output: silence if the deck is not Readable,
// otherwise stretch(effects(lufs_gain(stem_sum(slicer/loop-routed
// source)))).
func (e *Engine) renderDeck(d int, n int) {
	dk := e.decks[d]
	out := e.scratch.preDelay[d][:n*2]
	if !dk.Readable() {
		for i := range out {
			out[i] = 0
		}
		return
	}
	meta := dk.Metadata()
	st := e.stretchers[d]
	st.SetTransposeSemitones(dk.TransposeSemitones())
	e.applyRatio(d, meta, st)

	sourceLen := st.SourceReadLength(n)
	if sourceLen < 0 {
		sourceLen = 0
	}
	e.checkBarBoundary(d, dk, meta, sourceLen)

	pre := e.scratch.preEffects[d][:sourceLen*2]
	for i := range pre {
		pre[i] = 0
	}

	for s := buffer.Stem(0); s < buffer.NumStems; s++ {
		if !dk.Gate(s) {
			continue
		}
		src := dk.EffectiveStem(s)
		stemBuf := e.scratch.source[d][s][:sourceLen*2]
		sl := e.slicers[d]
		if sl.Active() && sl.Affected(s) {
			sl.Render(src, s, dk.Position(), stemBuf)
		} else {
			readDirect(dk, src, sourceLen, stemBuf)
		}
		for i := range pre {
			pre[i] += stemBuf[i]
		}
	}

	gain := float32(dk.LUFSGain())
	for i := range pre {
		pre[i] *= gain
	}

	post := e.scratch.postEffects[d][:sourceLen*2]
	e.effects[d].Process(pre, post)

	st.Process(post, out)

	dk.AdvanceAndWrap(int64(sourceLen))
}

// readDirect reads sourceLen frames from src starting at the deck's
// current position, honoring loop wrap, for a stem that bypasses the
// slicer (inactive, or outside its affected set).
func readDirect(dk *deck.Deck, src buffer.PlanarStereo, sourceLen int, out []float32) {
	if src == nil {
		for i := range out {
			out[i] = 0
		}
		return
	}
	frames := src.Frames()
	for i := 0; i < sourceLen; i++ {
		idx := dk.SourceIndexAt(int64(i))
		if idx < 0 || idx >= frames {
			out[2*i] = 0
			out[2*i+1] = 0
			continue
		}
		out[2*i] = src[2*idx]
		out[2*i+1] = src[2*idx+1]
	}
}

// applyRatio sets the deck's stretch ratio from globalBPM/bpm_original,
// rejecting out-of-range ratios as a Configuration error: the deck keeps
// whatever ratio it last had rather than applying an invalid one (spec
// §7: "the offending command is ignored; the engine continues").
func (e *Engine) applyRatio(d int, meta *buffer.Metadata, st *stretch.Stretcher) {
	if meta == nil || meta.BPMOriginal <= 0 {
		return
	}
	r := e.globalBPM / meta.BPMOriginal
	if r < minRatio || r > maxRatio {
		e.reportConfigError(errs.NewConfigError(errs.CodeRatioOutOfRange, d,
			"stretch ratio out of range; deck continues at its previous ratio"))
		return
	}
	st.SetRatio(r)
}

// checkBarBoundary detects whether this callback's source read crosses
// a bar line (4 beats) and, if so, notifies the deck's slicer. It
// compares the bar of the deck's current, loop-wrapped position with the
// bar of that position plus sourceLen; the read's own wrap back to the
// loop start is not followed, so a loop that contains no bar line never
// produces a bar boundary.
func (e *Engine) checkBarBoundary(d int, dk *deck.Deck, meta *buffer.Metadata, sourceLen int) {
	if meta == nil || sourceLen <= 0 {
		return
	}
	oldPos := dk.Position()
	newPos := oldPos + int64(sourceLen)
	oldBar := floorDivInt64(meta.BeatIndexAtOrBefore(oldPos), 4)
	newBar := floorDivInt64(meta.BeatIndexAtOrBefore(newPos), 4)
	if newBar <= oldBar {
		return
	}
	barSample := meta.GridSample(newBar * 4)
	if err := e.slicers[d].OnBarBoundary(meta, barSample); err != nil {
		e.reportConfigError(err)
	}
}

func floorDivInt64(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func (e *Engine) reportConfigError(err error) {
	ce, ok := err.(*errs.ConfigError)
	if !ok {
		return
	}
	e.notifier.Push(notify.Event{Severity: notify.SeverityConfig, Deck: ce.Deck, Code: string(ce.Code), Detail: ce.Detail})
}
