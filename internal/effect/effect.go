// Package effect defines the per-deck effect chain's boundary with the
// engine core. Spec §6 treats the effect chain itself as an opaque
// external collaborator ("entirely plugin-defined... the engine core
// only needs latency_samples() and a process() call"); this package is
// that boundary plus the one piece of policy the engine core owns: the
// combined-latency ceiling check (spec §7, CodeEffectLatencyExceedsCeil).
package effect

import "github.com/mesh-audio/djengine/internal/errs"

// LatencyCeiling is the maximum total reported effect latency the
// conductor will accept for any one deck (spec §7).
const LatencyCeiling = 8000

// Effect is the external collaborator contract an effect-chain plugin
// implements. Process must be allocation-free once Prepare has run.
type Effect interface {
	// Prepare is called once, off the audio thread, whenever the sample
	// rate or maximum block size changes.
	Prepare(sampleRate int, maxBlockFrames int)
	// Process transforms in into out in place or out-of-place (both the
	// same length, interleaved stereo). Must not allocate or block.
	Process(in []float32, out []float32)
	// Latency reports the chain's current algorithmic delay in samples.
	Latency() int
}

// NopEffect is the identity effect chain: zero latency, pass-through.
// Used as a deck's default chain until a real plugin is attached.
type NopEffect struct{}

func (NopEffect) Prepare(int, int)                   {}
func (NopEffect) Process(in []float32, out []float32) { copy(out, in) }
func (NopEffect) Latency() int                        { return 0 }

// Chain wraps a deck's attached Effect (or NopEffect, if none) and
// enforces the latency ceiling before the conductor trusts its reported
// latency for cross-deck compensation (spec §4.8 step 4).
type Chain struct {
	Effect    Effect
	deckIndex int
}

// NewChain wraps e (or NopEffect if e is nil) for deckIndex, used only
// for ConfigError reporting.
func NewChain(deckIndex int, e Effect) *Chain {
	if e == nil {
		e = NopEffect{}
	}
	return &Chain{Effect: e, deckIndex: deckIndex}
}

// Prepare forwards to the wrapped effect.
func (c *Chain) Prepare(sampleRate int, maxBlockFrames int) {
	c.Effect.Prepare(sampleRate, maxBlockFrames)
}

// Process forwards to the wrapped effect.
func (c *Chain) Process(in []float32, out []float32) { c.Effect.Process(in, out) }

// CheckedLatency returns the wrapped effect's reported latency, or a
// ConfigError if it exceeds LatencyCeiling. On error the caller should
// treat this deck's latency as 0 for this callback (spec §7:
// "configuration error... offending command is ignored").
func (c *Chain) CheckedLatency() (int, error) {
	lat := c.Effect.Latency()
	if lat > LatencyCeiling {
		return 0, errs.NewConfigError(errs.CodeEffectLatencyExceedsCeil, c.deckIndex,
			"effect chain latency exceeds the 8000-sample ceiling")
	}
	return lat, nil
}
