// Package limiter implements C8.1's two-stage master protection chain:
// a stateless soft-clipper followed by a feed-forward lookahead limiter.
// Both stages are purely local (no cross-bus or cross-deck coupling) and
// allocate nothing on Process.
package limiter

import (
	"math"
	"sync/atomic"
)

// SampleRate matches the engine's fixed internal rate.
const SampleRate = 48000

// clipThresholdDBFS is the soft-clip knee (spec §4.8.1: "-0.3 dBFS").
const clipThresholdDBFS = -0.3

// clipHoldSamples is how long the atomic clip flag stays set after the clipper
// last engaged, so a brief transient is still visible to a display-rate
// reader (spec §4.8.1: "150 ms hold").
const clipHoldSamples = int64(0.150 * SampleRate)

// lookaheadSamples is 1.5ms @ 48kHz (spec §4.8.1: "72 samples").
const lookaheadSamples = 72

// releaseMillis is the limiter envelope's 100ms release time (§4.8.1);
// NewLimiter derives the per-sample release coefficient from it.
const releaseMillis = 100.0

func dbToLinear(db float64) float64 { return math.Pow(10, db/20) }

// Clipper is a stateless (per-sample) soft-clipper above a threshold,
// plus the atomic "engaged" indicator the GUI polls.
type Clipper struct {
	threshold   float32
	holdSamples int64
	holdLeft    atomic.Int64
	engaged     atomic.Bool
}

// New creates a Clipper at the spec's fixed -0.3 dBFS threshold.
func New() *Clipper {
	return &Clipper{threshold: float32(dbToLinear(clipThresholdDBFS)), holdSamples: clipHoldSamples}
}

// softClip maps x through a transparent-below-threshold, smoothly
// saturating-above-threshold curve: identity for |x| <= t, asymptotic
// toward +/-1 beyond it.
func (c *Clipper) softClip(x float32) float32 {
	t := c.threshold
	if x >= -t && x <= t {
		return x
	}
	sign := float32(1)
	if x < 0 {
		sign = -1
		x = -x
	}
	headroom := 1 - t
	over := x - t
	// Asymptotic compression of the excess above the threshold into the
	// remaining headroom up to full scale.
	shaped := t + headroom*(1-float32(math.Exp(-float64(over/headroom))))
	return sign * shaped
}

// Process soft-clips in place and updates the hold-timed clip flag.
func (c *Clipper) Process(buf []float32) {
	hit := false
	for i, x := range buf {
		y := c.softClip(x)
		buf[i] = y
		if y != x {
			hit = true
		}
	}
	if hit {
		c.holdLeft.Store(c.holdSamples)
		c.engaged.Store(true)
		return
	}
	remaining := c.holdLeft.Load() - int64(len(buf)/2)
	if remaining <= 0 {
		c.holdLeft.Store(0)
		c.engaged.Store(false)
		return
	}
	c.holdLeft.Store(remaining)
}

// Engaged reports whether the clip indicator is currently lit.
func (c *Clipper) Engaged() bool { return c.engaged.Load() }

// Limiter is a feed-forward lookahead limiter: the gain-reduction
// envelope is computed from a sliding peak detector running
// lookaheadSamples ahead of the delayed signal it is applied to.
type Limiter struct {
	delay    []float32 // ring of interleaved stereo frames, length lookaheadSamples
	writePos int

	envelope   float64 // current linear gain multiplier, <= 1
	releaseCoef float64
	ceiling    float64
}

// NewLimiter creates a Limiter at unity ceiling (0 dBFS) with the spec's fixed
// 1.5ms lookahead and 100ms release, zero attack (instantaneous gain
// reduction onset, per §4.8.1).
func NewLimiter() *Limiter {
	l := &Limiter{
		delay:    make([]float32, lookaheadSamples*2),
		envelope: 1,
		ceiling:  1,
	}
	// Standard one-pole release coefficient for a per-sample envelope
	// follower targeting releaseMillis to decay back toward unity.
	l.releaseCoef = math.Exp(-1.0 / (releaseMillis / 1000.0 * SampleRate))
	return l
}

// Process applies lookahead limiting in place on buf, reading each frame
// before overwriting it.
func (l *Limiter) Process(buf []float32) {
	n := len(buf) / 2
	for i := 0; i < n; i++ {
		inL, inR := buf[2*i], buf[2*i+1]

		// Peak over the sliding window of the incoming (future, lookahead)
		// frame plus every frame still queued in the delay ring, including
		// the one output this iteration, drives gain computation; 0 attack
		// means the reduction applies as soon as the peak enters the
		// window, with no ramp-in.
		peak := math.Max(math.Abs(float64(inL)), math.Abs(float64(inR)))
		for _, v := range l.delay {
			if a := math.Abs(float64(v)); a > peak {
				peak = a
			}
		}
		target := 1.0
		if peak > l.ceiling {
			target = l.ceiling / peak
		}
		if target < l.envelope {
			l.envelope = target // 0 attack: snap down immediately
		} else {
			l.envelope = target + (l.envelope-target)*l.releaseCoef
		}

		delayedL, delayedR := l.delay[2*l.writePos], l.delay[2*l.writePos+1]
		l.delay[2*l.writePos] = inL
		l.delay[2*l.writePos+1] = inR
		l.writePos = (l.writePos + 1) % lookaheadSamples

		buf[2*i] = delayedL * float32(l.envelope)
		buf[2*i+1] = delayedR * float32(l.envelope)
	}
}

// Latency reports the limiter's fixed lookahead, in samples.
func (l *Limiter) Latency() int { return lookaheadSamples }

// Chain is the two-stage master-protection chain applied to the master
// and cue buses independently (spec §4.8.1).
type Chain struct {
	Clip  *Clipper
	Limit *Limiter
}

// NewChain constructs one clipper+limiter chain instance; callers need
// one per bus (master, cue) since both stages carry state.
func NewChain() *Chain {
	return &Chain{Clip: New(), Limit: NewLimiter()}
}

// Process runs buf through the clipper then the limiter, in place.
func (c *Chain) Process(buf []float32) {
	c.Clip.Process(buf)
	c.Limit.Process(buf)
}
