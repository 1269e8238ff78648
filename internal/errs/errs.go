// Package errs defines the engine's small error taxonomy (spec §7).
//
// The audio thread itself never returns an error: every code path there
// either succeeds, writes silence, or no-ops. These types exist for the
// boundary between the audio thread and the control layer: the conductor
// turns a ConfigError into a notification instead of failing.
package errs

import "fmt"

// Sentinel errors for the Capacity and Missing-precondition classes.
var (
	// ErrQueueFull names the Capacity class. The command ring itself
	// reports a full queue with cmdring.ErrFull, not with this value.
	ErrQueueFull = fmt.Errorf("mesh-core: command queue full")

	// ErrEmptyDeck documents (it is never surfaced as a failure) that a
	// transport/loop/hot-cue command targeting an Empty deck is a no-op.
	ErrEmptyDeck = fmt.Errorf("mesh-core: deck is empty")
)

// Code identifies a Configuration error (spec §7).
type Code string

const (
	CodeRatioOutOfRange            Code = "ratio_out_of_range"
	CodeEffectLatencyExceedsCeil   Code = "effect_latency_exceeds_ceiling"
	CodeSlicerBufferNotGridAligned Code = "slicer_buffer_not_grid_aligned"
)

// ConfigError is a Configuration error: the offending command is ignored
// and the engine continues running every other deck normally.
type ConfigError struct {
	Code   Code
	Deck   int
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("mesh-core: configuration error %s on deck %d: %s", e.Code, e.Deck, e.Detail)
}

// NewConfigError builds a ConfigError.
func NewConfigError(code Code, deck int, detail string) *ConfigError {
	return &ConfigError{Code: code, Deck: deck, Detail: detail}
}
