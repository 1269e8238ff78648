// Package notify implements the out-of-band notification channel that
// spec §7 requires for Configuration and Fatal-condition errors: "logged
// via a lock-free ring" and "reported to the Control thread."
//
// The audio thread only ever calls Push, which is non-blocking and
// allocation-free on the hot path (the Event is passed by value into a
// preallocated bounded channel); a background goroutine started by Run
// drains it and writes structured log lines through charmbracelet/log,
// mirroring doismellburning/samoyed's logging stack.
package notify

import (
	"context"

	"github.com/charmbracelet/log"
)

// Severity classifies a notification per spec §7's error taxonomy.
type Severity int

const (
	SeverityConfig Severity = iota
	SeverityCapacity
	SeverityFatal
)

// Event is a single notification record.
type Event struct {
	Severity Severity
	Deck     int
	Code     string
	Detail   string
}

// Notifier is a bounded, non-blocking event sink with a background drainer.
type Notifier struct {
	events  chan Event
	logger  *log.Logger
	dropped int64
}

// New creates a Notifier with the given bounded capacity.
func New(capacity int, logger *log.Logger) *Notifier {
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Notifier{events: make(chan Event, capacity), logger: logger}
}

// Push is safe to call from the audio thread: it never blocks. If the
// channel is momentarily full (the drainer is lagging), the event is
// dropped and a counter is incremented rather than stalling the caller.
func (n *Notifier) Push(e Event) {
	select {
	case n.events <- e:
	default:
		n.dropped++
	}
}

// Dropped returns the number of events lost to backpressure.
func (n *Notifier) Dropped() int64 { return n.dropped }

// Run drains events until ctx is cancelled. Intended to run on its own
// goroutine, supervised by the control layer (see engine.Engine.Start).
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-n.events:
			n.log(e)
		}
	}
}

func (n *Notifier) log(e Event) {
	fields := []any{"deck", e.Deck, "code", e.Code, "detail", e.Detail}
	switch e.Severity {
	case SeverityFatal:
		n.logger.Error("engine fatal condition", fields...)
	case SeverityCapacity:
		n.logger.Warn("engine capacity error", fields...)
	default:
		n.logger.Warn("engine configuration error", fields...)
	}
}
