// Package collector implements the deferred "garbage collector" (spec
// §3/§4.4, C4): a multi-producer/single-consumer queue of erased
// destructors, drained by a low-priority worker on a timer (<=100ms per
// spec), that keeps the audio thread allocation- and free-free.
package collector

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mesh-audio/djengine/internal/notify"
)

// DefaultCapacity bounds the pending-destructor queue. At steady state it
// should never fill; see Push.
const DefaultCapacity = 4096

// DefaultTick is the worker's wake interval, at the spec's <=100ms ceiling.
const DefaultTick = 100 * time.Millisecond

// Collector is C4. The zero value is not usable; construct with New.
type Collector struct {
	queue    chan func()
	tick     time.Duration
	notifier *notify.Notifier
	leaked   atomic.Int64
	ran      atomic.Int64
}

// New creates a Collector with the given queue capacity and tick period.
func New(capacity int, tick time.Duration, notifier *notify.Notifier) *Collector {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Collector{queue: make(chan func(), capacity), tick: tick, notifier: notifier}
}

// Push enqueues a destructor. It is non-blocking from the caller's point
// of view: a buffered channel send either succeeds immediately or, in
// the last-resort case of a full queue (which should not happen at
// steady state), the handle is leaked and a notification is emitted —
// anything that could block would risk stalling the audio thread, which
// Push must never do. The channel send itself briefly takes the
// channel's internal lock, so this is non-blocking rather than
// wait-free; that's sufficient here since the lock is only ever held for
// an enqueue/dequeue, never across a destructor call.
func (c *Collector) Push(fn func()) {
	select {
	case c.queue <- fn:
	default:
		c.leaked.Add(1)
		if c.notifier != nil {
			c.notifier.Push(notify.Event{
				Severity: notify.SeverityCapacity,
				Code:     "collector_queue_full",
				Detail:   "deferred collector queue full; handle leaked rather than blocking audio thread",
			})
		}
	}
}

// Leaked reports how many destructors were dropped because the queue was
// full. Should be zero in steady-state operation.
func (c *Collector) Leaked() int64 { return c.leaked.Load() }

// Ran reports how many destructors have been executed.
func (c *Collector) Ran() int64 { return c.ran.Load() }

// Run drains the queue on c.tick until ctx is cancelled, running every
// destructor pushed since the last tick in FIFO order. Intended to run on
// its own low-priority goroutine.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.drainAll()
			return ctx.Err()
		case <-ticker.C:
			c.drainPending()
		}
	}
}

// drainPending runs every destructor currently queued without blocking
// for more to arrive.
func (c *Collector) drainPending() {
	for {
		select {
		case fn := <-c.queue:
			fn()
			c.ran.Add(1)
		default:
			return
		}
	}
}

// drainAll runs destructors until the queue is empty; Run calls it when
// its context is cancelled, so every destructor queued by then has run
// before Run (and so Engine.Start) returns.
func (c *Collector) drainAll() {
	for {
		select {
		case fn := <-c.queue:
			fn()
			c.ran.Add(1)
		default:
			return
		}
	}
}
