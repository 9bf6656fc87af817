// Package search runs debounced airport lookups for type-ahead input.
package search

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// Debouncer runs the most recently scheduled operation once no newer one
// has arrived for the configured delay. Scheduling supersedes the pending
// operation: its timer is stopped and its context cancelled, including
// when the operation is already running.
type Debouncer struct {
	clock clock.Clock
	delay time.Duration

	mu     sync.Mutex
	seq    uint64
	timer  *clock.Timer
	cancel context.CancelFunc
}

// NewDebouncer returns a Debouncer that waits delay on clk.
func NewDebouncer(clk clock.Clock, delay time.Duration) *Debouncer {
	if clk == nil {
		clk = clock.New()
	}
	return &Debouncer{clock: clk, delay: delay}
}

// Delay returns the configured quiet period.
func (d *Debouncer) Delay() time.Duration { return d.delay }

// Schedule arranges for fn to run after the quiet period. fn's context is
// derived from ctx and is cancelled when a later Schedule or Stop
// supersedes it.
func (d *Debouncer) Schedule(ctx context.Context, fn func(context.Context)) {
	opCtx, cancel := context.WithCancel(ctx)

	d.mu.Lock()
	d.supersedeLocked()
	d.seq++
	seq := d.seq
	d.cancel = cancel
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := seq == d.seq
		if current {
			d.timer = nil
		}
		d.mu.Unlock()
		if !current || opCtx.Err() != nil {
			return
		}
		fn(opCtx)
	})
	d.mu.Unlock()
}

// Stop cancels whatever is pending or running.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.supersedeLocked()
	d.seq++
	d.mu.Unlock()
}

func (d *Debouncer) supersedeLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
