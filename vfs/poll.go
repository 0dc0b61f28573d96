package vfs

import (
	"context"
	"fmt"
	"time"

	"github.com/user-none/emweb/emuerr"
)

// Backoff is a bounded retry schedule. The delay before attempt n is
// Base doubled n times, capped at Max. A zero Max keeps the delay at Base.
type Backoff struct {
	Base     time.Duration
	Max      time.Duration
	Attempts int
}

// FileBackoff is the schedule for files the core writes asynchronously.
var FileBackoff = Backoff{Base: 100 * time.Millisecond, Max: time.Second, Attempts: 31}

// ReadyBackoff is the schedule for waiting on the core's execution handle.
var ReadyBackoff = Backoff{Base: 10 * time.Millisecond, Attempts: 20}

// Delay returns the wait before the given zero based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Max <= b.Base {
		return b.Base
	}
	d := b.Base
	for range attempt {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	return d
}

// Poll waits per the schedule and calls probe after every wait until probe
// reports done. It fails with ErrTimeout when the attempts run out and
// with ErrAborted as soon as ctx ends. A probe error ends polling.
//
// The core offers no completion callback for files it writes, so polling
// is the only way to observe them.
func Poll(ctx context.Context, b Backoff, probe func(attempt int) (bool, error)) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for attempt := range b.Attempts {
		timer.Reset(b.Delay(attempt))
		select {
		case <-ctx.Done():
			return emuerr.CheckAborted(ctx)
		case <-timer.C:
		}
		if err := emuerr.CheckAborted(ctx); err != nil {
			return err
		}

		done, err := probe(attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return fmt.Errorf("%w: gave up after %d attempts", emuerr.ErrTimeout, b.Attempts)
}
