package scorer

import (
	"context"
	"time"
)

// Delayer suspends the caller for d, returning early with ctx.Err() when the
// context ends first.
type Delayer interface {
	Wait(ctx context.Context, d time.Duration) error
}

type timerDelayer struct{}

// NewTimerDelayer waits on a runtime timer, parking only the calling goroutine.
func NewTimerDelayer() Delayer {
	return timerDelayer{}
}

func (timerDelayer) Wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type instantDelayer struct{}

// NewInstantDelayer skips the wait but still honors cancellation.
func NewInstantDelayer() Delayer {
	return instantDelayer{}
}

func (instantDelayer) Wait(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
