package service

import (
	"context"
	"time"

	"github.com/zoobzio/clockz"
)

// Clock is the time source the services depend on. clockz.RealClock is the
// production implementation.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

var defaultClock Clock = clockz.RealClock

func orDefaultClock(c Clock) Clock {
	if c == nil {
		return defaultClock
	}
	return c
}

// sleep waits for d on clock or until ctx is done
func sleep(ctx context.Context, clock Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}
