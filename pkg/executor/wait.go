package executor

import (
	"context"
	"time"
)

// pollUntil calls probe until it reports done or deadline passes. The last
// probe runs at or after the deadline, so a failure is never reported early
// and never later than the deadline plus one interval. It returns
// (false, ctx.Err()) if ctx ends first.
func pollUntil(ctx context.Context, deadline time.Time, interval time.Duration, probe func() bool) (bool, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if probe() {
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		wait := interval
		if remaining < wait {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(wait):
		}
	}
}
