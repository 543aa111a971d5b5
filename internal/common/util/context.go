package util

import (
	"context"
	"time"

	"k8s.io/utils/clock"
)

// Sleep blocks for d according to c, returning early with ctx.Err() if ctx is cancelled first.
// A non-positive d returns immediately unless ctx is already done.
func Sleep(ctx context.Context, c clock.Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.After(d):
		return nil
	}
}
