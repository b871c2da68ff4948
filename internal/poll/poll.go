// Package poll provides a bounded fixed-interval polling loop shared by the
// assistant run waiter and asynchronous transcription backends.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrCeilingExceeded indicates the poll loop hit its time ceiling before the
// check reported done.
var ErrCeilingExceeded = errors.New("poll ceiling exceeded")

// Check inspects the polled resource once. It returns done=true to stop the
// loop, or an error to abort it.
type Check func(ctx context.Context) (done bool, err error)

// Until runs check every interval until it reports done, fails, the ceiling
// elapses (ErrCeilingExceeded), or ctx is cancelled. The first check runs
// immediately.
func Until(ctx context.Context, interval, ceiling time.Duration, check Check) error {
	if interval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if ceiling <= 0 {
		return errors.New("poll ceiling must be positive")
	}

	deadline := time.Now().Add(ceiling)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrCeilingExceeded
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
