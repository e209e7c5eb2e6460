package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/smsgate/internal/logger"
)

const (
	initialBackoff = 2 * time.Second
	maxBackoff     = 30 * time.Second
	attemptTimeout = 10 * time.Second
)

// retry calls fn until it succeeds, ctx is done, or maxWait has passed.
// The backoff doubles after each failure up to maxBackoff.
func retry(ctx context.Context, maxWait time.Duration, what string, fn func(context.Context) error) error {
	deadline := time.Now().Add(maxWait)
	backoff := initialBackoff
	for {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().Add(backoff).After(deadline) {
			return fmt.Errorf("%s: gave up after %v: %w", what, maxWait, err)
		}
		logger.Errorf("%s connect failed, retry in %v: %v", what, backoff, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
