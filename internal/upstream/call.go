// Package upstream bounds calls to external providers with a per-attempt timeout
// and an optional exponential backoff between attempts.
package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/storyteller/internal/models"
)

const maxDelay = time.Minute

// Policy configures Call. The zero value means one attempt without timeout.
type Policy struct {
	Timeout     time.Duration // per attempt; 0 disables
	MaxAttempts int           // values below 1 mean 1
	BaseDelay   time.Duration // delay before the second attempt, doubled afterwards
}

// Call runs fn until it succeeds or the attempts are exhausted. The returned error
// wraps models.ErrUpstream and the last error from fn.
func Call(ctx context.Context, p Policy, op string, fn func(context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		lastErr = fn(callCtx)
		timedOut := callCtx.Err() == context.DeadlineExceeded
		cancel()
		if lastErr == nil {
			return nil
		}
		if timedOut {
			lastErr = fmt.Errorf("timed out after %s: %w", p.Timeout, lastErr)
		}
		if ctx.Err() != nil || attempt == attempts-1 {
			break
		}

		delay := p.BaseDelay * time.Duration(1<<uint(min(attempt, 10)))
		if delay > maxDelay {
			delay = maxDelay
		}
		log.Warn().
			Err(lastErr).
			Str("op", op).
			Int("attempt", attempt+1).
			Int("max_attempts", attempts).
			Dur("delay", delay).
			Msg("Upstream call failed - will retry")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", models.ErrUpstream, op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%w: %s: %w", models.ErrUpstream, op, lastErr)
}
