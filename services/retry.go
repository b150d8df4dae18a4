// services/retry.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gewnthar/nwpsync/config"
	"github.com/gewnthar/nwpsync/scraper"
	"github.com/gewnthar/nwpsync/utils"
)

// FetchStrategy is the bounded retry policy for file transfers: a failed
// attempt is followed by a fixed sleep, up to MaxRetries extra attempts.
type FetchStrategy struct {
	MaxRetries int
	RetrySleep time.Duration

	// Sleep waits for d or until ctx is done. Nil uses a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultFetchStrategy retries three times, thirty seconds apart.
var DefaultFetchStrategy = FetchStrategy{
	MaxRetries: config.DefaultMaxRetries,
	RetrySleep: config.DefaultRetryBackoff,
}

// Do runs fn until it succeeds or the attempts are used up, in which case the
// returned error wraps both ErrTransferFailed and the last failure. A
// cancelled context stops the loop immediately, and so does a failure
// retrying cannot fix (scraper.ErrPermanent, scraper.ErrNotGrib).
func (s FetchStrategy) Do(ctx context.Context, what string, fn func(ctx context.Context) error) error {
	attempts := s.MaxRetries + 1
	sleep := s.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for try := 1; try <= attempts; try++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if permanent(err) {
			utils.Log.Warn().Err(err).Str("target", what).Msg("transfer failed, not retrying")
			return fmt.Errorf("%w: %s after %d attempts: %w", ErrTransferFailed, what, try, err)
		}
		utils.Log.Warn().Err(err).
			Str("target", what).
			Int("try", try).
			Int("of", attempts).
			Msg("transfer failed")

		if try == attempts {
			break
		}
		if serr := sleep(ctx, s.RetrySleep); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrTransferFailed, what, attempts, err)
}

// permanent reports failures a retry cannot fix: a file missing from a run
// whose marker exists, or a payload that is not GRIB.
func permanent(err error) bool {
	return errors.Is(err, scraper.ErrPermanent) || errors.Is(err, scraper.ErrNotGrib)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
