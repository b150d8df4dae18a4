// services/run_resolver.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gewnthar/nwpsync/models"
	"github.com/gewnthar/nwpsync/scraper"
	"github.com/gewnthar/nwpsync/utils"
)

// Prober checks whether a remote file exists without downloading it.
type Prober interface {
	Exists(ctx context.Context, url string) (bool, error)
}

// RunResolver finds the newest run whose marker file is published.
type RunResolver struct {
	Prober       Prober
	ProbeTimeout time.Duration // per probe; 0 means no extra deadline
}

// Resolve probes candidates in order and returns the first whose marker
// exists. baseURL renders the run prefix and marker renders the marker path
// relative to it; the resolver does not know how either is named.
//
// Candidates must be ordered newest first. Probe errors skip the candidate,
// except scraper.ErrRateLimited which aborts resolution. When nothing is
// found the error wraps ErrNoRecentRun.
func (r *RunResolver) Resolve(
	ctx context.Context,
	candidates []models.RunCandidate,
	baseURL func(models.RunCandidate) string,
	marker func(models.RunCandidate) string,
) (models.RemoteRun, error) {
	var lastErr error
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return models.RemoteRun{}, err
		}

		base := baseURL(c)
		url := base + marker(c)

		ok, err := r.probe(ctx, url)
		if err != nil {
			if errors.Is(err, scraper.ErrRateLimited) {
				return models.RemoteRun{}, fmt.Errorf("probing %s: %w", url, err)
			}
			if ctx.Err() != nil {
				return models.RemoteRun{}, ctx.Err()
			}
			utils.Log.Warn().Err(err).Str("run", c.String()).Str("url", url).Msg("probe failed, trying older run")
			lastErr = err
			continue
		}
		if !ok {
			utils.Log.Debug().Str("run", c.String()).Str("url", url).Msg("marker not published")
			continue
		}

		utils.Log.Info().Str("run", c.String()).Str("base_url", base).Msg("resolved remote run")
		return models.RemoteRun{Run: c, BaseURL: base, MarkerURL: url}, nil
	}

	if lastErr != nil {
		return models.RemoteRun{}, fmt.Errorf("%w: %d candidates probed, last error: %v", ErrNoRecentRun, len(candidates), lastErr)
	}
	return models.RemoteRun{}, fmt.Errorf("%w: %d candidates probed", ErrNoRecentRun, len(candidates))
}

func (r *RunResolver) probe(ctx context.Context, url string) (bool, error) {
	if r.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.ProbeTimeout)
		defer cancel()
	}
	return r.Prober.Exists(ctx, url)
}
