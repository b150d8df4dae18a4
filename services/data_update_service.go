// services/data_update_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gewnthar/nwpsync/models"
	"github.com/gewnthar/nwpsync/utils"
)

// Fetcher transfers one remote file to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, localSavePath string) (int64, error)
}

// RunLister lists the runs a provider currently publishes.
type RunLister interface {
	ListRuns(ctx context.Context, idx models.RunIndex) ([]models.RunCandidate, error)
}

// VersionStore records completed downloads.
type VersionStore interface {
	LogDatasetVersion(v models.DatasetVersion) error
}

// Syncer keeps cached datasets in step with the newest published runs.
type Syncer struct {
	Catalog      *Catalog
	Prober       Prober
	Fetcher      Fetcher
	Lister       RunLister    // optional
	Ledger       VersionStore // optional
	Root         string
	Policy       FreshnessPolicy
	Strategy     FetchStrategy
	ProbeTimeout time.Duration
	Parallelism  int
	Now          func() time.Time

	locks keyedMutex
}

// SyncPlan is what Plan decided for one dataset.
type SyncPlan struct {
	Key        models.DatasetKey
	Descriptor models.ModelDescriptor
	Category   models.Category
	Hours      []int // forecast hours to fetch; the last one is the expected maximum
	Decision   models.DownloadDecision
}

func (s *Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Plan resolves the newest remote run, inspects the cache and decides whether
// a download is required. It changes nothing on disk.
func (s *Syncer) Plan(ctx context.Context, req models.SyncRequest) (*SyncPlan, error) {
	m, key, cat, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	hours, err := m.ForecastHours(key.Step, req.Horizon)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	maxHour := hours[len(hours)-1]

	resolver := RunResolver{Prober: s.Prober, ProbeTimeout: s.ProbeTimeout}
	remote, err := resolver.Resolve(ctx, CandidateRuns(s.now(), m),
		func(c models.RunCandidate) string { return m.RunURL(c, key.Directory) },
		func(c models.RunCandidate) string {
			// directory and category were validated by normalize
			name, _ := m.MarkerName(c, key.Directory, key.Category)
			return name
		},
	)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", key, err)
	}

	plan := &SyncPlan{
		Key:        key,
		Descriptor: m,
		Category:   cat,
		Hours:      hours,
		Decision:   models.DownloadDecision{Remote: remote, Path: key.Path(s.Root)},
	}

	if req.Force {
		plan.Decision.Required = true
		plan.Decision.Reason = models.ReasonForced
		return plan, nil
	}

	grammar, err := m.Grammar(key.Directory, key.Category)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for _, dir := range s.cacheDirs(plan) {
		local, err := InspectCache(dir, grammar, maxHour)
		if err != nil {
			utils.Log.Warn().Err(err).Str("path", dir).Msg("cache unreadable, treating as absent")
			local = nil
		}
		required, reason := s.Policy.NeedsDownload(local, remote, maxHour, now)
		plan.Decision.Reason = reason
		if required {
			// one stale member is enough to replace the whole set
			plan.Decision.Required = true
			break
		}
	}
	return plan, nil
}

// Sync brings one dataset up to date. When the cache is stale its directory
// is emptied and every forecast hour (of every member, for per-member
// categories) is fetched in order. A failed transfer empties the directory
// again, so a partial set is never left behind.
func (s *Syncer) Sync(ctx context.Context, req models.SyncRequest) (models.SyncResponse, error) {
	_, key, _, err := s.normalize(req)
	if err != nil {
		return models.SyncResponse{}, err
	}

	path := key.Path(s.Root)
	unlock := s.locks.Lock(path)
	defer unlock()

	plan, err := s.Plan(ctx, req)
	if err != nil {
		return models.SyncResponse{}, err
	}
	resp := models.SyncResponse{Key: plan.Key, Decision: plan.Decision}
	run := plan.Decision.Remote.Run

	logger := utils.Log.With().
		Str("model", key.Model).
		Str("category", key.Category).
		Int("step", key.Step).
		Str("directory", key.Directory).
		Str("run", run.String()).
		Logger()

	if !plan.Decision.Required {
		logger.Info().Msg("User has the current dataset, skipping download")
		return resp, nil
	}
	logger.Info().Str("reason", string(plan.Decision.Reason)).Msg("Data is old... downloading")

	if err := clearDir(path); err != nil {
		return resp, err
	}

	start := time.Now()
	n, bytes, err := s.fetchAll(ctx, plan)
	if err != nil {
		if cerr := clearDir(path); cerr != nil {
			logger.Error().Err(cerr).Msg("failed to clear partial download")
		}
		return resp, fmt.Errorf("syncing %s: %w", key, err)
	}
	resp.Downloaded, resp.Bytes = n, bytes

	logger.Info().
		Int("files", n).
		Int64("bytes", bytes).
		Dur("elapsed", time.Since(start)).
		Msg("download complete")

	if s.Ledger != nil {
		memberCount := 0
		if plan.Category.PerMember {
			memberCount = plan.Descriptor.Members
		}
		v := models.DatasetVersion{
			Model:        key.Model,
			Category:     key.Category,
			Step:         key.Step,
			Directory:    key.Directory,
			Members:      memberCount,
			RunTime:      run.Time,
			BaseURL:      plan.Decision.Remote.BaseURL,
			FileCount:    n,
			TotalBytes:   bytes,
			DownloadedAt: s.now().UTC(),
		}
		if err := s.Ledger.LogDatasetVersion(v); err != nil {
			logger.Error().Err(err).Msg("failed to record dataset version")
		}
	}
	return resp, nil
}

// SyncAll syncs several datasets concurrently, at most Parallelism at a
// time. Requests for the same cache directory still run one after another.
// The first error cancels the rest.
func (s *Syncer) SyncAll(ctx context.Context, reqs []models.SyncRequest) ([]models.SyncResponse, error) {
	out := make([]models.SyncResponse, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	limit := s.Parallelism
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			resp, err := s.Sync(ctx, req)
			out[i] = resp
			return err
		})
	}
	return out, g.Wait()
}

// Runs lists the runs a model's provider currently publishes, newest first.
func (s *Syncer) Runs(ctx context.Context, model string) ([]models.RunCandidate, error) {
	m, err := s.Catalog.Lookup(model)
	if err != nil {
		return nil, err
	}
	if s.Lister == nil || m.Index.URL == "" {
		return nil, fmt.Errorf("%w: model %s has no browsable run index", ErrInvalidRequest, m.Name)
	}
	return s.Lister.ListRuns(ctx, m.Index)
}

func (s *Syncer) normalize(req models.SyncRequest) (models.ModelDescriptor, models.DatasetKey, models.Category, error) {
	m, err := s.Catalog.Lookup(req.Model)
	if err != nil {
		return models.ModelDescriptor{}, models.DatasetKey{}, models.Category{}, err
	}

	key := models.DatasetKey{
		Model:     m.Name,
		Category:  utils.NormalizeCategory(req.Category),
		Step:      req.Step,
		Directory: utils.NormalizeCategory(req.Directory),
	}
	if key.Directory == "" {
		key.Directory = m.DefaultDir
	}
	if key.Step == 0 {
		key.Step = m.DefaultStep()
	}
	if !m.ValidStep(key.Step) {
		return m, key, models.Category{}, fmt.Errorf("%w: model %s has no %dh step", ErrInvalidRequest, m.Name, key.Step)
	}
	_, cat, err := m.Lookup(key.Directory, key.Category)
	if err != nil {
		return m, key, models.Category{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return m, key, cat, nil
}

// members lists the member numbers to fetch: 1..Members for per-member
// categories, otherwise just 0.
func members(plan *SyncPlan) []int {
	if !plan.Category.PerMember {
		return []int{0}
	}
	out := make([]int, 0, plan.Descriptor.Members)
	for i := 1; i <= plan.Descriptor.Members; i++ {
		out = append(out, i)
	}
	return out
}

func (s *Syncer) cacheDirs(plan *SyncPlan) []string {
	if !plan.Category.PerMember {
		return []string{plan.Key.Path(s.Root)}
	}
	var dirs []string
	for _, mem := range members(plan) {
		dirs = append(dirs, plan.Key.MemberPath(s.Root, mem))
	}
	return dirs
}

func (s *Syncer) fetchAll(ctx context.Context, plan *SyncPlan) (int, int64, error) {
	var (
		count int
		total int64
	)
	remote := plan.Decision.Remote
	dirs := s.cacheDirs(plan)

	for i, mem := range members(plan) {
		for _, fhr := range plan.Hours {
			name, err := plan.Descriptor.FileName(remote.Run, plan.Key.Directory, plan.Key.Category, mem, fhr)
			if err != nil {
				return count, total, err
			}
			url := remote.BaseURL + name
			local := filepath.Join(dirs[i], models.LocalName(name))

			err = s.Strategy.Do(ctx, name, func(ctx context.Context) error {
				n, err := s.Fetcher.Fetch(ctx, url, local)
				if err != nil {
					return err
				}
				total += n
				return nil
			})
			if err != nil {
				return count, total, err
			}
			count++
		}
	}
	return count, total, nil
}

func clearDir(path string) error {
	if err := os.RemoveAll(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// keyedMutex serializes work per cache directory.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
