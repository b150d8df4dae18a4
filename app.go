// app.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gewnthar/nwpsync/config"
	"github.com/gewnthar/nwpsync/database"
	"github.com/gewnthar/nwpsync/models"
	"github.com/gewnthar/nwpsync/scraper"
	"github.com/gewnthar/nwpsync/services"
	"github.com/gewnthar/nwpsync/utils"
)

// app is the wiring shared by every command.
type app struct {
	cfg     config.Config
	syncer  *services.Syncer
	history services.HistorySource
	ping    func() error
}

// setup loads the configuration and builds the sync service. It exits the
// process on failure. The returned context is cancelled on interrupt.
func setup() (context.Context, *app) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	atexit(stop)

	if err := config.LoadConfig(configPath); err != nil {
		utils.Log.Error().Err(err).Msg("error loading configuration")
		setExitStatus(1)
		exit()
	}
	cfg := config.AppConfig

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	utils.SetupLogger(level, cfg.Logging.Pretty)

	catalog, err := services.NewCatalog(cfg.Models)
	if err != nil {
		fatal(err, "invalid model configuration")
	}

	httpClient, err := scraper.NewHTTPClient(scraper.ClientOptions{
		Proxies:      cfg.Network.Proxies,
		UserAgent:    cfg.Network.UserAgent,
		FetchTimeout: cfg.Network.FetchTimeout,
	})
	if err != nil {
		fatal(err, "invalid network configuration")
	}
	transport := &scraper.Transport{HTTP: httpClient}

	// object storage is only needed by gs:// models; run without it otherwise
	if gcs, err := scraper.NewGCSClient(ctx, cfg.Network.UserAgent); err != nil {
		utils.Log.Warn().Err(err).Msg("object storage unavailable, gs:// models will fail")
	} else {
		transport.GCS = gcs
		atexit(func() { gcs.Close() })
	}

	a := &app{cfg: cfg}
	var ledger services.VersionStore
	if cfg.Database.Enabled() {
		if err := database.InitDB(cfg.Database); err != nil {
			fatal(err, "error initializing database")
		}
		atexit(database.CloseDB)
		ledger = database.Ledger{}
		a.history = database.Ledger{}
		a.ping = func() error { return database.DB.Ping() }
	} else {
		csv := &services.CSVLedger{Path: filepath.Join(cfg.Cache.Root, "history.csv")}
		ledger = csv
		a.history = csv
		utils.Log.Debug().Str("ledger", csv.Path).Msg("no database configured, recording downloads to CSV")
	}

	a.syncer = &services.Syncer{
		Catalog:      catalog,
		Prober:       transport,
		Fetcher:      transport,
		Lister:       httpClient,
		Ledger:       ledger,
		Root:         cfg.Cache.Root,
		Policy:       services.FreshnessPolicy{Window: cfg.DataFreshness.StalenessWindow},
		Strategy:     services.FetchStrategy{MaxRetries: cfg.DataFreshness.Retries(), RetrySleep: cfg.DataFreshness.RetryBackoff},
		ProbeTimeout: cfg.Network.ProbeTimeout,
		Parallelism:  cfg.Sync.Parallelism,
	}
	return ctx, a
}

// fatal logs err with a diagnostic matching its kind and exits non-zero.
func fatal(err error, msg string) {
	report(err, msg)
	exit()
}

// report logs err and raises the exit status without exiting.
func report(err error, msg string) {
	ev := utils.Log.Error().Err(err)
	switch {
	case errors.Is(err, services.ErrNoRecentRun):
		ev = ev.Str("hint", "no published run found within the lookback window; the provider may be late")
	case errors.Is(err, services.ErrTransferFailed):
		ev = ev.Str("hint", "download failed after all retries; the cache directory was left empty")
	case errors.Is(err, scraper.ErrRateLimited):
		ev = ev.Str("hint", "the provider is refusing requests; wait before retrying")
	case errors.Is(err, services.ErrUnknownModel):
		ev = ev.Str("hint", "run 'nwpsync help sync' for the list of models")
	}
	ev.Msg(msg)
	setExitStatus(1)
}

// Flags shared by sync and status.
type datasetFlags struct {
	step      int
	directory string
	horizon   int
}

func (f *datasetFlags) register(cmd *Command) {
	cmd.Flag.IntVar(&f.step, "step", 0, "forecast hour step; 0 uses the model default")
	cmd.Flag.StringVar(&f.directory, "dir", "", "provider directory; empty uses the model default")
	cmd.Flag.IntVar(&f.horizon, "horizon", 0, "last forecast hour wanted; 0 means the model maximum")
}

// requests parses model/category arguments.
func (f *datasetFlags) requests(args []string, force bool) ([]models.SyncRequest, error) {
	reqs := make([]models.SyncRequest, 0, len(args))
	for _, arg := range args {
		model, category, ok := strings.Cut(arg, "/")
		if !ok || model == "" || category == "" {
			return nil, fmt.Errorf("%w: expected model/category, got %q", services.ErrInvalidRequest, arg)
		}
		reqs = append(reqs, models.SyncRequest{
			Model:     model,
			Category:  category,
			Step:      f.step,
			Directory: f.directory,
			Horizon:   f.horizon,
			Force:     force,
		})
	}
	return reqs, nil
}
