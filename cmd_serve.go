// cmd_serve.go
package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gewnthar/nwpsync/handlers"
	"github.com/gewnthar/nwpsync/utils"
)

var cmdServe = &Command{
	UsageLine: "serve",
	Short:     "run the HTTP API",
	Long: `
Serve exposes sync over HTTP on the configured port:

    POST /api/sync/{model}/{category}     sync one dataset; optional JSON body
                                          {"step", "directory", "horizon", "force"}
    GET  /api/status/{model}/{category}   freshness decision without downloading
    GET  /api/runs/{model}                runs the provider publishes
    GET  /api/versions                    recorded downloads
    GET  /api/health                      liveness and database check
`,
}

func init() {
	cmdServe.Run = runServe
}

func runServe(cmd *Command, args []string) {
	ctx, a := setup()

	api := &handlers.API{Syncer: a.syncer, History: a.history, Ping: a.ping}
	mux := http.NewServeMux()
	api.Register(mux)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	utils.Log.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := serveUntilDone(ctx, srv, 30*time.Second); err != nil {
		fatal(err, "error starting server")
	}
	utils.Log.Info().Msg("server stopped")
}

// serveUntilDone runs srv until ctx is cancelled, then waits up to drain for
// in-flight requests, so a running sync can finish or clean up.
func serveUntilDone(ctx context.Context, srv *http.Server, drain time.Duration) error {
	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-done; err != nil {
		utils.Log.Warn().Err(err).Msg("shutdown did not drain all requests")
	}
	return nil
}
