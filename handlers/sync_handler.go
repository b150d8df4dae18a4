// handlers/sync_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gewnthar/nwpsync/models"
	"github.com/gewnthar/nwpsync/scraper"
	"github.com/gewnthar/nwpsync/services"
	"github.com/gewnthar/nwpsync/utils"
)

// API serves the sync service over HTTP.
type API struct {
	Syncer  *services.Syncer
	History services.HistorySource // optional
	Ping    func() error           // optional database health check
}

// Register mounts every endpoint on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/sync/", a.SyncHandler)
	mux.HandleFunc("/api/status/", a.StatusHandler)
	mux.HandleFunc("/api/runs/", a.RunsHandler)
	mux.HandleFunc("/api/versions", a.VersionsHandler)
	mux.HandleFunc("/api/health", a.HealthHandler)
}

// Helper to respond with JSON
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		utils.Log.Error().Err(err).Msg("failed to marshal JSON response")
		http.Error(w, `{"error":"Failed to marshal JSON response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper to respond with an error
func respondWithError(w http.ResponseWriter, code int, message string) {
	utils.Log.Warn().Int("status", code).Msg(message)
	respondWithJSON(w, code, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnknownModel):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNoRecentRun), errors.Is(err, scraper.ErrRateLimited):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrTransferFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// pathArgs returns the path segments after prefix segments, e.g.
// /api/sync/gfs/pgrb2.0p25 with skip 2 yields [gfs pgrb2.0p25].
func pathArgs(r *http.Request, skip int) []string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) <= skip {
		return nil
	}
	return parts[skip:]
}

// SyncHandler handles POST /api/sync/{model}/{category}. The optional JSON
// body carries step, directory, horizon and force.
func (a *API) SyncHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondWithError(w, http.StatusMethodNotAllowed, "Only POST method is allowed")
		return
	}
	args := pathArgs(r, 2)
	if len(args) != 2 {
		respondWithError(w, http.StatusBadRequest, "Invalid path. Expected /api/sync/{model}/{category}")
		return
	}

	var req models.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	req.Model, req.Category = args[0], args[1]

	resp, err := a.Syncer.Sync(r.Context(), req)
	if err != nil {
		respondWithError(w, statusFor(err), fmt.Sprintf("Failed to sync %s/%s: %v", req.Model, req.Category, err))
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// StatusHandler handles GET /api/status/{model}/{category}?step=&directory=&horizon=
// and reports whether a sync would download, without downloading, along with
// the last recorded download of the dataset.
func (a *API) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}
	args := pathArgs(r, 2)
	if len(args) != 2 {
		respondWithError(w, http.StatusBadRequest, "Invalid path. Expected /api/status/{model}/{category}")
		return
	}

	q := r.URL.Query()
	req := models.SyncRequest{Model: args[0], Category: args[1], Directory: q.Get("directory")}
	var err error
	if req.Step, err = intParam(q.Get("step")); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid step")
		return
	}
	if req.Horizon, err = intParam(q.Get("horizon")); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid horizon")
		return
	}

	plan, err := a.Syncer.Plan(r.Context(), req)
	if err != nil {
		respondWithError(w, statusFor(err), fmt.Sprintf("Failed to check %s/%s: %v", req.Model, req.Category, err))
		return
	}
	body := map[string]interface{}{
		"key":      plan.Key,
		"decision": plan.Decision,
		"hours":    len(plan.Hours),
		"version":  nil,
	}
	if a.History != nil {
		v, err := a.History.GetDatasetVersion(plan.Key)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load version for %s: %v", plan.Key, err))
			return
		}
		if v != nil {
			body["version"] = v
		}
	}
	respondWithJSON(w, http.StatusOK, body)
}

// RunsHandler handles GET /api/runs/{model}.
func (a *API) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}
	args := pathArgs(r, 2)
	if len(args) != 1 {
		respondWithError(w, http.StatusBadRequest, "Invalid path. Expected /api/runs/{model}")
		return
	}

	runs, err := a.Syncer.Runs(r.Context(), args[0])
	if err != nil {
		respondWithError(w, statusFor(err), fmt.Sprintf("Failed to list runs for %s: %v", args[0], err))
		return
	}
	out := make([]string, 0, len(runs))
	for _, run := range runs {
		out = append(out, run.Time.Format("2006-01-02T15Z"))
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"model": args[0], "runs": out})
}

// VersionsHandler handles GET /api/versions.
func (a *API) VersionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}
	if a.History == nil {
		respondWithJSON(w, http.StatusOK, []models.DatasetVersion{})
		return
	}
	versions, err := a.History.GetDatasetVersions()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load versions: %v", err))
		return
	}
	if versions == nil {
		versions = []models.DatasetVersion{}
	}
	respondWithJSON(w, http.StatusOK, versions)
}

// HealthHandler handles GET /api/health.
func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if a.Ping != nil {
		if err := a.Ping(); err != nil {
			utils.Log.Error().Err(err).Msg("health check failed: DB ping error")
			respondWithJSON(w, http.StatusInternalServerError, map[string]string{
				"status": "error", "message": "database connection error",
			})
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "nwpsync is healthy"})
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
