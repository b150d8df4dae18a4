package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gewnthar/nwpsync/config"
	"github.com/gewnthar/nwpsync/models"
	"github.com/gewnthar/nwpsync/scraper"
	"github.com/gewnthar/nwpsync/services"
)

var testNow = time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)

type prefixProber string

func (p prefixProber) Exists(ctx context.Context, url string) (bool, error) {
	return strings.Contains(url, string(p)), nil
}

type gribFetcher struct{ calls int }

func (f *gribFetcher) Fetch(ctx context.Context, url, local string) (int64, error) {
	f.calls++
	n, err := scraper.SaveGrib(bytes.NewReader([]byte("GRIB test")), local)
	if err != nil {
		return 0, err
	}
	return n, os.Chtimes(local, testNow, testNow)
}

type staticLister []models.RunCandidate

func (l staticLister) ListRuns(ctx context.Context, idx models.RunIndex) ([]models.RunCandidate, error) {
	return l, nil
}

type staticHistory struct {
	versions []models.DatasetVersion
	err      error
}

func (h staticHistory) GetDatasetVersions() ([]models.DatasetVersion, error) {
	return h.versions, h.err
}

func (h staticHistory) GetDatasetVersion(key models.DatasetKey) (*models.DatasetVersion, error) {
	if h.err != nil {
		return nil, h.err
	}
	for i := range h.versions {
		if h.versions[i].Key() == key {
			return &h.versions[i], nil
		}
	}
	return nil, nil
}

func newTestAPI(t *testing.T) (*API, *gribFetcher) {
	t.Helper()
	catalog, err := services.NewCatalog([]config.ModelOverride{
		{Name: "gfs", BaseURL: "https://example.test/gfs.{YYYYMMDD}/{HH}/{DIR}", MaxForecastHour: 6},
	})
	if err != nil {
		t.Fatal(err)
	}
	fetcher := &gribFetcher{}
	s := &services.Syncer{
		Catalog:  catalog,
		Prober:   prefixProber("20261019/12/"),
		Fetcher:  fetcher,
		Lister:   staticLister{models.NewRunCandidate(testNow.Add(-2 * time.Hour))},
		Root:     t.TempDir(),
		Policy:   services.DefaultFreshnessPolicy(),
		Strategy: services.FetchStrategy{Sleep: func(ctx context.Context, d time.Duration) error { return nil }},
		Now:      func() time.Time { return testNow },
	}
	return &API{Syncer: s}, fetcher
}

func serve(a *API, method, target, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	a.Register(mux)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestSyncHandler(t *testing.T) {
	a, fetcher := newTestAPI(t)

	rr := serve(a, http.MethodPost, "/api/sync/gfs/pgrb2.0p25", `{"step":3}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp models.SyncResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Decision.Required || resp.Downloaded != 3 || resp.Key.Step != 3 {
		t.Errorf("response = %+v", resp)
	}

	rr = serve(a, http.MethodPost, "/api/sync/gfs/pgrb2.0p25", `{"step":3}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if fetcher.calls != 3 {
		t.Errorf("second sync fetched, calls = %d", fetcher.calls)
	}

	rr = serve(a, http.MethodPost, "/api/sync/gfs/pgrb2.0p50", "")
	if rr.Code != http.StatusOK {
		t.Errorf("empty body: status %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSyncHandlerErrors(t *testing.T) {
	a, _ := newTestAPI(t)

	cases := []struct {
		method, target, body string
		want                 int
	}{
		{http.MethodGet, "/api/sync/gfs/pgrb2.0p25", "", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/sync/gfs", "", http.StatusBadRequest},
		{http.MethodPost, "/api/sync/gfs/pgrb2.0p25", "{bad", http.StatusBadRequest},
		{http.MethodPost, "/api/sync/icon/t2m", "", http.StatusNotFound},
		{http.MethodPost, "/api/sync/gfs/pgrb2.0p25", `{"step":5}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rr := serve(a, tc.method, tc.target, tc.body)
		if rr.Code != tc.want {
			t.Errorf("%s %s %q: status %d, want %d", tc.method, tc.target, tc.body, rr.Code, tc.want)
		}
	}

	a.Syncer.Prober = prefixProber("never")
	rr := serve(a, http.MethodPost, "/api/sync/gfs/pgrb2.0p25", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("no recent run: status %d", rr.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	a, fetcher := newTestAPI(t)

	rr := serve(a, http.MethodGet, "/api/status/gfs/pgrb2.0p25?step=6", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Key      models.DatasetKey       `json:"key"`
		Decision models.DownloadDecision `json:"decision"`
		Hours    int                     `json:"hours"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Decision.Required || body.Decision.Reason != models.ReasonAbsent || body.Hours != 2 {
		t.Errorf("body = %+v", body)
	}
	if fetcher.calls != 0 {
		t.Error("status endpoint downloaded")
	}

	if rr := serve(a, http.MethodGet, "/api/status/gfs/pgrb2.0p25?step=x", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad step: status %d", rr.Code)
	}
}

func TestStatusHandlerIncludesLastDownload(t *testing.T) {
	a, _ := newTestAPI(t)
	run := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)
	a.History = staticHistory{versions: []models.DatasetVersion{
		{Model: "gfs", Category: "pgrb2.0p25", Step: 6, Directory: "atmos", RunTime: run, FileCount: 2},
	}}

	var body struct {
		Version *models.DatasetVersion `json:"version"`
	}
	rr := serve(a, http.MethodGet, "/api/status/gfs/pgrb2.0p25?step=6", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Version == nil || !body.Version.RunTime.Equal(run) || body.Version.FileCount != 2 {
		t.Errorf("version = %+v", body.Version)
	}

	body.Version = nil
	rr = serve(a, http.MethodGet, "/api/status/gfs/pgrb2.0p50?step=6", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Version != nil {
		t.Errorf("never downloaded dataset has version %+v", body.Version)
	}

	a.History = staticHistory{err: errors.New("disk gone")}
	if rr := serve(a, http.MethodGet, "/api/status/gfs/pgrb2.0p25?step=6", ""); rr.Code != http.StatusInternalServerError {
		t.Errorf("failing history: status %d", rr.Code)
	}
}

func TestRunsHandler(t *testing.T) {
	a, _ := newTestAPI(t)

	rr := serve(a, http.MethodGet, "/api/runs/gfs", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "2026-10-19T12Z") {
		t.Errorf("body = %s", rr.Body.String())
	}

	// no browsable index
	if rr := serve(a, http.MethodGet, "/api/runs/gem", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("gem: status %d", rr.Code)
	}
}

func TestVersionsHandler(t *testing.T) {
	a, _ := newTestAPI(t)

	rr := serve(a, http.MethodGet, "/api/versions", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("no history: %d %s", rr.Code, rr.Body.String())
	}

	a.History = staticHistory{versions: []models.DatasetVersion{{Model: "gfs", Category: "pgrb2.0p25", Step: 3}}}
	rr = serve(a, http.MethodGet, "/api/versions", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "pgrb2.0p25") {
		t.Errorf("history: %d %s", rr.Code, rr.Body.String())
	}

	a.History = staticHistory{err: errors.New("disk gone")}
	if rr := serve(a, http.MethodGet, "/api/versions", ""); rr.Code != http.StatusInternalServerError {
		t.Errorf("failing history: status %d", rr.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	a, _ := newTestAPI(t)

	if rr := serve(a, http.MethodGet, "/api/health", ""); rr.Code != http.StatusOK {
		t.Errorf("status %d", rr.Code)
	}
	a.Ping = func() error { return errors.New("connection refused") }
	if rr := serve(a, http.MethodGet, "/api/health", ""); rr.Code != http.StatusInternalServerError {
		t.Errorf("failing ping: status %d", rr.Code)
	}
}
