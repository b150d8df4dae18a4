package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/storage"

	"github.com/gewnthar/nwpsync/models"
)

func newTestClient(t *testing.T, proxies map[string]string) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(ClientOptions{Proxies: proxies, UserAgent: "nwpsync-test", FetchTimeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestExistsStatusMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "nwpsync-test" {
			t.Errorf("user agent = %q", ua)
		}
		switch r.URL.Path {
		case "/ok":
			w.Write(bytes.Repeat([]byte("x"), 1<<16))
		case "/banned":
			w.WriteHeader(http.StatusForbidden)
		case "/slow-down":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, nil)
	ctx := context.Background()

	if ok, err := c.Exists(ctx, srv.URL+"/ok"); !ok || err != nil {
		t.Errorf("/ok: ok=%v err=%v", ok, err)
	}
	if ok, err := c.Exists(ctx, srv.URL+"/missing"); ok || err != nil {
		t.Errorf("/missing: ok=%v err=%v", ok, err)
	}
	for _, p := range []string{"/banned", "/slow-down"} {
		if _, err := c.Exists(ctx, srv.URL+p); !errors.Is(err, ErrRateLimited) {
			t.Errorf("%s: expected ErrRateLimited, got %v", p, err)
		}
	}
	if _, err := c.Exists(ctx, srv.URL+"/broken"); !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("/broken: expected ErrUnexpectedStatus, got %v", err)
	}
}

func TestProxyIsUsed(t *testing.T) {
	var seen string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.String()
		w.WriteHeader(http.StatusOK)
	}))
	defer proxy.Close()

	c := newTestClient(t, map[string]string{"http": proxy.URL})
	ok, err := c.Exists(context.Background(), "http://nomads.example.invalid/gfs.20261019/00/marker")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if seen != "http://nomads.example.invalid/gfs.20261019/00/marker" {
		t.Errorf("proxy saw %q", seen)
	}
}

func TestNewHTTPClientRejectsBadProxy(t *testing.T) {
	if _, err := NewHTTPClient(ClientOptions{Proxies: map[string]string{"http": "://bad"}}); err == nil {
		t.Error("expected error for malformed proxy")
	}
}

func TestFetchWritesAtomically(t *testing.T) {
	payload := append([]byte("GRIB"), bytes.Repeat([]byte{1}, 1024)...)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good.grib2":
			w.Write(payload)
		case "/html":
			fmt.Fprint(w, "<html>maintenance</html>")
		case "/busy":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, nil)
	dir := filepath.Join(t.TempDir(), "GFS", "pgrb2.0p25", "3", "atmos")

	dest := filepath.Join(dir, "good.grib2")
	n, err := c.Fetch(context.Background(), srv.URL+"/good.grib2", dest)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(payload)) {
		t.Errorf("wrote %d bytes, want %d", n, len(payload))
	}
	got, _ := os.ReadFile(dest)
	if !bytes.Equal(got, payload) {
		t.Error("payload mismatch")
	}

	bad := filepath.Join(dir, "bad.grib2")
	if _, err := c.Fetch(context.Background(), srv.URL+"/html", bad); !errors.Is(err, ErrNotGrib) {
		t.Errorf("expected ErrNotGrib, got %v", err)
	}
	_, err = c.Fetch(context.Background(), srv.URL+"/gone", bad)
	if !errors.Is(err, ErrUnexpectedStatus) || !errors.Is(err, ErrPermanent) {
		t.Errorf("expected a permanent ErrUnexpectedStatus, got %v", err)
	}
	_, err = c.Fetch(context.Background(), srv.URL+"/busy", bad)
	if !errors.Is(err, ErrUnexpectedStatus) || errors.Is(err, ErrPermanent) {
		t.Errorf("expected a transient ErrUnexpectedStatus, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "good.grib2" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("unexpected cache contents %v", names)
	}
}

const nomadsIndex = `<html><body><h1>Index of /pub/data/nccf/com/gfs/prod</h1>
<a href="?C=N;O=D">Name</a>
<a href="/pub/data/nccf/com/gfs/">Parent Directory</a>
<a href="gfs.20261018/">gfs.20261018/</a>
<a href="gfs.20261019/">gfs.20261019/</a>
<a href="status.txt">status.txt</a>
</body></html>`

func TestListRuns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/prod/":
			fmt.Fprint(w, nomadsIndex)
		case "/prod/gfs.20261018/":
			fmt.Fprint(w, `<a href="../">up</a><a href="00/">00/</a><a href="06/">06/</a><a href="12/">12/</a><a href="18/">18/</a>`)
		case "/prod/gfs.20261019/":
			fmt.Fprint(w, `<a href="00/">00/</a><a href="06/">06/</a>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, nil)

	names, err := c.ListIndex(context.Background(), srv.URL+"/prod/")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(names, ",") != "gfs.20261018,gfs.20261019,status.txt" {
		t.Errorf("ListIndex = %v", names)
	}

	runs, err := c.ListRuns(context.Background(), models.RunIndex{
		URL:         srv.URL + "/prod",
		RunPattern:  `^gfs\.(?P<year>\d{4})(?P<month>\d{2})(?P<day>\d{2})$`,
		HourPattern: `^(?P<hour>\d{2})$`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 6 {
		t.Fatalf("got %d runs: %v", len(runs), runs)
	}
	if runs[0].String() != "20261019 06z" || runs[5].String() != "20261018 00z" {
		t.Errorf("runs not newest first: %v", runs)
	}
}

func TestListRunsSingleLevel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="gfs.2026101900/">a</a><a href="gfs.2026101812/">b</a><a href="junk/">c</a>`)
	}))
	defer srv.Close()

	runs, err := newTestClient(t, nil).ListRuns(context.Background(), models.RunIndex{
		URL:        srv.URL,
		RunPattern: `^gfs\.(?P<year>\d{4})(?P<month>\d{2})(?P<day>\d{2})(?P<hour>\d{2})$`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Hour() != 0 || runs[1].Hour() != 12 {
		t.Errorf("unexpected runs %v", runs)
	}
}

type fakeStore struct {
	objects map[string][]byte
}

func (f fakeStore) Exists(ctx context.Context, bucket, object string) (bool, error) {
	_, ok := f.objects[bucket+"/"+object]
	return ok, nil
}

func (f fakeStore) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	b, ok := f.objects[bucket+"/"+object]
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func TestTransportDispatchesGCS(t *testing.T) {
	obj := "20261019/00z/ifs/0p25/oper/20261019000000-360h-oper-fc.grib2"
	store := fakeStore{objects: map[string][]byte{"ecmwf-open-data/" + obj: []byte("GRIB....")}}
	tr := &Transport{HTTP: newTestClient(t, nil), GCS: NewGCSClientWithStore(store)}
	ctx := context.Background()

	ok, err := tr.Exists(ctx, "gs://ecmwf-open-data/"+obj)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	ok, _ = tr.Exists(ctx, "gs://ecmwf-open-data/missing.grib2")
	if ok {
		t.Error("missing object reported present")
	}

	dest := filepath.Join(t.TempDir(), "f.grib2")
	n, err := tr.Fetch(ctx, "gs://ecmwf-open-data/"+obj, dest)
	if err != nil || n != 8 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if _, err := tr.Fetch(ctx, "gs://ecmwf-open-data/missing.grib2", dest); !errors.Is(err, ErrPermanent) {
		t.Errorf("missing object: expected ErrPermanent, got %v", err)
	}

	noGCS := &Transport{HTTP: newTestClient(t, nil)}
	if _, err := noGCS.Exists(ctx, "gs://bucket/obj"); err == nil {
		t.Error("expected error without a GCS client")
	}
}

func TestParseGCSURL(t *testing.T) {
	b, o, err := ParseGCSURL("gs://ecmwf-open-data/a/b.grib2")
	if err != nil || b != "ecmwf-open-data" || o != "a/b.grib2" {
		t.Errorf("got %q %q %v", b, o, err)
	}
	for _, bad := range []string{"https://x/y", "gs://bucket", "gs:///obj"} {
		if _, _, err := ParseGCSURL(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
