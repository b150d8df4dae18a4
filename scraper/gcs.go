// scraper/gcs.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/gewnthar/nwpsync/utils"
)

// ObjectStore is the subset of a bucket API the GCS client needs.
type ObjectStore interface {
	// Exists reports whether the object is present.
	Exists(ctx context.Context, bucket, object string) (bool, error)
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

// GCSClient probes and downloads gs:// URLs, such as the ECMWF open data
// mirror in gs://ecmwf-open-data.
type GCSClient struct {
	store ObjectStore
	close func() error
}

// NewGCSClient connects anonymously; the open data buckets are public.
func NewGCSClient(ctx context.Context, userAgent string) (*GCSClient, error) {
	opts := []option.ClientOption{option.WithoutAuthentication()}
	if userAgent != "" {
		opts = append(opts, option.WithUserAgent(userAgent))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init GCS client: %w", err)
	}
	return &GCSClient{store: storageStore{client}, close: client.Close}, nil
}

// NewGCSClientWithStore wraps an existing store.
func NewGCSClientWithStore(store ObjectStore) *GCSClient {
	return &GCSClient{store: store}
}

func (g *GCSClient) Close() error {
	if g.close == nil {
		return nil
	}
	return g.close()
}

func (g *GCSClient) Exists(ctx context.Context, rawURL string) (bool, error) {
	bucket, object, err := ParseGCSURL(rawURL)
	if err != nil {
		return false, err
	}
	return g.store.Exists(ctx, bucket, object)
}

func (g *GCSClient) Fetch(ctx context.Context, rawURL, localSavePath string) (int64, error) {
	bucket, object, err := ParseGCSURL(rawURL)
	if err != nil {
		return 0, err
	}
	reader, err := g.store.NewReader(ctx, bucket, object)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return 0, fmt.Errorf("%w: failed to open %s: %w", ErrPermanent, rawURL, err)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", rawURL, err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			utils.Log.Warn().Err(err).Str("url", rawURL).Msg("failed to close GCS reader")
		}
	}()

	n, err := SaveGrib(reader, localSavePath)
	if err != nil {
		return 0, fmt.Errorf("failed to save %s: %w", rawURL, err)
	}
	return n, nil
}

// ParseGCSURL splits gs://bucket/path/to/object.
func ParseGCSURL(rawURL string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(rawURL, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URL: %s", rawURL)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs:// URL needs a bucket and an object: %s", rawURL)
	}
	return bucket, object, nil
}

type storageStore struct {
	client *storage.Client
}

func (s storageStore) Exists(ctx context.Context, bucket, object string) (bool, error) {
	_, err := s.client.Bucket(bucket).Object(object).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s storageStore) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return s.client.Bucket(bucket).Object(object).NewReader(ctx)
}
