// scraper/transport.go
package scraper

import (
	"context"
	"fmt"
	"strings"
)

// Transport routes gs:// URLs to object storage and everything else to HTTP.
type Transport struct {
	HTTP *HTTPClient
	GCS  *GCSClient // optional
}

func (t *Transport) Exists(ctx context.Context, rawURL string) (bool, error) {
	if strings.HasPrefix(rawURL, "gs://") {
		if t.GCS == nil {
			return false, fmt.Errorf("no object storage client configured for %s", rawURL)
		}
		return t.GCS.Exists(ctx, rawURL)
	}
	return t.HTTP.Exists(ctx, rawURL)
}

func (t *Transport) Fetch(ctx context.Context, rawURL, localSavePath string) (int64, error) {
	if strings.HasPrefix(rawURL, "gs://") {
		if t.GCS == nil {
			return 0, fmt.Errorf("no object storage client configured for %s", rawURL)
		}
		return t.GCS.Fetch(ctx, rawURL, localSavePath)
	}
	return t.HTTP.Fetch(ctx, rawURL, localSavePath)
}
