// scraper/download.go
package scraper

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gewnthar/nwpsync/utils"
)

var gribMagic = []byte("GRIB")

// partSuffix marks a file still being written. The cache inspector ignores
// it because it does not match any filename grammar.
const partSuffix = ".part"

// Fetch downloads rawURL to localSavePath and returns the bytes written.
func (c *HTTPClient) Fetch(ctx context.Context, rawURL, localSavePath string) (int64, error) {
	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
	}

	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusTooManyRequests:
		return 0, fmt.Errorf("%w: %s returned %d", ErrRateLimited, rawURL, resp.StatusCode)
	default:
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return 0, fmt.Errorf("%w: %w: %s returned %d", ErrPermanent, ErrUnexpectedStatus, rawURL, resp.StatusCode)
		}
		return 0, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, rawURL, resp.StatusCode)
	}

	n, err := SaveGrib(resp.Body, localSavePath)
	if err != nil {
		return 0, fmt.Errorf("failed to save %s: %w", rawURL, err)
	}
	utils.Log.Debug().Str("url", rawURL).Str("path", localSavePath).Int64("bytes", n).Msg("downloaded")
	return n, nil
}

// SaveGrib streams r into localSavePath. Data lands in a .part file that is
// renamed into place only after the copy succeeded and the payload was seen
// to start with a GRIB header, so readers never observe a partial file.
func SaveGrib(r io.Reader, localSavePath string) (int64, error) {
	dir := filepath.Dir(localSavePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	br := bufio.NewReader(r)
	head, err := br.Peek(len(gribMagic))
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("failed to read payload: %w", err)
	}
	if !bytes.Equal(head, gribMagic) {
		return 0, ErrNotGrib
	}

	tmp := localSavePath + partSuffix
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("failed to create local file %s: %w", tmp, err)
	}

	n, err := io.Copy(out, br)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to copy downloaded content to %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, localSavePath); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to move %s into place: %w", tmp, err)
	}
	return n, nil
}
