// scraper/http_client.go
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"
)

// HTTPClient performs probes, downloads and index listings against provider
// file servers. Every request goes through the same proxy table.
type HTTPClient struct {
	client       *http.Client
	userAgent    string
	fetchTimeout time.Duration
}

type ClientOptions struct {
	Proxies      map[string]string // scheme -> proxy URL
	UserAgent    string
	FetchTimeout time.Duration // per file; 0 means none
}

// NewHTTPClient builds a client whose transport speaks HTTP/2 where the
// server offers it.
func NewHTTPClient(opts ClientOptions) (*HTTPClient, error) {
	proxies := make(map[string]*url.URL, len(opts.Proxies))
	for scheme, raw := range opts.Proxies {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s proxy %q: %w", scheme, raw, err)
		}
		proxies[scheme] = u
	}

	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			return proxies[req.URL.Scheme], nil
		},
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("failed to enable HTTP/2: %w", err)
	}

	return &HTTPClient{
		client:       &http.Client{Transport: transport},
		userAgent:    opts.UserAgent,
		fetchTimeout: opts.FetchTimeout,
	}, nil
}

func (c *HTTPClient) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make GET request to %s: %w", rawURL, err)
	}
	return resp, nil
}

// Exists issues a GET and closes the body unread. 200 means the file is
// published; 403 and 429 yield ErrRateLimited; server errors are returned as
// ErrUnexpectedStatus; anything else is "not there".
func (c *HTTPClient) Exists(ctx context.Context, rawURL string) (bool, error) {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests:
		return false, fmt.Errorf("%w: %s returned %d", ErrRateLimited, rawURL, resp.StatusCode)
	case resp.StatusCode >= 500:
		return false, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, rawURL, resp.StatusCode)
	default:
		return false, nil
	}
}
