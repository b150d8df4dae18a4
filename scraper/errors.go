// scraper/errors.go
package scraper

import "errors"

var (
	// ErrRateLimited is returned for HTTP 403 and 429. Data servers answer
	// over-polling clients this way, so callers should stop probing.
	ErrRateLimited = errors.New("rate limited by remote server")

	// ErrNotGrib means a transfer completed but the payload does not start
	// with a GRIB message header.
	ErrNotGrib = errors.New("payload is not a GRIB message")

	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrPermanent marks failures that repeating the request cannot fix,
	// such as a 404 for a file the run does not contain.
	ErrPermanent = errors.New("permanent failure")
)
