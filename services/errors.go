// services/errors.go
package services

import "errors"

var (
	// ErrNoRecentRun means no candidate run's marker file exists within the
	// lookback window. Callers must abort rather than guess.
	ErrNoRecentRun = errors.New("no recent run found on remote server")

	// ErrCacheUnreadable wraps failures listing or parsing a cache directory.
	// The syncer treats it as an absent cache.
	ErrCacheUnreadable = errors.New("cache directory unreadable")

	// ErrTransferFailed is returned once a file transfer has exhausted its
	// retries.
	ErrTransferFailed = errors.New("transfer failed after retries")

	ErrUnknownModel   = errors.New("unknown model")
	ErrInvalidRequest = errors.New("invalid sync request")
)
