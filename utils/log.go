// utils/log.go
package utils

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process-wide logger. It writes JSON to stderr until SetupLogger
// is called.
var Log = zerolog.New(os.Stderr).With().Timestamp().Logger()

// SetupLogger sets the global level and, when pretty is true, switches to a
// human-readable console writer.
func SetupLogger(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if pretty {
		Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
		return
	}
	Log = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
