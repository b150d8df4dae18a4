// services/cache_inspector.go
package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gewnthar/nwpsync/models"
)

// InspectCache reports the newest cached file in dir. It returns nil when the
// directory is missing, empty, or holds no file matching grammar. Listing or
// stat failures are wrapped in ErrCacheUnreadable.
//
// The chosen file is the one with the highest forecast hour, which for
// zero-padded names is also the lexicographically last one.
func InspectCache(dir string, grammar *models.FilenameGrammar, maxForecastHour int) (*models.LocalDataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: listing %s: %v", ErrCacheUnreadable, dir, err)
	}

	var (
		best   os.DirEntry
		fields models.FilenameFields
	)
	// ReadDir returns entries sorted by name
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		f, ok := grammar.Parse(e.Name())
		if !ok {
			continue
		}
		if best == nil || f.ForecastHour >= fields.ForecastHour {
			best, fields = e, f
		}
	}
	if best == nil {
		return nil, nil
	}

	info, err := best.Info()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrCacheUnreadable, best.Name(), err)
	}

	return &models.LocalDataset{
		Path:         filepath.Join(dir, best.Name()),
		Filename:     best.Name(),
		RunHour:      fields.RunHour,
		ForecastHour: fields.ForecastHour,
		ModTime:      info.ModTime(),
		Complete:     fields.ForecastHour == maxForecastHour,
	}, nil
}
