// services/history_service.go
package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jszwec/csvutil"
	parquet "github.com/parquet-go/parquet-go"

	"github.com/gewnthar/nwpsync/models"
	"github.com/gewnthar/nwpsync/utils"
)

// HistorySource lists recorded downloads.
type HistorySource interface {
	GetDatasetVersions() ([]models.DatasetVersion, error)
	// GetDatasetVersion returns nil when key was never downloaded.
	GetDatasetVersion(key models.DatasetKey) (*models.DatasetVersion, error)
}

// CSVLedger keeps the download history in a CSV file. It is used when no
// database is configured and holds one row per dataset key.
type CSVLedger struct {
	Path string

	mu sync.Mutex
}

func (l *CSVLedger) LogDatasetVersion(v models.DatasetVersion) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	versions, err := l.read()
	if err != nil {
		return err
	}

	replaced := false
	for i := range versions {
		if versions[i].Key() == v.Key() {
			v.ID = versions[i].ID
			v.CreatedAt = versions[i].CreatedAt
			v.UpdatedAt = v.DownloadedAt
			versions[i] = v
			replaced = true
			break
		}
	}
	if !replaced {
		v.ID = len(versions) + 1
		v.CreatedAt = v.DownloadedAt
		v.UpdatedAt = v.DownloadedAt
		versions = append(versions, v)
	}

	tmp := l.Path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(l.Path), 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create ledger file %s: %w", tmp, err)
	}
	if err := WriteHistoryCSV(f, versions); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, l.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace ledger %s: %w", l.Path, err)
	}
	utils.Log.Debug().Str("key", v.Key().String()).Str("ledger", l.Path).Msg("recorded dataset version")
	return nil
}

func (l *CSVLedger) GetDatasetVersions() ([]models.DatasetVersion, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *CSVLedger) GetDatasetVersion(key models.DatasetKey) (*models.DatasetVersion, error) {
	versions, err := l.GetDatasetVersions()
	if err != nil {
		return nil, err
	}
	for i := range versions {
		if versions[i].Key() == key {
			return &versions[i], nil
		}
	}
	return nil, nil
}

func (l *CSVLedger) read() ([]models.DatasetVersion, error) {
	f, err := os.Open(l.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", l.Path, err)
	}
	defer f.Close()
	return ReadHistoryCSV(f)
}

// ReadHistoryCSV decodes versions written by WriteHistoryCSV. The header row
// maps columns to the csv tags of models.DatasetVersion.
func ReadHistoryCSV(reader io.Reader) ([]models.DatasetVersion, error) {
	var versions []models.DatasetVersion

	decoder, err := csvutil.NewDecoder(csv.NewReader(reader))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to create CSV decoder for history: %w", err)
	}
	if err := decoder.Decode(&versions); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode history CSV data: %w", err)
	}
	return versions, nil
}

// WriteHistoryCSV writes versions with a header row.
func WriteHistoryCSV(w io.Writer, versions []models.DatasetVersion) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if len(versions) == 0 {
		if err := enc.EncodeHeader(models.DatasetVersion{}); err != nil {
			return fmt.Errorf("failed to write history header: %w", err)
		}
	}
	for _, v := range versions {
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode history row for %s: %w", v.Key(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// HistoryRow is the Parquet schema of an exported download record. Times are
// Unix milliseconds.
type HistoryRow struct {
	Model        string `parquet:"model"`
	Category     string `parquet:"category"`
	Step         int32  `parquet:"step"`
	Directory    string `parquet:"directory"`
	Members      int32  `parquet:"members"`
	RunTime      int64  `parquet:"run_time"`
	BaseURL      string `parquet:"base_url"`
	FileCount    int32  `parquet:"file_count"`
	TotalBytes   int64  `parquet:"total_bytes"`
	DownloadedAt int64  `parquet:"downloaded_at"`
}

func historyRows(versions []models.DatasetVersion) []HistoryRow {
	rows := make([]HistoryRow, 0, len(versions))
	for _, v := range versions {
		rows = append(rows, HistoryRow{
			Model:        v.Model,
			Category:     v.Category,
			Step:         int32(v.Step),
			Directory:    v.Directory,
			Members:      int32(v.Members),
			RunTime:      v.RunTime.UnixMilli(),
			BaseURL:      v.BaseURL,
			FileCount:    int32(v.FileCount),
			TotalBytes:   v.TotalBytes,
			DownloadedAt: v.DownloadedAt.UnixMilli(),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].DownloadedAt < rows[j].DownloadedAt })
	return rows
}

// WriteHistoryParquet atomically writes versions to path via a .tmp file.
func WriteHistoryParquet(path string, versions []models.DatasetVersion) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := parquet.NewGenericWriter[HistoryRow](f)
	if _, err := w.Write(historyRows(versions)); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
