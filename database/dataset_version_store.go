// database/dataset_version_store.go
package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/gewnthar/nwpsync/models"
	"github.com/gewnthar/nwpsync/utils"
)

const selectDatasetVersions = `
	SELECT id, model, category, step, directory, members, run_time, base_url,
	       file_count, total_bytes, downloaded_at, created_at, updated_at
	FROM dataset_versions`

// LogDatasetVersion inserts or updates the record of the run cached for a
// dataset key.
func LogDatasetVersion(v models.DatasetVersion) error {
	if DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	query := `
		INSERT INTO dataset_versions (
			model, category, step, directory, members, run_time, base_url,
			file_count, total_bytes, downloaded_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE
			members = VALUES(members),
			run_time = VALUES(run_time),
			base_url = VALUES(base_url),
			file_count = VALUES(file_count),
			total_bytes = VALUES(total_bytes),
			downloaded_at = VALUES(downloaded_at),
			updated_at = NOW()
	`

	_, err := DB.Exec(query,
		v.Model, v.Category, v.Step, v.Directory, v.Members, v.RunTime.UTC(), v.BaseURL,
		v.FileCount, v.TotalBytes, v.DownloadedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to log dataset version for %s: %w", v.Key(), err)
	}

	utils.Log.Debug().Str("key", v.Key().String()).Time("run", v.RunTime).Msg("logged dataset version")
	return nil
}

// GetDatasetVersions retrieves every record, ordered by dataset key.
func GetDatasetVersions() ([]models.DatasetVersion, error) {
	if DB == nil {
		return nil, fmt.Errorf("database connection is not initialized")
	}

	rows, err := DB.Query(selectDatasetVersions + ` ORDER BY model, category, step, directory`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset_versions: %w", err)
	}
	defer rows.Close()

	var versions []models.DatasetVersion
	for rows.Next() {
		v, err := scanDatasetVersion(rows)
		if err != nil {
			utils.Log.Error().Err(err).Msg("failed to scan dataset_versions row")
			continue
		}
		versions = append(versions, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dataset_versions rows: %w", err)
	}
	return versions, nil
}

// GetDatasetVersion returns the record for one key, or nil when none exists.
func GetDatasetVersion(key models.DatasetKey) (*models.DatasetVersion, error) {
	if DB == nil {
		return nil, fmt.Errorf("database connection is not initialized")
	}

	row := DB.QueryRow(selectDatasetVersions+` WHERE model = ? AND category = ? AND step = ? AND directory = ?`,
		key.Model, key.Category, key.Step, key.Directory)
	v, err := scanDatasetVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset version for %s: %w", key, err)
	}
	return &v, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDatasetVersion(s scanner) (models.DatasetVersion, error) {
	var v models.DatasetVersion
	err := s.Scan(
		&v.ID, &v.Model, &v.Category, &v.Step, &v.Directory, &v.Members, &v.RunTime, &v.BaseURL,
		&v.FileCount, &v.TotalBytes, &v.DownloadedAt, &v.CreatedAt, &v.UpdatedAt,
	)
	return v, err
}

// Ledger adapts the package functions to the interfaces the sync service
// expects.
type Ledger struct{}

func (Ledger) LogDatasetVersion(v models.DatasetVersion) error { return LogDatasetVersion(v) }

func (Ledger) GetDatasetVersions() ([]models.DatasetVersion, error) { return GetDatasetVersions() }

func (Ledger) GetDatasetVersion(key models.DatasetKey) (*models.DatasetVersion, error) {
	return GetDatasetVersion(key)
}
