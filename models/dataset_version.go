// models/dataset_version.go
package models

import "time"

// DatasetVersion records which run is cached for a dataset key and when it was
// downloaded. Members is the number of ensemble members fetched for
// per-member categories and 0 otherwise.
type DatasetVersion struct {
	ID           int       `db:"id" json:"id" csv:"id"`
	Model        string    `db:"model" json:"model" csv:"model"`
	Category     string    `db:"category" json:"category" csv:"category"`
	Step         int       `db:"step" json:"step" csv:"step"`
	Directory    string    `db:"directory" json:"directory" csv:"directory"`
	Members      int       `db:"members" json:"members" csv:"members"`
	RunTime      time.Time `db:"run_time" json:"run_time" csv:"run_time"`
	BaseURL      string    `db:"base_url" json:"base_url" csv:"base_url"`
	FileCount    int       `db:"file_count" json:"file_count" csv:"file_count"`
	TotalBytes   int64     `db:"total_bytes" json:"total_bytes" csv:"total_bytes"`
	DownloadedAt time.Time `db:"downloaded_at" json:"downloaded_at" csv:"downloaded_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at" csv:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at" csv:"updated_at"`
}

// Key returns the dataset key this version belongs to.
func (v DatasetVersion) Key() DatasetKey {
	return DatasetKey{Model: v.Model, Category: v.Category, Step: v.Step, Directory: v.Directory}
}
