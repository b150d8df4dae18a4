// database/schema.go
package database

import "fmt"

const createDatasetVersions = `
CREATE TABLE IF NOT EXISTS dataset_versions (
	id            INT AUTO_INCREMENT PRIMARY KEY,
	model         VARCHAR(32)  NOT NULL,
	category      VARCHAR(64)  NOT NULL,
	step          INT          NOT NULL,
	directory     VARCHAR(64)  NOT NULL,
	members       INT          NOT NULL DEFAULT 0,
	run_time      DATETIME     NOT NULL,
	base_url      VARCHAR(512) NOT NULL,
	file_count    INT          NOT NULL DEFAULT 0,
	total_bytes   BIGINT       NOT NULL DEFAULT 0,
	downloaded_at DATETIME     NOT NULL,
	created_at    TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE KEY uq_dataset (model, category, step, directory)
)`

// EnsureSchema creates the tables this service writes to.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	if _, err := DB.Exec(createDatasetVersions); err != nil {
		return fmt.Errorf("failed to create dataset_versions table: %w", err)
	}
	return nil
}
