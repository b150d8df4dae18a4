package database

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/gewnthar/nwpsync/config"
	"github.com/gewnthar/nwpsync/models"
)

func withMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	DB = db
	t.Cleanup(func() {
		DB = nil
		db.Close()
	})
	return mock
}

var versionColumns = []string{
	"id", "model", "category", "step", "directory", "members", "run_time", "base_url",
	"file_count", "total_bytes", "downloaded_at", "created_at", "updated_at",
}

func TestLogDatasetVersion(t *testing.T) {
	mock := withMockDB(t)
	run := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	v := models.DatasetVersion{
		Model: "gefs", Category: "members", Step: 6, Directory: "atmos", Members: 30,
		RunTime: run, BaseURL: "https://example.test/", FileCount: 1950, TotalBytes: 42,
		DownloadedAt: run.Add(6 * time.Hour),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dataset_versions")).
		WithArgs("gefs", "members", 6, "atmos", 30, run, "https://example.test/", 1950, int64(42), run.Add(6*time.Hour)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := LogDatasetVersion(v); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetDatasetVersions(t *testing.T) {
	mock := withMockDB(t)
	run := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(versionColumns).
		AddRow(1, "gfs", "pgrb2.0p25", 3, "atmos", 0, run, "https://a/", 129, int64(10), run, run, run).
		AddRow(2, "gfs", "pgrb2.0p50", 3, "atmos", 0, run, "https://b/", 129, int64(20), run, run, run)
	mock.ExpectQuery(regexp.QuoteMeta("FROM dataset_versions ORDER BY")).WillReturnRows(rows)

	versions, err := GetDatasetVersions()
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 || versions[1].Category != "pgrb2.0p50" || versions[1].TotalBytes != 20 {
		t.Errorf("versions = %+v", versions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetDatasetVersion(t *testing.T) {
	mock := withMockDB(t)
	key := models.DatasetKey{Model: "gfs", Category: "pgrb2.0p25", Step: 3, Directory: "atmos"}
	run := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE model = ?")).
		WithArgs("gfs", "pgrb2.0p25", 3, "atmos").
		WillReturnRows(sqlmock.NewRows(versionColumns).
			AddRow(7, "gfs", "pgrb2.0p25", 3, "atmos", 0, run, "https://a/", 129, int64(10), run, run, run))

	v, err := GetDatasetVersion(key)
	if err != nil {
		t.Fatal(err)
	}
	if v == nil || v.ID != 7 || !v.RunTime.Equal(run) {
		t.Errorf("version = %+v", v)
	}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE model = ?")).
		WillReturnError(sql.ErrNoRows)
	v, err = GetDatasetVersion(key)
	if err != nil || v != nil {
		t.Errorf("missing key: v=%v err=%v", v, err)
	}
}

func TestStoreRequiresConnection(t *testing.T) {
	DB = nil
	if err := LogDatasetVersion(models.DatasetVersion{}); err == nil {
		t.Error("expected error without a connection")
	}
	if _, err := GetDatasetVersions(); err == nil {
		t.Error("expected error without a connection")
	}
}

func TestEnsureSchema(t *testing.T) {
	mock := withMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS dataset_versions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := EnsureSchema(); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDSN(t *testing.T) {
	got := DSN(config.DatabaseConfig{Host: "db", Port: "3306", User: "u", Password: "p", DBName: "nwp"})
	if got != "u:p@tcp(db:3306)/nwp?parseTime=true&loc=UTC" {
		t.Errorf("DSN = %q", got)
	}
}
