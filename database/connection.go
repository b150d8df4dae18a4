// database/connection.go
package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MariaDB/MySQL driver

	"github.com/gewnthar/nwpsync/config"
	"github.com/gewnthar/nwpsync/utils"
)

var DB *sql.DB

// DSN builds the driver connection string.
// Format: username:password@protocol(address)/dbname?param=value
func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
	)
}

// InitDB initializes the database connection pool and makes sure the
// dataset_versions table exists.
func InitDB(cfg config.DatabaseConfig) error {
	var err error
	DB, err = sql.Open("mysql", DSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(10)
	DB.SetMaxIdleConns(10)
	DB.SetConnMaxLifetime(5 * time.Minute)

	if err = DB.Ping(); err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err = EnsureSchema(); err != nil {
		DB.Close()
		DB = nil
		return err
	}

	utils.Log.Info().Str("host", cfg.Host).Str("db", cfg.DBName).Msg("connected to database")
	return nil
}

// CloseDB closes the database connection pool.
// Typically called on application shutdown.
func CloseDB() {
	if DB != nil {
		DB.Close()
		DB = nil
		utils.Log.Info().Msg("database connection closed")
	}
}
