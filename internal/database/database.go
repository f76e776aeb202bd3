// Package database provides the postgres connection pool and schema
// migration management.
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/felag/mailengine/internal/config"
)

// Open connects to postgres and verifies the connection.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
