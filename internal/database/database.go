// Package database opens the libsql connection and applies migrations.
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/autoreach-api/internal/database/migrations"
)

// New opens the database.
//   - DATABASE_URL="file:autoreach.db" opens a local file.
//   - TURSO_URL with TURSO_AUTH_TOKEN turns the file into an embedded replica
//     synced with Turso.
//   - DATABASE_URL="http://127.0.0.1:8080" talks to a local `turso dev` server.
func New(dsn string) (*sql.DB, error) {
	tursoURL := os.Getenv("TURSO_URL")
	tursoToken := os.Getenv("TURSO_AUTH_TOKEN")

	var db *sql.DB
	if tursoURL != "" && tursoToken != "" {
		dbPath := strings.TrimPrefix(dsn, "file:")
		dbPath = strings.Split(dbPath, "?")[0]

		connector, err := libsql.NewEmbeddedReplicaConnector(dbPath, tursoURL,
			libsql.WithAuthToken(tursoToken),
			libsql.WithReadYourWrites(true),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Turso connector: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		var err error
		db, err = sql.Open("libsql", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Migrate applies pending migrations.
func Migrate(db *sql.DB, logger *slog.Logger) error {
	return migrations.Run(db, logger)
}

// Status returns applied and pending migrations.
func Status(db *sql.DB) ([]migrations.AppliedMigration, []migrations.Migration, error) {
	applied, err := migrations.Applied(db)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list applied migrations: %w", err)
	}
	pending, err := migrations.Pending(db)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list pending migrations: %w", err)
	}
	return applied, pending, nil
}
