package repository

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/autoreach-api/internal/database/migrations"
	"github.com/jmylchreest/autoreach-api/internal/models"
)

// setupTestDB creates an in-memory database with all migrations applied.
// It is closed when the test completes.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	// Every pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// setupTestRepos creates all repositories using a test database.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	return NewRepositories(setupTestDB(t))
}

// newTestAnalysis inserts an analysis for userID and returns it.
func newTestAnalysis(t *testing.T, repos *Repositories, id, userID string, status models.AnalysisStatus, createdAt time.Time) *models.Analysis {
	t.Helper()
	a := &models.Analysis{
		ID:          id,
		UserID:      userID,
		CompanyName: "Acme",
		URL:         "https://acme.com",
		Status:      status,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if err := repos.Analysis.Create(t.Context(), a); err != nil {
		t.Fatalf("failed to insert test analysis: %v", err)
	}
	return a
}
