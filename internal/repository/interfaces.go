// Package repository defines repository interfaces for data access.
// user_id columns hold the JWT subject of the caller, or "local" when auth is disabled.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/autoreach-api/internal/models"
)

// AnalysisRepository defines methods for analysis data access.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *models.Analysis) error
	// GetByID returns nil, nil when the analysis does not exist.
	GetByID(ctx context.Context, id string) (*models.Analysis, error)
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Analysis, error)
	Update(ctx context.Context, analysis *models.Analysis) error
	// UpdateProgress records the last progress value and stage of a running analysis.
	UpdateProgress(ctx context.Context, id string, progress int, stage models.Stage) error
	// Delete removes an analysis owned by userID and reports whether a row was deleted.
	Delete(ctx context.Context, id, userID string) (bool, error)
	// DeleteOlderThan deletes finished analyses created before the cutoff and returns their IDs.
	DeleteOlderThan(ctx context.Context, before time.Time) ([]string, error)
}

// JobRepository defines methods for analysis job queue access.
type JobRepository interface {
	Create(ctx context.Context, job *models.AnalysisJob) error
	GetByID(ctx context.Context, id string) (*models.AnalysisJob, error)
	GetByAnalysisID(ctx context.Context, analysisID string) (*models.AnalysisJob, error)
	Update(ctx context.Context, job *models.AnalysisJob) error
	// ClaimPending atomically claims the oldest pending job for workerID.
	// It returns nil, nil when the queue is empty.
	ClaimPending(ctx context.Context, workerID string) (*models.AnalysisJob, error)
	// MarkStaleRunningJobsFailed fails jobs claimed longer than maxAge ago.
	MarkStaleRunningJobsFailed(ctx context.Context, maxAge time.Duration) (int64, error)
}

// AEOReportRepository defines methods for AEO report data access.
type AEOReportRepository interface {
	Create(ctx context.Context, report *models.AEOReport) error
	GetByID(ctx context.Context, id string) (*models.AEOReport, error)
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.AEOReport, error)
	// SetHTML stores the rendered report and reports whether the report exists.
	SetHTML(ctx context.Context, id, html string) (bool, error)
	DeleteOlderThan(ctx context.Context, before time.Time) ([]string, error)
}

// WebhookDeliveryRepository defines methods for webhook delivery tracking.
type WebhookDeliveryRepository interface {
	Create(ctx context.Context, delivery *models.WebhookDelivery) error
	Update(ctx context.Context, delivery *models.WebhookDelivery) error
	GetByID(ctx context.Context, id string) (*models.WebhookDelivery, error)
	GetBySubjectID(ctx context.Context, subjectID string) ([]*models.WebhookDelivery, error)
	DeleteBySubjectIDs(ctx context.Context, subjectIDs []string) error
}

// Repositories holds all repository instances.
type Repositories struct {
	Analysis        AnalysisRepository
	Job             JobRepository
	AEOReport       AEOReportRepository
	WebhookDelivery WebhookDeliveryRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Analysis:        NewSQLiteAnalysisRepository(db),
		Job:             NewSQLiteJobRepository(db),
		AEOReport:       NewSQLiteAEOReportRepository(db),
		WebhookDelivery: NewSQLiteWebhookDeliveryRepository(db),
	}
}
