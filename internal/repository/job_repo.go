package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/autoreach-api/internal/models"
)

// SQLiteJobRepository implements JobRepository for SQLite.
type SQLiteJobRepository struct {
	db *sql.DB
}

// NewSQLiteJobRepository creates a new SQLite job repository.
func NewSQLiteJobRepository(db *sql.DB) *SQLiteJobRepository {
	return &SQLiteJobRepository{db: db}
}

const jobColumns = `id, analysis_id, user_id, status, request_json, attempts, worker_id,
	error_message, claimed_at, completed_at, created_at, updated_at`

func (r *SQLiteJobRepository) Create(ctx context.Context, job *models.AnalysisJob) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO analysis_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		job.ID, job.AnalysisID, job.UserID, job.Status, job.RequestJSON, job.Attempts,
		nullString(job.WorkerID), nullString(job.ErrorMessage), nullTime(job.ClaimedAt),
		nullTime(job.CompletedAt), formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *SQLiteJobRepository) GetByID(ctx context.Context, id string) (*models.AnalysisJob, error) {
	return r.getOne(ctx, `SELECT `+jobColumns+` FROM analysis_jobs WHERE id = ?`, id)
}

func (r *SQLiteJobRepository) GetByAnalysisID(ctx context.Context, analysisID string) (*models.AnalysisJob, error) {
	return r.getOne(ctx, `SELECT `+jobColumns+` FROM analysis_jobs WHERE analysis_id = ? ORDER BY created_at DESC LIMIT 1`, analysisID)
}

func (r *SQLiteJobRepository) getOne(ctx context.Context, query string, args ...any) (*models.AnalysisJob, error) {
	job, err := scanJob(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func (r *SQLiteJobRepository) Update(ctx context.Context, job *models.AnalysisJob) error {
	job.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE analysis_jobs SET status = ?, attempts = ?, worker_id = ?, error_message = ?,
			claimed_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`,
		job.Status, job.Attempts, nullString(job.WorkerID), nullString(job.ErrorMessage),
		nullTime(job.ClaimedAt), nullTime(job.CompletedAt), formatTime(job.UpdatedAt), job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func (r *SQLiteJobRepository) ClaimPending(ctx context.Context, workerID string) (*models.AnalysisJob, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// UPDATE ... RETURNING claims and reads in one statement so two workers
	// can never receive the same job.
	now := formatTime(time.Now())
	job, err := scanJob(tx.QueryRowContext(ctx, `
		UPDATE analysis_jobs
		SET status = 'running', worker_id = ?, attempts = attempts + 1, claimed_at = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM analysis_jobs
			WHERE status = 'pending'
			ORDER BY created_at ASC, id ASC
			LIMIT 1
		)
		RETURNING `+jobColumns,
		workerID, now, now,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return job, nil
}

// MarkStaleRunningJobsFailed fails jobs left running by a crashed or restarted worker.
func (r *SQLiteJobRepository) MarkStaleRunningJobsFailed(ctx context.Context, maxAge time.Duration) (int64, error) {
	now := time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE analysis_jobs
		SET status = ?, error_message = ?, completed_at = ?, updated_at = ?
		WHERE status = ? AND claimed_at < ?
	`,
		models.JobStatusFailed, "Job terminated: server restart or timeout",
		formatTime(now), formatTime(now), models.JobStatusRunning, formatTime(now.Add(-maxAge)),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale jobs as failed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanJob(s scanner) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	var workerID, errorMessage, claimedAt, completedAt sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(
		&job.ID, &job.AnalysisID, &job.UserID, &job.Status, &job.RequestJSON, &job.Attempts,
		&workerID, &errorMessage, &claimedAt, &completedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job.WorkerID = workerID.String
	job.ErrorMessage = errorMessage.String
	job.ClaimedAt = parseNullTime(claimedAt)
	job.CompletedAt = parseNullTime(completedAt)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	return &job, nil
}
