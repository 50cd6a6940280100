package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/autoreach-api/internal/models"
)

// SQLiteAnalysisRepository implements AnalysisRepository for SQLite/libsql.
type SQLiteAnalysisRepository struct {
	db *sql.DB
}

// NewSQLiteAnalysisRepository creates a new SQLite analysis repository.
func NewSQLiteAnalysisRepository(db *sql.DB) *SQLiteAnalysisRepository {
	return &SQLiteAnalysisRepository{db: db}
}

const analysisColumns = `id, user_id, company_name, url, status, progress, stage, result_json,
	error_message, use_web_search, storage_key, created_at, updated_at, completed_at`

func (r *SQLiteAnalysisRepository) Create(ctx context.Context, a *models.Analysis) error {
	resultJSON, err := encodeResult(a.Result)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analyses (`+analysisColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, a.UserID, a.CompanyName, a.URL, a.Status, a.Progress, nullString(string(a.Stage)),
		resultJSON, nullString(a.ErrorMessage), a.UseWebSearch, nullString(a.StorageKey),
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt), nullTime(a.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}
	return nil
}

func (r *SQLiteAnalysisRepository) GetByID(ctx context.Context, id string) (*models.Analysis, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *SQLiteAnalysisRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Analysis, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+analysisColumns+` FROM analyses
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var out []*models.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteAnalysisRepository) Update(ctx context.Context, a *models.Analysis) error {
	resultJSON, err := encodeResult(a.Result)
	if err != nil {
		return err
	}
	a.UpdatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx, `
		UPDATE analyses SET company_name = ?, url = ?, status = ?, progress = ?, stage = ?,
			result_json = ?, error_message = ?, storage_key = ?, updated_at = ?, completed_at = ?
		WHERE id = ?
	`,
		a.CompanyName, a.URL, a.Status, a.Progress, nullString(string(a.Stage)),
		resultJSON, nullString(a.ErrorMessage), nullString(a.StorageKey),
		formatTime(a.UpdatedAt), nullTime(a.CompletedAt), a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update analysis: %w", err)
	}
	return nil
}

func (r *SQLiteAnalysisRepository) UpdateProgress(ctx context.Context, id string, progress int, stage models.Stage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE analyses SET progress = ?, stage = COALESCE(?, stage), updated_at = ? WHERE id = ?
	`, progress, nullString(string(stage)), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update analysis progress: %w", err)
	}
	return nil
}

func (r *SQLiteAnalysisRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete analysis: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteOlderThan deletes completed and failed analyses created before the
// cutoff. Their jobs go with them through the foreign key cascade.
func (r *SQLiteAnalysisRepository) DeleteOlderThan(ctx context.Context, before time.Time) ([]string, error) {
	cutoff := formatTime(before)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM analyses WHERE created_at < ? AND status IN ('completed', 'failed')`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query old analyses: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan analysis id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysis ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM analyses WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...); err != nil {
		return nil, fmt.Errorf("failed to delete old analyses: %w", err)
	}
	return ids, nil
}

func encodeResult(result *models.AnalysisResult) (sql.NullString, error) {
	if result == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode analysis result: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func scanAnalysis(s scanner) (*models.Analysis, error) {
	var a models.Analysis
	var stage, resultJSON, errorMessage, storageKey, completedAt sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(
		&a.ID, &a.UserID, &a.CompanyName, &a.URL, &a.Status, &a.Progress, &stage, &resultJSON,
		&errorMessage, &a.UseWebSearch, &storageKey, &createdAt, &updatedAt, &completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan analysis: %w", err)
	}

	a.Stage = models.Stage(stage.String)
	a.ErrorMessage = errorMessage.String
	a.StorageKey = storageKey.String
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	a.CompletedAt = parseNullTime(completedAt)

	if resultJSON.Valid && resultJSON.String != "" {
		var result models.AnalysisResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("failed to decode analysis result: %w", err)
		}
		a.Result = &result
	}
	return &a, nil
}
