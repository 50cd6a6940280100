package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/autoreach-api/internal/models"
)

// SQLiteWebhookDeliveryRepository implements WebhookDeliveryRepository for SQLite/libsql.
type SQLiteWebhookDeliveryRepository struct {
	db *sql.DB
}

// NewSQLiteWebhookDeliveryRepository creates a new SQLite webhook delivery repository.
func NewSQLiteWebhookDeliveryRepository(db *sql.DB) *SQLiteWebhookDeliveryRepository {
	return &SQLiteWebhookDeliveryRepository{db: db}
}

const deliveryColumns = `id, message_id, subject_id, event_type, url, payload_json, status_code,
	response_body, response_time_ms, status, error_message, attempt_number, max_attempts,
	created_at, delivered_at`

// Create creates a new webhook delivery record.
func (r *SQLiteWebhookDeliveryRepository) Create(ctx context.Context, d *models.WebhookDelivery) error {
	if d.ID == "" {
		d.ID = ulid.Make().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_deliveries (`+deliveryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID, d.MessageID, d.SubjectID, d.EventType, d.URL, d.PayloadJSON, d.StatusCode,
		nullString(d.ResponseBody), d.ResponseTimeMs, d.Status, nullString(d.ErrorMessage),
		d.AttemptNumber, d.MaxAttempts, formatTime(d.CreatedAt), nullTime(d.DeliveredAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook delivery: %w", err)
	}
	return nil
}

// Update records the outcome of an attempt.
func (r *SQLiteWebhookDeliveryRepository) Update(ctx context.Context, d *models.WebhookDelivery) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE webhook_deliveries SET
			status_code = ?, response_body = ?, response_time_ms = ?, status = ?,
			error_message = ?, attempt_number = ?, delivered_at = ?
		WHERE id = ?
	`,
		d.StatusCode, nullString(d.ResponseBody), d.ResponseTimeMs, d.Status,
		nullString(d.ErrorMessage), d.AttemptNumber, nullTime(d.DeliveredAt), d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update webhook delivery: %w", err)
	}
	return nil
}

// GetByID retrieves a webhook delivery by ID.
func (r *SQLiteWebhookDeliveryRepository) GetByID(ctx context.Context, id string) (*models.WebhookDelivery, error) {
	d, err := scanDelivery(r.db.QueryRowContext(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// GetBySubjectID returns every attempt for an analysis or report, oldest first.
func (r *SQLiteWebhookDeliveryRepository) GetBySubjectID(ctx context.Context, subjectID string) ([]*models.WebhookDelivery, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE subject_id = ? ORDER BY created_at ASC, attempt_number ASC
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook deliveries: %w", err)
	}
	defer rows.Close()

	var out []*models.WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteBySubjectIDs deletes deliveries for purged analyses and reports.
func (r *SQLiteWebhookDeliveryRepository) DeleteBySubjectIDs(ctx context.Context, subjectIDs []string) error {
	if len(subjectIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM webhook_deliveries WHERE subject_id IN (`+placeholders(len(subjectIDs))+`)`,
		stringArgs(subjectIDs)...)
	if err != nil {
		return fmt.Errorf("failed to delete webhook deliveries: %w", err)
	}
	return nil
}

func scanDelivery(s scanner) (*models.WebhookDelivery, error) {
	var d models.WebhookDelivery
	var statusCode, responseTimeMs sql.NullInt64
	var responseBody, errorMessage, deliveredAt sql.NullString
	var createdAt string

	err := s.Scan(
		&d.ID, &d.MessageID, &d.SubjectID, &d.EventType, &d.URL, &d.PayloadJSON, &statusCode,
		&responseBody, &responseTimeMs, &d.Status, &errorMessage, &d.AttemptNumber, &d.MaxAttempts,
		&createdAt, &deliveredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan webhook delivery: %w", err)
	}

	if statusCode.Valid {
		v := int(statusCode.Int64)
		d.StatusCode = &v
	}
	if responseTimeMs.Valid {
		v := int(responseTimeMs.Int64)
		d.ResponseTimeMs = &v
	}
	d.ResponseBody = responseBody.String
	d.ErrorMessage = errorMessage.String
	d.CreatedAt = parseTime(createdAt)
	d.DeliveredAt = parseNullTime(deliveredAt)
	return &d, nil
}
