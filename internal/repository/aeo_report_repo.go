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

// SQLiteAEOReportRepository implements AEOReportRepository for SQLite/libsql.
type SQLiteAEOReportRepository struct {
	db *sql.DB
}

// NewSQLiteAEOReportRepository creates a new SQLite AEO report repository.
func NewSQLiteAEOReportRepository(db *sql.DB) *SQLiteAEOReportRepository {
	return &SQLiteAEOReportRepository{db: db}
}

const aeoReportColumns = `id, user_id, url, customer_name, report_json, summary_json, storage_key, created_at, schema_audit_json`

// html is written later by the report callback, so it is read but never inserted.
const aeoReportSelectColumns = aeoReportColumns + `, html`

func (r *SQLiteAEOReportRepository) Create(ctx context.Context, report *models.AEOReport) error {
	pages := report.Pages
	if pages == nil {
		pages = []models.AEOPageReport{}
	}
	reportJSON, err := json.Marshal(pages)
	if err != nil {
		return fmt.Errorf("failed to encode aeo report: %w", err)
	}
	var summaryJSON sql.NullString
	if report.Summary != nil {
		data, err := json.Marshal(report.Summary)
		if err != nil {
			return fmt.Errorf("failed to encode aeo summary: %w", err)
		}
		summaryJSON = sql.NullString{String: string(data), Valid: true}
	}
	var schemaJSON sql.NullString
	if report.SchemaAudit != nil {
		data, err := json.Marshal(report.SchemaAudit)
		if err != nil {
			return fmt.Errorf("failed to encode schema audit: %w", err)
		}
		schemaJSON = sql.NullString{String: string(data), Valid: true}
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO aeo_reports (`+aeoReportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID, report.UserID, report.URL, report.CustomerName, string(reportJSON),
		summaryJSON, nullString(report.StorageKey), formatTime(report.CreatedAt), schemaJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create aeo report: %w", err)
	}
	return nil
}

func (r *SQLiteAEOReportRepository) GetByID(ctx context.Context, id string) (*models.AEOReport, error) {
	report, err := scanAEOReport(r.db.QueryRowContext(ctx, `SELECT `+aeoReportSelectColumns+` FROM aeo_reports WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return report, err
}

func (r *SQLiteAEOReportRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.AEOReport, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+aeoReportSelectColumns+` FROM aeo_reports
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query aeo reports: %w", err)
	}
	defer rows.Close()

	var out []*models.AEOReport
	for rows.Next() {
		report, err := scanAEOReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	return out, rows.Err()
}

func (r *SQLiteAEOReportRepository) SetHTML(ctx context.Context, id, html string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE aeo_reports SET html = ? WHERE id = ?`, html, id)
	if err != nil {
		return false, fmt.Errorf("failed to set aeo report html: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteAEOReportRepository) DeleteOlderThan(ctx context.Context, before time.Time) ([]string, error) {
	cutoff := formatTime(before)
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM aeo_reports WHERE created_at < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query old aeo reports: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan aeo report id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if len(ids) == 0 {
		return nil, rows.Err()
	}

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM aeo_reports WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...); err != nil {
		return nil, fmt.Errorf("failed to delete old aeo reports: %w", err)
	}
	return ids, nil
}

func scanAEOReport(s scanner) (*models.AEOReport, error) {
	var report models.AEOReport
	var reportJSON string
	var summaryJSON, storageKey, schemaJSON, html sql.NullString
	var createdAt string

	err := s.Scan(&report.ID, &report.UserID, &report.URL, &report.CustomerName,
		&reportJSON, &summaryJSON, &storageKey, &createdAt, &schemaJSON, &html)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan aeo report: %w", err)
	}

	if err := json.Unmarshal([]byte(reportJSON), &report.Pages); err != nil {
		return nil, fmt.Errorf("failed to decode aeo report: %w", err)
	}
	if summaryJSON.Valid {
		var summary models.AEOSummary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
			return nil, fmt.Errorf("failed to decode aeo summary: %w", err)
		}
		report.Summary = &summary
	}
	if schemaJSON.Valid {
		var audit models.SchemaAudit
		if err := json.Unmarshal([]byte(schemaJSON.String), &audit); err != nil {
			return nil, fmt.Errorf("failed to decode schema audit: %w", err)
		}
		report.SchemaAudit = &audit
	}
	report.StorageKey = storageKey.String
	report.HTML = html.String
	report.CreatedAt = parseTime(createdAt)
	return &report, nil
}
