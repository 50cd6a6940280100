// Package models defines the domain models for the application.
// UserID fields hold the JWT subject of the caller, or "local" when auth is disabled.
package models

import (
	"time"
)

// AnalysisStatus represents the lifecycle of a stored analysis.
type AnalysisStatus string

const (
	AnalysisStatusPending   AnalysisStatus = "pending"
	AnalysisStatusRunning   AnalysisStatus = "running"
	AnalysisStatusCompleted AnalysisStatus = "completed"
	AnalysisStatusFailed    AnalysisStatus = "failed"
)

// Analysis is a persisted brand analysis run.
type Analysis struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	CompanyName  string          `json:"company_name"`
	URL          string          `json:"url"`
	Status       AnalysisStatus  `json:"status"`
	Progress     int             `json:"progress"`
	Stage        Stage           `json:"stage,omitempty"`
	Result       *AnalysisResult `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	UseWebSearch bool            `json:"use_web_search"`
	StorageKey   string          `json:"storage_key,omitempty"` // archive object key, empty when storage is disabled
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// JobStatus represents the status of a queued analysis job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// AnalysisRequest is the input of a brand analysis run.
type AnalysisRequest struct {
	Company                 Company            `json:"company"`
	CustomPrompts           []string           `json:"customPrompts,omitempty"`
	UserSelectedCompetitors []CompetitorDetail `json:"userSelectedCompetitors,omitempty"`
	UseWebSearch            bool               `json:"useWebSearch"`
}

// AnalysisJob is a queued analysis picked up by the worker.
type AnalysisJob struct {
	ID           string     `json:"id"`
	AnalysisID   string     `json:"analysis_id"`
	UserID       string     `json:"user_id"`
	Status       JobStatus  `json:"status"`
	RequestJSON  string     `json:"request_json"`
	Attempts     int        `json:"attempts"`
	WorkerID     string     `json:"worker_id,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// AEOReport is a persisted site audit.
type AEOReport struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	URL          string          `json:"url"`
	CustomerName string          `json:"customer_name"`
	Pages        []AEOPageReport `json:"pages"`
	Summary      *AEOSummary     `json:"summary,omitempty"`
	SchemaAudit  *SchemaAudit    `json:"schema_audit,omitempty"`
	StorageKey   string          `json:"storage_key,omitempty"`
	HTML         string          `json:"html,omitempty"` // rendered report delivered by the callback
	CreatedAt    time.Time       `json:"created_at"`
}

// WebhookEventType represents the type of webhook event.
type WebhookEventType string

const (
	WebhookEventAnalysisCompleted WebhookEventType = "analysis.completed"
	WebhookEventAnalysisFailed    WebhookEventType = "analysis.failed"
	WebhookEventAEOCompleted      WebhookEventType = "aeo.completed"
)

// WebhookDeliveryStatus represents the status of a webhook delivery.
type WebhookDeliveryStatus string

const (
	WebhookDeliveryStatusPending  WebhookDeliveryStatus = "pending"
	WebhookDeliveryStatusSuccess  WebhookDeliveryStatus = "success"
	WebhookDeliveryStatusFailed   WebhookDeliveryStatus = "failed"
	WebhookDeliveryStatusRetrying WebhookDeliveryStatus = "retrying"
)

// WebhookDelivery represents a single webhook delivery attempt.
type WebhookDelivery struct {
	ID             string                `json:"id"`
	MessageID      string                `json:"message_id"` // svix-id, shared by every attempt of one message
	SubjectID      string                `json:"subject_id"` // analysis or report ID
	EventType      string                `json:"event_type"`
	URL            string                `json:"url"`
	PayloadJSON    string                `json:"payload_json"`
	StatusCode     *int                  `json:"status_code,omitempty"`
	ResponseBody   string                `json:"response_body,omitempty"`
	ResponseTimeMs *int                  `json:"response_time_ms,omitempty"`
	Status         WebhookDeliveryStatus `json:"status"`
	ErrorMessage   string                `json:"error_message,omitempty"`
	AttemptNumber  int                   `json:"attempt_number"`
	MaxAttempts    int                   `json:"max_attempts"`
	CreatedAt      time.Time             `json:"created_at"`
	DeliveredAt    *time.Time            `json:"delivered_at,omitempty"`
}
