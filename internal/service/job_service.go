package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/autoreach-api/internal/config"
	"github.com/jmylchreest/autoreach-api/internal/models"
	"github.com/jmylchreest/autoreach-api/internal/repository"
)

// List paging bounds.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

var (
	// ErrAnalysisNotFound is returned when an analysis does not exist or belongs to another user.
	ErrAnalysisNotFound = errors.New("analysis not found")
	// ErrAnalysisNotReady is returned when reconciling an analysis that has no result.
	ErrAnalysisNotReady = errors.New("analysis has not completed")
	// ErrInvalidAnalysisRequest is returned when an analysis request names no company.
	ErrInvalidAnalysisRequest = errors.New("analysis request requires a company name")
)

// AnalysisArchiver copies finished analyses to object storage and returns the key.
type AnalysisArchiver interface {
	ArchiveAnalysis(ctx context.Context, id string, result *models.AnalysisResult) (string, error)
}

// JobService queues async analyses and manages stored ones.
type JobService struct {
	baseURL  string
	repos    *repository.Repositories
	archive  AnalysisArchiver
	notifier Notifier
	logger   *slog.Logger
}

// NewJobService creates a new job service.
func NewJobService(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) *JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		repos:   repos,
		logger:  logger.With("component", "jobs"),
	}
}

// SetCompletionHooks sets the archive and notifier used by SaveCompleted.
// Either may be nil.
func (s *JobService) SetCompletionHooks(archive AnalysisArchiver, notifier Notifier) {
	s.archive = archive
	s.notifier = notifier
}

// EnqueueAnalysisOutput is returned when an analysis is queued.
type EnqueueAnalysisOutput struct {
	AnalysisID string `json:"analysis_id"`
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	StatusURL  string `json:"status_url"`
}

// Enqueue stores a pending analysis and the job the worker will claim.
func (s *JobService) Enqueue(ctx context.Context, userID string, req models.AnalysisRequest) (*EnqueueAnalysisOutput, error) {
	if strings.TrimSpace(req.Company.Name) == "" {
		return nil, ErrInvalidAnalysisRequest
	}

	requestJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize analysis request: %w", err)
	}

	now := time.Now().UTC()
	analysis := &models.Analysis{
		ID:           ulid.Make().String(),
		UserID:       userID,
		CompanyName:  req.Company.Name,
		URL:          req.Company.URL,
		Status:       models.AnalysisStatusPending,
		UseWebSearch: req.UseWebSearch,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repos.Analysis.Create(ctx, analysis); err != nil {
		return nil, fmt.Errorf("failed to create analysis: %w", err)
	}

	job := &models.AnalysisJob{
		ID:          ulid.Make().String(),
		AnalysisID:  analysis.ID,
		UserID:      userID,
		Status:      models.JobStatusPending,
		RequestJSON: string(requestJSON),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repos.Job.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("analysis queued", "analysis_id", analysis.ID, "job_id", job.ID, "company", analysis.CompanyName)
	return &EnqueueAnalysisOutput{
		AnalysisID: analysis.ID,
		JobID:      job.ID,
		Status:     string(analysis.Status),
		StatusURL:  fmt.Sprintf("%s/api/v1/analyses/%s", s.baseURL, analysis.ID),
	}, nil
}

// SaveCompleted stores the result of an analysis that ran synchronously,
// archives it and fires analysis.completed. Archive and webhook failures are
// logged, not returned.
func (s *JobService) SaveCompleted(ctx context.Context, userID string, req models.AnalysisRequest, result *models.AnalysisResult) (*models.Analysis, error) {
	if result == nil {
		return nil, ErrAnalysisNotReady
	}

	now := time.Now().UTC()
	analysis := &models.Analysis{
		ID:           ulid.Make().String(),
		UserID:       userID,
		CompanyName:  req.Company.Name,
		URL:          req.Company.URL,
		Status:       models.AnalysisStatusCompleted,
		Progress:     100,
		Stage:        models.StageFinalizing,
		Result:       result,
		UseWebSearch: req.UseWebSearch,
		CreatedAt:    now,
		UpdatedAt:    now,
		CompletedAt:  &now,
	}

	if s.archive != nil {
		key, err := s.archive.ArchiveAnalysis(ctx, analysis.ID, result)
		if err != nil {
			s.logger.Warn("failed to archive analysis", "analysis_id", analysis.ID, "error", err)
		}
		analysis.StorageKey = key
	}

	if err := s.repos.Analysis.Create(ctx, analysis); err != nil {
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}

	if s.notifier != nil {
		payload := map[string]any{
			"analysis_id": analysis.ID,
			"company":     analysis.CompanyName,
			"status":      analysis.Status,
			"scores":      result.Scores,
			"storage_key": analysis.StorageKey,
		}
		if err := s.notifier.Notify(ctx, models.WebhookEventAnalysisCompleted, analysis.ID, payload); err != nil {
			s.logger.Warn("webhook notification failed", "analysis_id", analysis.ID, "error", err)
		}
	}

	s.logger.Info("analysis saved", "analysis_id", analysis.ID, "company", analysis.CompanyName)
	return analysis, nil
}

// Get returns an analysis owned by userID.
func (s *JobService) Get(ctx context.Context, userID, id string) (*models.Analysis, error) {
	analysis, err := s.repos.Analysis.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	if analysis == nil || analysis.UserID != userID {
		return nil, ErrAnalysisNotFound
	}
	return analysis, nil
}

// List returns a user's analyses, newest first.
func (s *JobService) List(ctx context.Context, userID string, limit, offset int) ([]*models.Analysis, error) {
	limit, offset = ClampPage(limit, offset)
	list, err := s.repos.Analysis.GetByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return list, nil
}

// Delete removes an analysis owned by userID along with its job.
func (s *JobService) Delete(ctx context.Context, userID, id string) error {
	deleted, err := s.repos.Analysis.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrAnalysisNotFound
	}
	s.logger.Info("analysis deleted", "analysis_id", id)
	return nil
}

// Reconcile relabels a completed analysis against the user's competitor
// list and persists the reconciled result.
func (s *JobService) Reconcile(ctx context.Context, userID, id string, competitors []models.CompetitorDetail) (*models.AnalysisResult, error) {
	analysis, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if analysis.Result == nil {
		return nil, ErrAnalysisNotReady
	}

	reconciled := Reconcile(*analysis.Result, competitors)
	analysis.Result = &reconciled
	if err := s.repos.Analysis.Update(ctx, analysis); err != nil {
		return nil, fmt.Errorf("failed to save reconciled analysis: %w", err)
	}
	return &reconciled, nil
}

// ClampPage applies the default and maximum page size.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
