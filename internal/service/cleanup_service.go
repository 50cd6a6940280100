package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/autoreach-api/internal/repository"
)

// DefaultCleanupTimeout bounds one scheduled cleanup run.
const DefaultCleanupTimeout = 10 * time.Minute

// ArchivePurger deletes archived objects older than a maximum age.
// *StorageService implements it.
type ArchivePurger interface {
	DeleteOldArchives(ctx context.Context, maxAge time.Duration) (int, error)
}

// CleanupService purges analyses, AEO reports and their webhook deliveries
// past the retention period.
type CleanupService struct {
	analyses   repository.AnalysisRepository
	reports    repository.AEOReportRepository
	deliveries repository.WebhookDeliveryRepository
	archive    ArchivePurger
	retention  time.Duration
	logger     *slog.Logger
}

// CleanupServiceConfig holds configuration for creating a CleanupService.
type CleanupServiceConfig struct {
	Repos     *repository.Repositories
	Archive   ArchivePurger
	Retention time.Duration
	Logger    *slog.Logger
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(cfg CleanupServiceConfig) *CleanupService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupService{
		analyses:   cfg.Repos.Analysis,
		reports:    cfg.Repos.AEOReport,
		deliveries: cfg.Repos.WebhookDelivery,
		archive:    cfg.Archive,
		retention:  cfg.Retention,
		logger:     logger.With("component", "cleanup"),
	}
}

// CleanupResult contains the results of a cleanup operation.
type CleanupResult struct {
	AnalysesDeleted int
	ReportsDeleted  int
	ArchivesDeleted int
	Errors          []error
}

// Cleanup deletes finished analyses and AEO reports created before now minus
// the retention period, the webhook deliveries that reference them, and
// archived objects of the same age. Individual step failures are collected
// in the result rather than aborting the run.
func (s *CleanupService) Cleanup(ctx context.Context) *CleanupResult {
	result := &CleanupResult{}
	cutoff := time.Now().Add(-s.retention)

	s.logger.Info("starting cleanup",
		"retention", s.retention.String(),
		"cutoff", cutoff.Format(time.RFC3339),
	)

	var subjects []string

	analysisIDs, err := s.analyses.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to delete old analyses", "error", err)
		result.Errors = append(result.Errors, err)
	}
	result.AnalysesDeleted = len(analysisIDs)
	subjects = append(subjects, analysisIDs...)

	reportIDs, err := s.reports.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to delete old aeo reports", "error", err)
		result.Errors = append(result.Errors, err)
	}
	result.ReportsDeleted = len(reportIDs)
	subjects = append(subjects, reportIDs...)

	if len(subjects) > 0 {
		if err := s.deliveries.DeleteBySubjectIDs(ctx, subjects); err != nil {
			s.logger.Error("failed to delete webhook deliveries", "error", err)
			result.Errors = append(result.Errors, err)
		}
	}

	if s.archive != nil {
		count, err := s.archive.DeleteOldArchives(ctx, s.retention)
		if err != nil {
			s.logger.Error("failed to delete old archives", "error", err)
			result.Errors = append(result.Errors, err)
		}
		result.ArchivesDeleted = count
	}

	s.logger.Info("cleanup completed",
		"analyses_deleted", result.AnalysesDeleted,
		"reports_deleted", result.ReportsDeleted,
		"archives_deleted", result.ArchivesDeleted,
		"errors", len(result.Errors),
	)
	return result
}

// Schedule registers the cleanup on c using a standard five-field cron spec.
func (s *CleanupService) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultCleanupTimeout)
		defer cancel()
		s.Cleanup(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to schedule cleanup %q: %w", spec, err)
	}
	s.logger.Info("cleanup scheduled", "schedule", spec, "retention", s.retention.String())
	return id, nil
}
