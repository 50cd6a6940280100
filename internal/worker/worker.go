// Package worker runs queued analyses in the background.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/autoreach-api/internal/models"
	"github.com/jmylchreest/autoreach-api/internal/repository"
	"github.com/jmylchreest/autoreach-api/internal/service"
)

// AnalysisRunner runs one analysis. *service.AnalysisService implements it.
type AnalysisRunner interface {
	PerformAnalysis(ctx context.Context, req models.AnalysisRequest, sink service.EventSink) (*models.AnalysisResult, error)
}

// Worker processes queued analysis jobs.
type Worker struct {
	jobs         repository.JobRepository
	analyses     repository.AnalysisRepository
	runner       AnalysisRunner
	archive      service.AnalysisArchiver
	notifier     service.Notifier
	pollInterval time.Duration
	concurrency  int
	staleJobAge  time.Duration
	instance     string
	stop         chan struct{}
	wg           sync.WaitGroup
	running      atomic.Int32
	logger       *slog.Logger
}

// Config holds worker configuration.
type Config struct {
	PollInterval time.Duration
	Concurrency  int
	// StaleJobAge is how long a job may stay running before Start fails it.
	StaleJobAge time.Duration
}

// New creates a new worker. archive and notifier may be nil.
func New(
	repos *repository.Repositories,
	runner AnalysisRunner,
	archive service.AnalysisArchiver,
	notifier service.Notifier,
	cfg Config,
	logger *slog.Logger,
) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 2
	}
	if cfg.StaleJobAge == 0 {
		cfg.StaleJobAge = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	host, _ := os.Hostname()

	w := &Worker{
		runner:       runner,
		archive:      archive,
		notifier:     notifier,
		pollInterval: cfg.PollInterval,
		concurrency:  cfg.Concurrency,
		staleJobAge:  cfg.StaleJobAge,
		instance:     fmt.Sprintf("%s-%d", host, os.Getpid()),
		stop:         make(chan struct{}),
		logger:       logger.With("component", "worker"),
	}
	if repos != nil {
		w.jobs = repos.Job
		w.analyses = repos.Analysis
	}
	return w
}

// Start fails jobs orphaned by a previous process and begins polling.
func (w *Worker) Start(ctx context.Context) {
	if n, err := w.jobs.MarkStaleRunningJobsFailed(ctx, w.staleJobAge); err != nil {
		w.logger.Error("failed to mark stale jobs", "error", err)
	} else if n > 0 {
		w.logger.Warn("marked stale jobs as failed", "count", n)
	}

	w.logger.Info("starting", "concurrency", w.concurrency, "poll_interval", w.pollInterval.String())
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i)
	}
}

// Stop gracefully stops the worker, waiting for in-flight jobs.
func (w *Worker) Stop() {
	w.logger.Info("stopping")
	close(w.stop)
	w.wg.Wait()
	w.logger.Info("stopped")
}

func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for w.processNextJob(ctx, workerID) {
				select {
				case <-w.stop:
					return
				default:
				}
			}
		}
	}
}

// processNextJob claims and runs one job. It reports whether a job was found.
func (w *Worker) processNextJob(ctx context.Context, workerID int) bool {
	job, err := w.jobs.ClaimPending(ctx, fmt.Sprintf("%s-%d", w.instance, workerID))
	if err != nil {
		w.logger.Error("failed to claim job", "worker_id", workerID, "error", err)
		return false
	}
	if job == nil {
		return false
	}

	w.logger.Info("processing job", "worker_id", workerID, "job_id", job.ID, "analysis_id", job.AnalysisID)
	w.running.Add(1)
	defer w.running.Add(-1)
	w.processJob(ctx, job)
	return true
}

// Busy reports whether any job is being processed.
func (w *Worker) Busy() bool {
	return w.running.Load() > 0
}

func (w *Worker) processJob(ctx context.Context, job *models.AnalysisJob) {
	analysis, err := w.analyses.GetByID(ctx, job.AnalysisID)
	if err != nil {
		w.failJob(ctx, job, nil, fmt.Sprintf("failed to load analysis: %v", err))
		return
	}
	if analysis == nil {
		w.failJob(ctx, job, nil, "analysis was deleted")
		return
	}

	var req models.AnalysisRequest
	if err := json.Unmarshal([]byte(job.RequestJSON), &req); err != nil {
		w.failJob(ctx, job, analysis, fmt.Sprintf("invalid analysis request: %v", err))
		return
	}

	analysis.Status = models.AnalysisStatusRunning
	analysis.Stage = models.StageInitializing
	if err := w.analyses.Update(ctx, analysis); err != nil {
		w.logger.Error("failed to mark analysis running", "analysis_id", analysis.ID, "error", err)
	}

	result, err := w.runner.PerformAnalysis(ctx, req, w.progressSink(analysis.ID))
	if err != nil {
		w.failJob(ctx, job, analysis, err.Error())
		return
	}

	now := time.Now().UTC()
	if w.archive != nil {
		key, err := w.archive.ArchiveAnalysis(ctx, analysis.ID, result)
		if err != nil {
			w.logger.Warn("failed to archive analysis", "analysis_id", analysis.ID, "error", err)
		}
		analysis.StorageKey = key
	}

	analysis.Status = models.AnalysisStatusCompleted
	analysis.Progress = 100
	analysis.Stage = models.StageFinalizing
	analysis.Result = result
	analysis.CompletedAt = &now
	if err := w.analyses.Update(ctx, analysis); err != nil {
		w.logger.Error("failed to store analysis result", "analysis_id", analysis.ID, "error", err)
	}

	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now
	if err := w.jobs.Update(ctx, job); err != nil {
		w.logger.Error("failed to update job", "job_id", job.ID, "error", err)
	}

	w.notify(ctx, models.WebhookEventAnalysisCompleted, analysis.ID, map[string]any{
		"analysis_id": analysis.ID,
		"company":     analysis.CompanyName,
		"status":      analysis.Status,
		"scores":      result.Scores,
		"storage_key": analysis.StorageKey,
	})

	w.logger.Info("completed job",
		"job_id", job.ID,
		"analysis_id", analysis.ID,
		"responses", len(result.Responses),
		"errors", len(result.Errors),
	)
}

// progressSink records the last progress value and stage of a running analysis.
func (w *Worker) progressSink(analysisID string) service.EventSink {
	return service.EventSinkFunc(func(ctx context.Context, event models.SSEEvent) error {
		data, ok := event.Data.(models.ProgressData)
		if !ok {
			return nil
		}
		stage := data.Stage
		if stage == "" {
			stage = event.Stage
		}
		if err := w.analyses.UpdateProgress(ctx, analysisID, data.Progress, stage); err != nil {
			w.logger.Warn("failed to record progress", "analysis_id", analysisID, "error", err)
		}
		return nil
	})
}

func (w *Worker) failJob(ctx context.Context, job *models.AnalysisJob, analysis *models.Analysis, errMsg string) {
	now := time.Now().UTC()
	job.Status = models.JobStatusFailed
	job.ErrorMessage = errMsg
	job.CompletedAt = &now
	if err := w.jobs.Update(ctx, job); err != nil {
		w.logger.Error("failed to update job", "job_id", job.ID, "error", err)
	}

	if analysis != nil {
		analysis.Status = models.AnalysisStatusFailed
		analysis.ErrorMessage = errMsg
		analysis.CompletedAt = &now
		if err := w.analyses.Update(ctx, analysis); err != nil {
			w.logger.Error("failed to update analysis", "analysis_id", analysis.ID, "error", err)
		}
	}

	w.notify(ctx, models.WebhookEventAnalysisFailed, job.AnalysisID, map[string]any{
		"analysis_id": job.AnalysisID,
		"status":      models.AnalysisStatusFailed,
		"error":       errMsg,
	})

	w.logger.Error("job failed", "job_id", job.ID, "analysis_id", job.AnalysisID, "error", errMsg)
}

func (w *Worker) notify(ctx context.Context, event models.WebhookEventType, subjectID string, payload any) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.Notify(ctx, event, subjectID, payload); err != nil {
		w.logger.Warn("webhook notification failed", "event", event, "subject_id", subjectID, "error", err)
	}
}
