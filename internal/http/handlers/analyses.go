package handlers

import (
	"context"
	"time"

	"github.com/jmylchreest/autoreach-api/internal/models"
	"github.com/jmylchreest/autoreach-api/internal/service"
)

// AnalysisStore queues and manages stored analyses. *service.JobService implements it.
type AnalysisStore interface {
	Enqueue(ctx context.Context, userID string, req models.AnalysisRequest) (*service.EnqueueAnalysisOutput, error)
	Get(ctx context.Context, userID, id string) (*models.Analysis, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*models.Analysis, error)
	Delete(ctx context.Context, userID, id string) error
	Reconcile(ctx context.Context, userID, id string, competitors []models.CompetitorDetail) (*models.AnalysisResult, error)
}

// AnalysisHandler handles the async analysis endpoints.
type AnalysisHandler struct {
	store   AnalysisStore
	scraper CompanyScraper
}

// NewAnalysisHandler creates an analysis handler.
func NewAnalysisHandler(store AnalysisStore, scraper CompanyScraper) *AnalysisHandler {
	return &AnalysisHandler{store: store, scraper: scraper}
}

// CreateAnalysisInput queues an analysis.
type CreateAnalysisInput struct {
	Body AnalysisRequestBody
}

// CreateAnalysisOutput identifies the queued analysis.
type CreateAnalysisOutput struct {
	Body *service.EnqueueAnalysisOutput
}

// CreateAnalysis resolves the company and queues the analysis for the worker.
func (h *AnalysisHandler) CreateAnalysis(ctx context.Context, input *CreateAnalysisInput) (*CreateAnalysisOutput, error) {
	userID, err := requireUserID(ctx)
	if err != nil {
		return nil, err
	}

	req, err := resolveAnalysisRequest(ctx, h.scraper, input.Body)
	if err != nil {
		return nil, serviceError("resolve company", err)
	}
	out, err := h.store.Enqueue(ctx, userID, req)
	if err != nil {
		return nil, serviceError("queue analysis", err)
	}
	return &CreateAnalysisOutput{Body: out}, nil
}

// ListAnalysesInput pages through the caller's analyses.
type ListAnalysesInput struct {
	Limit  int `query:"limit" minimum:"0" maximum:"100" default:"20" doc:"Maximum number of analyses"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Number of analyses to skip"`
}

// AnalysisSummary is an analysis without its result payload.
type AnalysisSummary struct {
	ID           string                `json:"id"`
	CompanyName  string                `json:"company_name"`
	URL          string                `json:"url,omitempty"`
	Status       models.AnalysisStatus `json:"status"`
	Progress     int                   `json:"progress"`
	Stage        models.Stage          `json:"stage,omitempty"`
	OverallScore *float64              `json:"overall_score,omitempty" doc:"Brand overall score once completed"`
	ErrorMessage string                `json:"error_message,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
}

// ListAnalysesOutput is a page of analyses, newest first.
type ListAnalysesOutput struct {
	Body struct {
		Analyses []AnalysisSummary `json:"analyses"`
		Limit    int               `json:"limit"`
		Offset   int               `json:"offset"`
	}
}

// ListAnalyses returns the caller's analyses, newest first.
func (h *AnalysisHandler) ListAnalyses(ctx context.Context, input *ListAnalysesInput) (*ListAnalysesOutput, error) {
	userID, err := requireUserID(ctx)
	if err != nil {
		return nil, err
	}

	limit, offset := service.ClampPage(input.Limit, input.Offset)
	list, err := h.store.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, serviceError("list analyses", err)
	}

	out := &ListAnalysesOutput{}
	out.Body.Limit = limit
	out.Body.Offset = offset
	out.Body.Analyses = make([]AnalysisSummary, 0, len(list))
	for _, a := range list {
		out.Body.Analyses = append(out.Body.Analyses, summarizeAnalysis(a))
	}
	return out, nil
}

func summarizeAnalysis(a *models.Analysis) AnalysisSummary {
	s := AnalysisSummary{
		ID:           a.ID,
		CompanyName:  a.CompanyName,
		URL:          a.URL,
		Status:       a.Status,
		Progress:     a.Progress,
		Stage:        a.Stage,
		ErrorMessage: a.ErrorMessage,
		CreatedAt:    a.CreatedAt,
		CompletedAt:  a.CompletedAt,
	}
	if a.Result != nil {
		score := a.Result.Scores.OverallScore
		s.OverallScore = &score
	}
	return s
}

// AnalysisIDInput names one analysis.
type AnalysisIDInput struct {
	ID string `path:"id" doc:"Analysis ID"`
}

// GetAnalysisOutput is a stored analysis with its result once completed.
type GetAnalysisOutput struct {
	Body *models.Analysis
}

// GetAnalysis returns one of the caller's analyses.
func (h *AnalysisHandler) GetAnalysis(ctx context.Context, input *AnalysisIDInput) (*GetAnalysisOutput, error) {
	userID, err := requireUserID(ctx)
	if err != nil {
		return nil, err
	}
	analysis, err := h.store.Get(ctx, userID, input.ID)
	if err != nil {
		return nil, serviceError("get analysis", err)
	}
	return &GetAnalysisOutput{Body: analysis}, nil
}

// DeleteAnalysis removes one of the caller's analyses and its job.
func (h *AnalysisHandler) DeleteAnalysis(ctx context.Context, input *AnalysisIDInput) (*struct{}, error) {
	userID, err := requireUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.store.Delete(ctx, userID, input.ID); err != nil {
		return nil, serviceError("delete analysis", err)
	}
	return nil, nil
}

// ReconcileInput relabels an analysis against an edited competitor list.
type ReconcileInput struct {
	ID   string `path:"id" doc:"Analysis ID"`
	Body struct {
		Competitors []models.CompetitorDetail `json:"competitors" minItems:"1" doc:"The user's competitor list"`
	}
}

// ReconcileOutput is the reconciled result, which is also persisted.
type ReconcileOutput struct {
	Body *models.AnalysisResult
}

// ReconcileAnalysis merges stored rankings onto the given competitor list.
func (h *AnalysisHandler) ReconcileAnalysis(ctx context.Context, input *ReconcileInput) (*ReconcileOutput, error) {
	userID, err := requireUserID(ctx)
	if err != nil {
		return nil, err
	}
	result, err := h.store.Reconcile(ctx, userID, input.ID, service.SanitizeCompetitors(input.Body.Competitors))
	if err != nil {
		return nil, serviceError("reconcile analysis", err)
	}
	return &ReconcileOutput{Body: result}, nil
}
