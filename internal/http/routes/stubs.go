package routes

import (
	"context"

	"github.com/jmylchreest/autoreach-api/internal/http/handlers"
)

// StubHandlers returns a Handlers instance with stub implementations.
// All handlers return nil responses - these are only used for OpenAPI generation
// where Huma extracts type information from function signatures.
func StubHandlers() *Handlers {
	return &Handlers{
		HealthCheck: stubHealthCheck,
		Livez:       stubLivez,
		Readyz:      stubReadyz,

		Providers: stubProviderHandlers{},
		Scrape:    stubScrapeHandlers{},
		Prompts:   stubPromptHandlers{},
		Analysis:  stubAnalysisHandlers{},
		AEO:       stubAEOHandlers{},

		// The real registration only defines operations with placeholder handlers.
		RawEndpoints: handlers.RegisterRawEndpoints,
	}
}

// --- Public endpoint stubs ---

func stubHealthCheck(_ context.Context, _ *struct{}) (*handlers.HealthCheckOutput, error) {
	return nil, nil
}

func stubLivez(_ context.Context, _ *struct{}) (*handlers.LivezOutput, error) {
	return nil, nil
}

func stubReadyz(_ context.Context, _ *struct{}) (*handlers.ReadyzOutput, error) {
	return nil, nil
}

// --- Provider handlers stub ---

type stubProviderHandlers struct{}

func (stubProviderHandlers) ListProviders(_ context.Context, _ *struct{}) (*handlers.ListProvidersOutput, error) {
	return nil, nil
}

// --- Scrape handlers stub ---

type stubScrapeHandlers struct{}

func (stubScrapeHandlers) Scrape(_ context.Context, _ *handlers.ScrapeInput) (*handlers.ScrapeOutput, error) {
	return nil, nil
}

// --- Prompt handlers stub ---

type stubPromptHandlers struct{}

func (stubPromptHandlers) GeneratePrompts(_ context.Context, _ *handlers.GeneratePromptsInput) (*handlers.GeneratePromptsOutput, error) {
	return nil, nil
}

// --- Analysis handlers stub ---

type stubAnalysisHandlers struct{}

func (stubAnalysisHandlers) CreateAnalysis(_ context.Context, _ *handlers.CreateAnalysisInput) (*handlers.CreateAnalysisOutput, error) {
	return nil, nil
}

func (stubAnalysisHandlers) ListAnalyses(_ context.Context, _ *handlers.ListAnalysesInput) (*handlers.ListAnalysesOutput, error) {
	return nil, nil
}

func (stubAnalysisHandlers) GetAnalysis(_ context.Context, _ *handlers.AnalysisIDInput) (*handlers.GetAnalysisOutput, error) {
	return nil, nil
}

func (stubAnalysisHandlers) DeleteAnalysis(_ context.Context, _ *handlers.AnalysisIDInput) (*struct{}, error) {
	return nil, nil
}

func (stubAnalysisHandlers) ReconcileAnalysis(_ context.Context, _ *handlers.ReconcileInput) (*handlers.ReconcileOutput, error) {
	return nil, nil
}

// --- AEO handlers stub ---

type stubAEOHandlers struct{}

func (stubAEOHandlers) RunAEO(_ context.Context, _ *handlers.RunAEOInput) (*handlers.AEOReportOutput, error) {
	return nil, nil
}

func (stubAEOHandlers) ListAEOReports(_ context.Context, _ *handlers.ListAEOReportsInput) (*handlers.ListAEOReportsOutput, error) {
	return nil, nil
}

func (stubAEOHandlers) GetAEOReport(_ context.Context, _ *handlers.AEOReportIDInput) (*handlers.AEOReportOutput, error) {
	return nil, nil
}
