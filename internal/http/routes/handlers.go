// Package routes provides shared route registration for the AutoReach API.
// This allows both the main server and the OpenAPI generator to use
// the same route definitions, so the served API and the OpenAPI document match.
package routes

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/autoreach-api/internal/http/handlers"
)

// ProviderHandlers defines the interface for the provider registry view.
type ProviderHandlers interface {
	ListProviders(ctx context.Context, input *struct{}) (*handlers.ListProvidersOutput, error)
}

// ScrapeHandlers defines the interface for company scraping.
type ScrapeHandlers interface {
	Scrape(ctx context.Context, input *handlers.ScrapeInput) (*handlers.ScrapeOutput, error)
}

// PromptHandlers defines the interface for standalone prompt generation.
type PromptHandlers interface {
	GeneratePrompts(ctx context.Context, input *handlers.GeneratePromptsInput) (*handlers.GeneratePromptsOutput, error)
}

// AnalysisHandlers defines the interface for async analysis operations.
type AnalysisHandlers interface {
	CreateAnalysis(ctx context.Context, input *handlers.CreateAnalysisInput) (*handlers.CreateAnalysisOutput, error)
	ListAnalyses(ctx context.Context, input *handlers.ListAnalysesInput) (*handlers.ListAnalysesOutput, error)
	GetAnalysis(ctx context.Context, input *handlers.AnalysisIDInput) (*handlers.GetAnalysisOutput, error)
	DeleteAnalysis(ctx context.Context, input *handlers.AnalysisIDInput) (*struct{}, error)
	ReconcileAnalysis(ctx context.Context, input *handlers.ReconcileInput) (*handlers.ReconcileOutput, error)
}

// AEOHandlers defines the interface for AEO audit operations.
type AEOHandlers interface {
	RunAEO(ctx context.Context, input *handlers.RunAEOInput) (*handlers.AEOReportOutput, error)
	ListAEOReports(ctx context.Context, input *handlers.ListAEOReportsInput) (*handlers.ListAEOReportsOutput, error)
	GetAEOReport(ctx context.Context, input *handlers.AEOReportIDInput) (*handlers.AEOReportOutput, error)
}

// Handlers aggregates all handler interfaces for route registration.
// For the main server, pass real handler implementations.
// For OpenAPI generation, pass stub implementations.
type Handlers struct {
	// Public endpoints
	HealthCheck func(ctx context.Context, input *struct{}) (*handlers.HealthCheckOutput, error)

	// Kubernetes health checks (hidden from docs)
	Livez  func(ctx context.Context, input *struct{}) (*handlers.LivezOutput, error)
	Readyz func(ctx context.Context, input *struct{}) (*handlers.ReadyzOutput, error)

	// Protected endpoint handlers
	Providers ProviderHandlers
	Scrape    ScrapeHandlers
	Prompts   PromptHandlers
	Analysis  AnalysisHandlers
	AEO       AEOHandlers

	// RawEndpoints documents chi-served endpoints. Leave nil when those
	// routes are mounted on the same router.
	RawEndpoints func(api huma.API)
}
