package routes

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/autoreach-api/internal/http/mw"
)

// Register registers all API routes with the given Huma API instance.
// Pass real handler implementations for the main server, or stub implementations
// for OpenAPI generation.
func Register(api huma.API, h *Handlers) {
	// =========================================================================
	// Public Routes (no auth required)
	// =========================================================================

	mw.PublicGet(api, "/api/v1/health", h.HealthCheck,
		mw.WithTags("Health"),
		mw.WithSummary("Health check"),
		mw.WithOperationID("healthCheck"))

	// Kubernetes health checks (hidden from docs - internal use only)
	mw.HiddenGet(api, "/healthz", h.Livez)
	mw.HiddenGet(api, "/readyz", h.Readyz)

	// =========================================================================
	// Protected Routes (require bearer auth)
	// =========================================================================

	// --- Providers ---
	mw.ProtectedGet(api, "/api/v1/providers", h.Providers.ListProviders,
		mw.WithTags("Providers"),
		mw.WithSummary("List AI providers"),
		mw.WithDescription("Returns every known provider in priority order with its enabled and configured state."),
		mw.WithOperationID("listProviders"))

	// --- Analysis ---
	mw.ProtectedPost(api, "/api/v1/scrape", h.Scrape.Scrape,
		mw.WithTags("Analysis"),
		mw.WithSummary("Scrape a company profile"),
		mw.WithDescription("Fetches the site and extracts name, description, industry and competitors. Unreachable sites yield a fallback profile."),
		mw.WithOperationID("scrapeCompany"))
	mw.ProtectedPost(api, "/api/v1/prompts/generate", h.Prompts.GeneratePrompts,
		mw.WithTags("Analysis"),
		mw.WithSummary("Generate analysis prompts"),
		mw.WithDescription("Drafts categorized prompts for a company. Edit them and pass them back as customPrompts. Falls back to template prompts when no provider answers."),
		mw.WithOperationID("generatePrompts"))
	mw.ProtectedPost(api, "/api/v1/analyses", h.Analysis.CreateAnalysis,
		mw.WithTags("Analysis"),
		mw.WithSummary("Queue an analysis"),
		mw.WithDescription("Queues a brand analysis for the background worker. Poll GET /api/v1/analyses/{id} for progress."),
		mw.WithOperationID("createAnalysis"),
		mw.WithDefaultStatus(http.StatusAccepted))
	mw.ProtectedGet(api, "/api/v1/analyses", h.Analysis.ListAnalyses,
		mw.WithTags("Analysis"),
		mw.WithSummary("List analyses"),
		mw.WithOperationID("listAnalyses"))
	mw.ProtectedGet(api, "/api/v1/analyses/{id}", h.Analysis.GetAnalysis,
		mw.WithTags("Analysis"),
		mw.WithSummary("Get an analysis"),
		mw.WithOperationID("getAnalysis"))
	mw.ProtectedDelete(api, "/api/v1/analyses/{id}", h.Analysis.DeleteAnalysis,
		mw.WithTags("Analysis"),
		mw.WithSummary("Delete an analysis"),
		mw.WithOperationID("deleteAnalysis"))
	mw.ProtectedPost(api, "/api/v1/analyses/{id}/reconcile", h.Analysis.ReconcileAnalysis,
		mw.WithTags("Analysis"),
		mw.WithSummary("Reconcile competitors"),
		mw.WithDescription("Relabels a completed analysis against an edited competitor list and stores the result."),
		mw.WithOperationID("reconcileAnalysis"))

	// --- AEO ---
	mw.ProtectedPost(api, "/api/v1/aeo-reports", h.AEO.RunAEO,
		mw.WithTags("AEO"),
		mw.WithSummary("Run an AEO audit"),
		mw.WithDescription("Crawls up to five pages of the site and asks the auditor model for a per-page report."),
		mw.WithOperationID("runAeoAudit"))
	mw.ProtectedGet(api, "/api/v1/aeo-reports", h.AEO.ListAEOReports,
		mw.WithTags("AEO"),
		mw.WithSummary("List AEO reports"),
		mw.WithOperationID("listAeoReports"))
	mw.ProtectedGet(api, "/api/v1/aeo-reports/{id}", h.AEO.GetAEOReport,
		mw.WithTags("AEO"),
		mw.WithSummary("Get an AEO report"),
		mw.WithOperationID("getAeoReport"))

	// Raw HTTP handlers (SSE stream, signed callback) are served by chi;
	// RawEndpoints adds them to OpenAPI when set.
	if h.RawEndpoints != nil {
		h.RawEndpoints(api)
	}
}
