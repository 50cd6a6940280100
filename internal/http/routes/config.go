package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/autoreach-api/internal/http/mw"
	"github.com/jmylchreest/autoreach-api/internal/version"
)

// NewHumaConfig creates the shared Huma configuration for the API.
// This includes API metadata, security schemes, and tag definitions.
func NewHumaConfig(baseURL string) huma.Config {
	cfg := huma.DefaultConfig("AutoReach Monitor API", version.Get().Short())
	cfg.Info.Description = "Measures how AI assistants mention a brand against its competitors, and audits sites for answer engine optimization."

	// Disable $schema field in responses
	cfg.CreateHooks = nil

	if baseURL != "" {
		cfg.Servers = []*huma.Server{
			{URL: baseURL, Description: "API Server"},
		}
	}

	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		mw.SecurityScheme: {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "HS256 JWT whose subject is the user ID, sent as `Authorization: Bearer <token>`.",
		},
	}

	cfg.Tags = []*huma.Tag{
		{Name: "Analysis", Description: "Brand visibility analyses, streamed or queued", Extensions: map[string]any{"x-displayName": "Analysis"}},
		{Name: "AEO", Description: "Answer engine optimization audits", Extensions: map[string]any{"x-displayName": "AEO"}},
		{Name: "Providers", Description: "Configured AI providers", Extensions: map[string]any{"x-displayName": "Providers"}},
		{Name: "Webhooks", Description: "Inbound report callbacks", Extensions: map[string]any{"x-displayName": "Webhooks"}},
		{Name: "Health", Description: "System health and status", Extensions: map[string]any{"x-displayName": "Health"}},
	}

	return cfg
}
