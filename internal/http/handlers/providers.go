package handlers

import (
	"context"

	"github.com/jmylchreest/autoreach-api/internal/llm"
)

// ProviderLister reports provider status. *llm.Registry implements it.
type ProviderLister interface {
	Debug() []llm.ProviderStatus
}

// ProvidersHandler serves the provider registry view.
type ProvidersHandler struct {
	registry ProviderLister
}

// NewProvidersHandler creates a providers handler.
func NewProvidersHandler(registry ProviderLister) *ProvidersHandler {
	return &ProvidersHandler{registry: registry}
}

// ListProvidersOutput lists providers in priority order.
type ListProvidersOutput struct {
	Body struct {
		Providers []llm.ProviderStatus `json:"providers" doc:"Providers sorted by priority"`
	}
}

// ListProviders returns every provider with its enabled and configured state.
func (h *ProvidersHandler) ListProviders(ctx context.Context, input *struct{}) (*ListProvidersOutput, error) {
	out := &ListProvidersOutput{}
	out.Body.Providers = h.registry.Debug()
	return out, nil
}
