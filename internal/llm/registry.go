package llm

import (
	"sort"
	"sync"

	"github.com/jmylchreest/autoreach-api/internal/config"
)

// UnknownPriority is the priority assigned to providers absent from the table.
const UnknownPriority = 999

// providerPriority is the fixed ordering used for provider selection and display.
var providerPriority = map[string]int{
	config.ProviderOpenAI:     1,
	config.ProviderAnthropic:  2,
	config.ProviderPerplexity: 3,
	config.ProviderGoogle:     4,
	config.ProviderOpenRouter: 5,
}

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ModelHandle identifies a concrete model on a concrete provider.
type ModelHandle struct {
	Provider string
	Model    string
}

// Provider describes a registered LLM provider.
type Provider struct {
	ID           string
	Name         string
	DefaultModel string
	Models       []ModelInfo
	Enabled      bool

	settings config.ProviderSettings
	priority int
}

// IsConfigured reports whether the provider has credentials.
func (p *Provider) IsConfigured() bool {
	return p.settings.APIKey != ""
}

// Model resolves a model ID to a handle. An empty ID selects the default model.
// Unknown IDs resolve to nothing.
func (p *Provider) Model(id string) (*ModelHandle, bool) {
	if id == "" {
		id = p.DefaultModel
	}
	if id == "" {
		return nil, false
	}
	if id == p.DefaultModel {
		return &ModelHandle{Provider: p.ID, Model: id}, true
	}
	for _, m := range p.Models {
		if m.ID == id {
			return &ModelHandle{Provider: p.ID, Model: id}, true
		}
	}
	return nil, false
}

// Settings returns the provider's configured settings.
func (p *Provider) Settings() config.ProviderSettings {
	return p.settings
}

// Priority returns the provider's sort priority.
func (p *Provider) Priority() int {
	return p.priority
}

// ProviderStatus is the debug view of a provider.
type ProviderStatus struct {
	Position     int    `json:"position"`
	ID           string `json:"id"`
	Name         string `json:"name"`
	Priority     int    `json:"priority"`
	Enabled      bool   `json:"enabled"`
	Configured   bool   `json:"configured"`
	DefaultModel string `json:"default_model"`
}

// Registry holds the provider descriptors built from explicit configuration.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*Provider
}

// NewRegistry builds a registry from provider settings.
func NewRegistry(cfg config.ProvidersConfig) *Registry {
	r := &Registry{providers: make(map[string]*Provider)}
	for _, s := range cfg.Providers {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(s config.ProviderSettings) {
	p := &Provider{
		ID:           s.ID,
		Name:         displayName(s.ID),
		DefaultModel: s.DefaultModel,
		Enabled:      s.Enabled,
		settings:     s,
		priority:     Priority(s.ID),
	}
	if s.Priority > 0 {
		p.priority = s.Priority
	}
	models := s.Models
	if len(models) == 0 {
		models = defaultModels[s.ID]
	}
	for _, m := range models {
		p.Models = append(p.Models, ModelInfo{ID: m, Name: m})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[s.ID] = p
}

// Get returns a provider by ID.
func (r *Registry) Get(id string) (*Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// ConfiguredProviders returns enabled providers with credentials, in priority order.
func (r *Registry) ConfiguredProviders() []*Provider {
	return r.filter(func(p *Provider) bool { return p.Enabled && p.IsConfigured() })
}

// EnabledProviders returns enabled providers regardless of credentials, in priority order.
func (r *Registry) EnabledProviders() []*Provider {
	return r.filter(func(p *Provider) bool { return p.Enabled })
}

// Debug lists every provider with its selection state.
func (r *Registry) Debug() []ProviderStatus {
	all := r.filter(func(*Provider) bool { return true })
	out := make([]ProviderStatus, 0, len(all))
	for i, p := range all {
		out = append(out, ProviderStatus{
			Position:     i + 1,
			ID:           p.ID,
			Name:         p.Name,
			Priority:     p.priority,
			Enabled:      p.Enabled,
			Configured:   p.IsConfigured(),
			DefaultModel: p.DefaultModel,
		})
	}
	return out
}

func (r *Registry) filter(keep func(*Provider) bool) []*Provider {
	r.mu.RLock()
	out := make([]*Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if keep(p) {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Priority returns the built-in priority for a provider ID.
func Priority(id string) int {
	if p, ok := providerPriority[id]; ok {
		return p
	}
	return UnknownPriority
}
