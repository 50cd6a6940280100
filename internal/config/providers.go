package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider IDs known to the application.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGoogle     = "google"
	ProviderPerplexity = "perplexity"
	ProviderOpenRouter = "openrouter"
)

// ProviderSettings holds credentials and switches for a single LLM provider.
type ProviderSettings struct {
	ID           string
	APIKey       string
	BaseURL      string
	DefaultModel string
	Models       []string
	Enabled      bool
	Priority     int // 0 means "use the built-in priority table"
	RPM          int // outbound requests per minute
}

// ProvidersConfig is the explicit provider configuration handed to the registry.
type ProvidersConfig struct {
	Providers []ProviderSettings

	// GatewayChain is the provider order used for JSON generation calls.
	GatewayChain []string
	// GeminiModel overrides the default JSON model for the google provider.
	GeminiModel string
}

// LoadProviders reads provider credentials from the environment.
func LoadProviders() ProvidersConfig {
	rpm := getEnvInt("PROVIDER_RPM", 60)
	return ProvidersConfig{
		Providers: []ProviderSettings{
			{
				ID:           ProviderOpenAI,
				APIKey:       firstEnv("OPENAI_API_KEY", "OPENAI_API_KEY_WEB", "OPENAI_API_KEY_SERVER"),
				BaseURL:      getEnv("OPENAI_BASE_URL", ""),
				DefaultModel: getEnv("OPENAI_MODEL", "gpt-4o-mini"),
				Enabled:      getEnvBool("OPENAI_ENABLED", true),
				RPM:          rpm,
			},
			{
				ID:           ProviderAnthropic,
				APIKey:       getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL:      getEnv("ANTHROPIC_BASE_URL", ""),
				DefaultModel: getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
				Enabled:      getEnvBool("ANTHROPIC_ENABLED", true),
				RPM:          rpm,
			},
			{
				ID:           ProviderGoogle,
				APIKey:       getEnv("GOOGLE_GENERATIVE_AI_API_KEY", ""),
				BaseURL:      getEnv("GOOGLE_BASE_URL", ""),
				DefaultModel: getEnv("GOOGLE_MODEL", "gemini-2.5-flash"),
				Enabled:      getEnvBool("GOOGLE_ENABLED", true),
				RPM:          rpm,
			},
			{
				ID:           ProviderPerplexity,
				APIKey:       getEnv("PERPLEXITY_API_KEY", ""),
				BaseURL:      getEnv("PERPLEXITY_BASE_URL", ""),
				DefaultModel: getEnv("PERPLEXITY_MODEL", "sonar"),
				Enabled:      getEnvBool("PERPLEXITY_ENABLED", true),
				RPM:          rpm,
			},
			{
				ID:           ProviderOpenRouter,
				APIKey:       getEnv("OPENROUTER_API_KEY", ""),
				BaseURL:      getEnv("OPENROUTER_BASE_URL", ""),
				DefaultModel: getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
				Enabled:      getEnvBool("OPENROUTER_ENABLED", false),
				RPM:          rpm,
			},
		},
		GatewayChain: getEnvSlice("LLM_GATEWAY_CHAIN", []string{ProviderGoogle, ProviderOpenAI}),
		GeminiModel:  getEnv("GEMINI_MODEL", ""),
	}
}

// Get returns the settings for a provider ID.
func (p ProvidersConfig) Get(id string) (ProviderSettings, bool) {
	for _, s := range p.Providers {
		if s.ID == id {
			return s, true
		}
	}
	return ProviderSettings{}, false
}

// Configured returns the IDs of enabled providers that have credentials.
func (p ProvidersConfig) Configured() []string {
	var ids []string
	for _, s := range p.Providers {
		if s.Enabled && s.APIKey != "" {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// providerFile is the YAML shape of PROVIDERS_FILE.
type providerFile struct {
	Providers map[string]struct {
		Enabled      *bool    `yaml:"enabled"`
		Priority     int      `yaml:"priority"`
		BaseURL      string   `yaml:"base_url"`
		DefaultModel string   `yaml:"default_model"`
		Models       []string `yaml:"models"`
		RPM          int      `yaml:"rpm"`
	} `yaml:"providers"`
	GatewayChain []string `yaml:"gateway_chain"`
}

// ApplyFile overlays settings from a YAML providers file. API keys are never
// read from the file.
func (p *ProvidersConfig) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return p.ApplyYAML(data)
}

// ApplyYAML overlays settings from YAML bytes.
func (p *ProvidersConfig) ApplyYAML(data []byte) error {
	var f providerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse providers yaml: %w", err)
	}

	for i := range p.Providers {
		s := &p.Providers[i]
		o, ok := f.Providers[s.ID]
		if !ok {
			continue
		}
		if o.Enabled != nil {
			s.Enabled = *o.Enabled
		}
		if o.Priority > 0 {
			s.Priority = o.Priority
		}
		if o.BaseURL != "" {
			s.BaseURL = o.BaseURL
		}
		if o.DefaultModel != "" {
			s.DefaultModel = o.DefaultModel
		}
		if len(o.Models) > 0 {
			s.Models = o.Models
		}
		if o.RPM > 0 {
			s.RPM = o.RPM
		}
	}

	if len(f.GatewayChain) > 0 {
		chain := make([]string, 0, len(f.GatewayChain))
		for _, id := range f.GatewayChain {
			chain = append(chain, strings.ToLower(strings.TrimSpace(id)))
		}
		p.GatewayChain = chain
	}
	return nil
}
