package llm

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jmylchreest/autoreach-api/internal/config"
)

// Default request settings for provider calls.
const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 4096
	DefaultTimeout     = 120 * time.Second
)

var providerNames = map[string]string{
	config.ProviderOpenAI:     "OpenAI",
	config.ProviderAnthropic:  "Anthropic",
	config.ProviderGoogle:     "Google",
	config.ProviderPerplexity: "Perplexity",
	config.ProviderOpenRouter: "OpenRouter",
}

var defaultModels = map[string][]string{
	config.ProviderOpenAI:     {"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini"},
	config.ProviderAnthropic:  {"claude-3-5-haiku-latest", "claude-3-7-sonnet-latest", "claude-sonnet-4-0"},
	config.ProviderGoogle:     {"gemini-2.5-flash", "gemini-2.5-pro", "gemini-2.0-flash"},
	config.ProviderPerplexity: {"sonar", "sonar-pro"},
	config.ProviderOpenRouter: {"openai/gpt-4o-mini", "anthropic/claude-3.5-haiku", "google/gemini-2.5-flash"},
}

// searchModels are the models that ground answers in live web results.
// Anthropic and Google need tool declarations for search and are not listed.
var searchModels = map[string]string{
	config.ProviderOpenAI:     "gpt-4o-search-preview",
	config.ProviderPerplexity: "sonar",
	config.ProviderOpenRouter: "openai/gpt-4o-mini:online",
}

// SearchModel returns the web-search model for a provider, if it has one.
func SearchModel(id string) (string, bool) {
	m, ok := searchModels[id]
	return m, ok
}

func displayName(id string) string {
	if n, ok := providerNames[id]; ok {
		return n
	}
	return id
}

// GenerateRequest is a single text generation call.
type GenerateRequest struct {
	System      string
	Prompt      string
	Model       string // empty selects the provider default
	Temperature float32
	MaxTokens   int
	// JSON requests a JSON-only response where the provider supports it.
	JSON bool
	// WebSearch selects the provider's search model when Model is empty.
	WebSearch bool
}

// Generator is the capability every provider client implements.
type Generator interface {
	ID() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GeneratorOption customises generator construction.
type GeneratorOption func(*generatorOptions)

type generatorOptions struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// WithHTTPClient sets the HTTP client used for provider calls.
func WithHTTPClient(c *http.Client) GeneratorOption {
	return func(o *generatorOptions) { o.httpClient = c }
}

// WithLimiter overrides the per-provider rate limiter.
func WithLimiter(l *rate.Limiter) GeneratorOption {
	return func(o *generatorOptions) { o.limiter = l }
}

// NewGenerator builds the client for a provider. It returns ErrNotConfigured
// when the provider has no credentials.
func NewGenerator(p *Provider, opts ...GeneratorOption) (Generator, error) {
	if p == nil || !p.IsConfigured() {
		return nil, ErrNotConfigured
	}

	o := generatorOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if o.limiter == nil {
		o.limiter = newLimiter(p.settings.RPM)
	}

	switch p.ID {
	case config.ProviderAnthropic:
		return newAnthropicGenerator(p.settings, o), nil
	case config.ProviderGoogle:
		return newGeminiGenerator(p.settings, o), nil
	case config.ProviderOpenAI, config.ProviderPerplexity, config.ProviderOpenRouter:
		return newOpenAICompatGenerator(p.settings, o), nil
	default:
		return nil, ErrNotConfigured
	}
}

// newLimiter converts requests-per-minute into a token bucket.
func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := rpm / 20
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}

func applyDefaults(req GenerateRequest, defaultModel string) GenerateRequest {
	if req.Model == "" {
		req.Model = defaultModel
	}
	if req.Temperature == 0 {
		req.Temperature = DefaultTemperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	return req
}
