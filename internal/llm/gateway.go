package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jmylchreest/autoreach-api/internal/config"
)

// JSONSystemPrompt frames JSON-only generation calls.
const JSONSystemPrompt = "You are a strict JSON generator. Always output only valid JSON with no extra commentary."

// GatewayTemperature is the sampling temperature for JSON calls.
const GatewayTemperature = 0.2

var credentialEnv = map[string]string{
	config.ProviderOpenAI:     "OPENAI_API_KEY",
	config.ProviderAnthropic:  "ANTHROPIC_API_KEY",
	config.ProviderGoogle:     "GOOGLE_GENERATIVE_AI_API_KEY",
	config.ProviderPerplexity: "PERPLEXITY_API_KEY",
	config.ProviderOpenRouter: "OPENROUTER_API_KEY",
}

// Result is the outcome of a JSON generation call. It never carries a Go error:
// failures are reported through OK and Error.
type Result struct {
	OK       bool   `json:"ok"`
	Content  string `json:"content"`
	Error    string `json:"error,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// JSONCaller is the capability consumed by components that need JSON output.
type JSONCaller interface {
	CallJSON(ctx context.Context, prompt, modelHint string) Result
}

// Gateway sends JSON-producing prompts to a primary provider with a single
// fallback hop.
type Gateway struct {
	clients     *Clients
	chain       []string
	geminiModel string
	logger      *slog.Logger
}

// NewGateway creates a gateway over the given clients. The chain lists
// provider IDs; the first is primary and the first configured one after it
// is the fallback.
func NewGateway(clients *Clients, pc config.ProvidersConfig, logger *slog.Logger) *Gateway {
	chain := pc.GatewayChain
	if len(chain) == 0 {
		chain = []string{config.ProviderGoogle, config.ProviderOpenAI}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		clients:     clients,
		chain:       chain,
		geminiModel: pc.GeminiModel,
		logger:      logger.With("component", "llm_gateway"),
	}
}

// CallJSON runs prompt against the primary provider and, on any failure,
// once against the fallback provider if it has credentials.
func (g *Gateway) CallJSON(ctx context.Context, prompt, modelHint string) Result {
	primary := g.chain[0]

	content, err := g.call(ctx, primary, prompt, modelHint)
	if err == nil {
		return Result{OK: true, Content: content, Provider: primary}
	}
	g.logger.Warn("primary JSON provider failed", "provider", primary, "kind", KindOf(err), "error", err)

	fallback := g.fallback()
	if fallback == "" {
		return Result{OK: false, Error: err.Error()}
	}

	content, ferr := g.call(ctx, fallback, prompt, "")
	if ferr == nil {
		return Result{OK: true, Content: content, Provider: fallback}
	}
	g.logger.Warn("fallback JSON provider failed", "provider", fallback, "kind", KindOf(ferr), "error", ferr)

	return Result{OK: false, Error: err.Error() + "; " + ferr.Error()}
}

func (g *Gateway) fallback() string {
	for _, id := range g.chain[1:] {
		if p, ok := g.clients.Registry().Get(id); ok && p.IsConfigured() {
			return id
		}
	}
	return ""
}

func (g *Gateway) call(ctx context.Context, id, prompt, modelHint string) (string, error) {
	gen, err := g.clients.Get(id)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return "", errors.New("Missing " + envName(id))
		}
		return "", err
	}

	req := GenerateRequest{
		Prompt:      prompt,
		Model:       modelHint,
		Temperature: GatewayTemperature,
		JSON:        true,
	}
	if id == config.ProviderGoogle {
		if req.Model == "" {
			req.Model = g.geminiModel
		}
	} else {
		req.System = JSONSystemPrompt
	}

	content, err := gen.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", &ProviderError{Provider: id, Kind: KindUnknown, Err: ErrEmptyResponse}
	}
	return content, nil
}

func envName(id string) string {
	if k, ok := credentialEnv[id]; ok {
		return k
	}
	return strings.ToUpper(id) + "_API_KEY"
}
