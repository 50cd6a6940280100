package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"golang.org/x/time/rate"

	"github.com/jmylchreest/autoreach-api/internal/config"
)

type anthropicGenerator struct {
	client       *anthropic.Client
	defaultModel string
	limiter      *rate.Limiter
}

func newAnthropicGenerator(s config.ProviderSettings, o generatorOptions) *anthropicGenerator {
	opts := []anthropic.ClientOption{anthropic.WithHTTPClient(o.httpClient)}
	if s.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimRight(s.BaseURL, "/")))
	}
	return &anthropicGenerator{
		client:       anthropic.NewClient(s.APIKey, opts...),
		defaultModel: s.DefaultModel,
		limiter:      o.limiter,
	}
}

func (g *anthropicGenerator) ID() string { return config.ProviderAnthropic }

func (g *anthropicGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	req = applyDefaults(req, g.defaultModel)

	if err := g.limiter.Wait(ctx); err != nil {
		return "", NewTransportError(config.ProviderAnthropic, req.Model, err)
	}

	system := req.System
	if req.JSON && system == "" {
		system = JSONSystemPrompt
	}
	temperature := req.Temperature

	resp, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(req.Model),
		System:      system,
		Messages:    []anthropic.Message{anthropic.NewUserTextMessage(req.Prompt)},
		MaxTokens:   req.MaxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", classifyAnthropicError(req.Model, err)
	}

	var sb strings.Builder
	for _, c := range resp.Content {
		sb.WriteString(c.GetText())
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", &ProviderError{Provider: config.ProviderAnthropic, Model: req.Model, Kind: KindUnknown, Err: ErrEmptyResponse}
	}
	return sb.String(), nil
}

// classifyAnthropicError maps SDK errors onto ProviderError. API errors carry
// a type rather than a status, so the status is reconstructed from the type.
func classifyAnthropicError(model string, err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		status := 0
		switch string(apiErr.Type) {
		case "rate_limit_error":
			status = http.StatusTooManyRequests
		case "authentication_error":
			status = http.StatusUnauthorized
		case "permission_error":
			status = http.StatusForbidden
		case "overloaded_error", "api_error":
			status = http.StatusServiceUnavailable
		case "invalid_request_error", "request_too_large":
			status = http.StatusBadRequest
		}
		pe := NewStatusError(config.ProviderAnthropic, model, status, apiErr.Message)
		pe.Err = err
		return pe
	}
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) && reqErr.StatusCode != 0 {
		pe := NewStatusError(config.ProviderAnthropic, model, reqErr.StatusCode, reqErr.Error())
		pe.Err = err
		return pe
	}
	return NewTransportError(config.ProviderAnthropic, model, err)
}
