package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/jmylchreest/autoreach-api/internal/config"
)

// Base URLs for OpenAI-compatible providers.
const (
	PerplexityBaseURL = "https://api.perplexity.ai"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// openAICompatGenerator serves any OpenAI-compatible chat completions API.
type openAICompatGenerator struct {
	id           string
	client       *openai.Client
	defaultModel string
	limiter      *rate.Limiter
	jsonMode     bool
}

func newOpenAICompatGenerator(s config.ProviderSettings, o generatorOptions) *openAICompatGenerator {
	cfg := openai.DefaultConfig(s.APIKey)
	switch {
	case s.BaseURL != "":
		cfg.BaseURL = strings.TrimRight(s.BaseURL, "/")
	case s.ID == config.ProviderPerplexity:
		cfg.BaseURL = PerplexityBaseURL
	case s.ID == config.ProviderOpenRouter:
		cfg.BaseURL = OpenRouterBaseURL
	}
	cfg.HTTPClient = o.httpClient

	return &openAICompatGenerator{
		id:           s.ID,
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: s.DefaultModel,
		limiter:      o.limiter,
		// Perplexity rejects response_format json_object.
		jsonMode: s.ID != config.ProviderPerplexity,
	}
}

func (g *openAICompatGenerator) ID() string { return g.id }

func (g *openAICompatGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if req.WebSearch && req.Model == "" {
		req.Model, _ = SearchModel(g.id)
	}
	req = applyDefaults(req, g.defaultModel)

	if err := g.limiter.Wait(ctx); err != nil {
		return "", NewTransportError(g.id, req.Model, err)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	// Search preview models reject sampling parameters.
	if strings.Contains(req.Model, "search-preview") {
		chatReq.Temperature = 0
	}
	if req.JSON && g.jsonMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := g.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", classifyOpenAIError(g.id, req.Model, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &ProviderError{Provider: g.id, Model: req.Model, Kind: KindUnknown, Err: ErrEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(provider, model string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		pe := NewStatusError(provider, model, apiErr.HTTPStatusCode, apiErr.Message)
		pe.Err = err
		return pe
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		pe := NewStatusError(provider, model, reqErr.HTTPStatusCode, reqErr.Error())
		pe.Err = err
		return pe
	}
	return NewTransportError(provider, model, err)
}
