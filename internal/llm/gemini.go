package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/jmylchreest/autoreach-api/internal/config"
)

// GeminiBaseURL is the Google Generative Language API root.
const GeminiBaseURL = "https://generativelanguage.googleapis.com"

type geminiGenerator struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
	limiter      *rate.Limiter
}

func newGeminiGenerator(s config.ProviderSettings, o generatorOptions) *geminiGenerator {
	base := GeminiBaseURL
	if s.BaseURL != "" {
		base = strings.TrimRight(s.BaseURL, "/")
	}
	return &geminiGenerator{
		apiKey:       s.APIKey,
		baseURL:      base,
		defaultModel: s.DefaultModel,
		client:       o.httpClient,
		limiter:      o.limiter,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature      float32 `json:"temperature"`
		MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
		ResponseMIMEType string  `json:"responseMimeType,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *geminiGenerator) ID() string { return config.ProviderGoogle }

func (g *geminiGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	req = applyDefaults(req, g.defaultModel)

	if err := g.limiter.Wait(ctx); err != nil {
		return "", NewTransportError(config.ProviderGoogle, req.Model, err)
	}

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
	}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	body.GenerationConfig.Temperature = req.Temperature
	body.GenerationConfig.MaxOutputTokens = req.MaxTokens
	if req.JSON {
		body.GenerationConfig.ResponseMIMEType = "application/json"
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.baseURL, url.PathEscape(req.Model), url.QueryEscape(g.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", NewTransportError(config.ProviderGoogle, req.Model, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewTransportError(config.ProviderGoogle, req.Model, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", NewStatusError(config.ProviderGoogle, req.Model, resp.StatusCode, string(respBody))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &ProviderError{Provider: config.ProviderGoogle, Model: req.Model, Kind: KindUnknown, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &ProviderError{Provider: config.ProviderGoogle, Model: req.Model, Kind: KindUnknown, Err: ErrEmptyResponse}
	}

	var sb strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", &ProviderError{Provider: config.ProviderGoogle, Model: req.Model, Kind: KindUnknown, Err: ErrEmptyResponse}
	}
	return sb.String(), nil
}
