package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmylchreest/autoreach-api/internal/config"
)

func newTestProvider(id, key, baseURL, model string) *Provider {
	r := NewRegistry(config.ProvidersConfig{Providers: []config.ProviderSettings{
		{ID: id, APIKey: key, BaseURL: baseURL, DefaultModel: model, Enabled: true},
	}})
	p, _ := r.Get(id)
	return p
}

// ========================================
// NewGenerator Tests
// ========================================

func TestNewGenerator_NotConfigured(t *testing.T) {
	p := newTestProvider(config.ProviderOpenAI, "", "", "gpt-4o-mini")
	if _, err := NewGenerator(p); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("NewGenerator() error = %v, want ErrNotConfigured", err)
	}
	if _, err := NewGenerator(nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("NewGenerator(nil) error = %v, want ErrNotConfigured", err)
	}
}

func TestNewGenerator_Kinds(t *testing.T) {
	tests := []struct {
		id string
	}{
		{config.ProviderOpenAI},
		{config.ProviderAnthropic},
		{config.ProviderGoogle},
		{config.ProviderPerplexity},
		{config.ProviderOpenRouter},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			g, err := NewGenerator(newTestProvider(tt.id, "key", "", "m"))
			if err != nil {
				t.Fatalf("NewGenerator() error = %v", err)
			}
			if g.ID() != tt.id {
				t.Errorf("ID() = %q, want %q", g.ID(), tt.id)
			}
		})
	}
}

func TestNewLimiter(t *testing.T) {
	if l := newLimiter(0); l.Burst() != 1 {
		t.Errorf("unlimited limiter burst = %d, want 1", l.Burst())
	}
	if l := newLimiter(60); l.Burst() != 3 {
		t.Errorf("newLimiter(60) burst = %d, want 3", l.Burst())
	}
	if l := newLimiter(5); l.Burst() != 1 {
		t.Errorf("newLimiter(5) burst = %d, want 1", l.Burst())
	}
}

// ========================================
// Gemini Generator Tests
// ========================================

func TestGeminiGenerator_Generate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody geminiRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"ok\":true}"}]}}]}`))
	}))
	defer srv.Close()

	g, err := NewGenerator(newTestProvider(config.ProviderGoogle, "g-key", srv.URL, "gemini-2.5-flash"))
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	out, err := g.Generate(context.Background(), GenerateRequest{Prompt: "hello", JSON: true})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != `{"ok":true}` {
		t.Errorf("Generate() = %q, want %q", out, `{"ok":true}`)
	}
	if gotPath != "/v1beta/models/gemini-2.5-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "g-key" {
		t.Errorf("key = %q, want g-key", gotKey)
	}
	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Role != "user" || gotBody.Contents[0].Parts[0].Text != "hello" {
		t.Errorf("unexpected request contents: %+v", gotBody.Contents)
	}
	if gotBody.GenerationConfig.Temperature != DefaultTemperature {
		t.Errorf("temperature = %v, want %v", gotBody.GenerationConfig.Temperature, DefaultTemperature)
	}
}

func TestGeminiGenerator_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota"}}`))
	}))
	defer srv.Close()

	g, _ := NewGenerator(newTestProvider(config.ProviderGoogle, "g-key", srv.URL, "gemini-2.5-flash"))
	_, err := g.Generate(context.Background(), GenerateRequest{Prompt: "x"})

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("Generate() error = %v, want *ProviderError", err)
	}
	if pe.Kind != KindRateLimited || pe.StatusCode != 429 {
		t.Errorf("ProviderError = %+v, want 429 rate_limited", pe)
	}
	if pe.Body != `{"error":{"code":429,"message":"quota"}}` {
		t.Errorf("Body = %q, want raw response body", pe.Body)
	}
}

func TestGeminiGenerator_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	g, _ := NewGenerator(newTestProvider(config.ProviderGoogle, "g-key", srv.URL, "gemini-2.5-flash"))
	if _, err := g.Generate(context.Background(), GenerateRequest{Prompt: "x"}); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Generate() error = %v, want ErrEmptyResponse", err)
	}
}

// ========================================
// OpenAI-compatible Generator Tests
// ========================================

func TestOpenAICompatGenerator_Generate(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer o-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"[1,2]"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	g, _ := NewGenerator(newTestProvider(config.ProviderOpenAI, "o-key", srv.URL, "gpt-4o-mini"))
	out, err := g.Generate(context.Background(), GenerateRequest{System: JSONSystemPrompt, Prompt: "list", JSON: true})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "[1,2]" {
		t.Errorf("Generate() = %q, want [1,2]", out)
	}

	rf, _ := gotReq["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v, want json_object", gotReq["response_format"])
	}
	msgs, _ := gotReq["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("messages = %d, want system + user", len(msgs))
	}
}

func TestOpenAICompatGenerator_PerplexitySkipsJSONMode(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	g, _ := NewGenerator(newTestProvider(config.ProviderPerplexity, "p-key", srv.URL, "sonar"))
	if _, err := g.Generate(context.Background(), GenerateRequest{Prompt: "x", JSON: true}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, ok := gotReq["response_format"]; ok {
		t.Error("perplexity requests should not carry response_format")
	}
}

func TestOpenAICompatGenerator_WebSearchModel(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		req       GenerateRequest
		wantModel string
		wantTemp  bool
	}{
		{"openai search", config.ProviderOpenAI, GenerateRequest{Prompt: "x", WebSearch: true}, "gpt-4o-search-preview", false},
		{"openrouter online", config.ProviderOpenRouter, GenerateRequest{Prompt: "x", WebSearch: true}, "openai/gpt-4o-mini:online", true},
		{"explicit model wins", config.ProviderOpenAI, GenerateRequest{Prompt: "x", Model: "gpt-4o", WebSearch: true}, "gpt-4o", true},
		{"no search", config.ProviderOpenAI, GenerateRequest{Prompt: "x"}, "gpt-4o-mini", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReq map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(body, &gotReq)
				_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
			}))
			defer srv.Close()

			g, _ := NewGenerator(newTestProvider(tt.id, "key", srv.URL, "gpt-4o-mini"))
			if _, err := g.Generate(context.Background(), tt.req); err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if gotReq["model"] != tt.wantModel {
				t.Errorf("model = %v, want %q", gotReq["model"], tt.wantModel)
			}
			if _, ok := gotReq["temperature"]; ok != tt.wantTemp {
				t.Errorf("temperature sent = %v, want %v", ok, tt.wantTemp)
			}
		})
	}
}

func TestSearchModel(t *testing.T) {
	if m, ok := SearchModel(config.ProviderPerplexity); !ok || m != "sonar" {
		t.Errorf("SearchModel(perplexity) = %q, %v", m, ok)
	}
	if _, ok := SearchModel(config.ProviderAnthropic); ok {
		t.Error("anthropic should have no search model")
	}
}

func TestOpenAICompatGenerator_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer srv.Close()

	g, _ := NewGenerator(newTestProvider(config.ProviderOpenAI, "o-key", srv.URL, "gpt-4o-mini"))
	_, err := g.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	if KindOf(err) != KindRateLimited {
		t.Errorf("KindOf() = %q, want %q (err=%v)", KindOf(err), KindRateLimited, err)
	}
	if !IsRetryable(err) {
		t.Error("rate limited errors should be retryable")
	}
}

// ========================================
// Anthropic Generator Tests
// ========================================

func TestAnthropicGenerator_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "a-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("X-Api-Key"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest","content":[{"type":"text","text":"Acme is first."}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer srv.Close()

	g, _ := NewGenerator(newTestProvider(config.ProviderAnthropic, "a-key", srv.URL, "claude-3-5-haiku-latest"))
	out, err := g.Generate(context.Background(), GenerateRequest{Prompt: "best tools?"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "Acme is first." {
		t.Errorf("Generate() = %q", out)
	}
}

func TestAnthropicGenerator_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	g, _ := NewGenerator(newTestProvider(config.ProviderAnthropic, "a-key", srv.URL, "claude-3-5-haiku-latest"))
	_, err := g.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	if KindOf(err) != KindRateLimited {
		t.Errorf("KindOf() = %q, want %q (err=%v)", KindOf(err), KindRateLimited, err)
	}
}
