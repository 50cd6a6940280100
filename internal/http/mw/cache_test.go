package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// ========================================
// Cache Middleware Tests
// ========================================

func TestCache_DefaultPolicies(t *testing.T) {
	handler := Cache(DefaultCacheConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/healthz", "no-store"},
		{http.MethodGet, "/api/v1/health", "public, max-age=30"},
		{http.MethodGet, "/openapi.json", "public, max-age=3600"},
		{http.MethodGet, "/api/v1/providers", "private, max-age=300"},
		{http.MethodGet, "/api/v1/analyses", "private, no-cache"},
		{http.MethodGet, "/api/v1/analyses/01J", "private, no-cache"},
		{http.MethodHead, "/api/v1/aeo-reports/01J", "private, no-cache"},
		{http.MethodGet, "/somewhere/else", "private, no-cache"},
		{http.MethodPost, "/api/v1/analyses", "no-store"},
		{http.MethodPost, "/api/v1/analyze/stream", "no-store"},
		{http.MethodDelete, "/api/v1/analyses/01J", "no-store"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if got := rec.Header().Get("Cache-Control"); got != tt.want {
				t.Errorf("Cache-Control = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCache_FirstMatchWinsAndNoDefault(t *testing.T) {
	cfg := CacheConfig{Policies: []CachePolicy{
		{Pattern: "/api/v1/analyses/", CacheControl: "private, max-age=5"},
		{Pattern: "/api/v1/analyses", CacheControl: "private, no-cache"},
	}}
	handler := Cache(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/01J", nil))
	if got := rec.Header().Get("Cache-Control"); got != "private, max-age=5" {
		t.Errorf("Cache-Control = %q, want first policy", got)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	if got := rec.Header().Get("Cache-Control"); got != "" {
		t.Errorf("Cache-Control = %q, want unset without a default", got)
	}
}
