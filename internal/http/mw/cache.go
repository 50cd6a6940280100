package mw

import (
	"fmt"
	"net/http"
	"time"
)

// Cache lifetimes for Cache-Control max-age.
const (
	CacheMaxAgeShort = 30 * time.Second
	CacheMaxAgeLong  = 5 * time.Minute
	CacheMaxAgeDocs  = time.Hour
)

// CachePolicy sets Cache-Control for paths containing Pattern.
type CachePolicy struct {
	Pattern      string
	CacheControl string
}

// CacheConfig holds the cache middleware configuration.
type CacheConfig struct {
	// Policies are matched in order; the first match wins.
	Policies []CachePolicy
	// DefaultPolicy is applied when no policy matches (empty = no header set).
	DefaultPolicy string
}

// DefaultCacheConfig caches the health check and API docs publicly, keeps
// health checks uncached and marks per-user analyses and reports private.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		DefaultPolicy: "private, no-cache",
		Policies: []CachePolicy{
			{Pattern: "/healthz", CacheControl: "no-store"},
			{Pattern: "/readyz", CacheControl: "no-store"},
			{Pattern: "/api/v1/health", CacheControl: maxAge("public", CacheMaxAgeShort)},
			{Pattern: "/openapi", CacheControl: maxAge("public", CacheMaxAgeDocs)},
			{Pattern: "/docs", CacheControl: maxAge("public", CacheMaxAgeDocs)},

			// Provider configuration only changes on restart.
			{Pattern: "/api/v1/providers", CacheControl: maxAge("private", CacheMaxAgeLong)},

			// Analyses change while the worker runs; reports get their HTML late.
			{Pattern: "/api/v1/analyses", CacheControl: "private, no-cache"},
			{Pattern: "/api/v1/aeo-reports", CacheControl: "private, no-cache"},
			{Pattern: "/stream", CacheControl: "no-cache"},
		},
	}
}

func maxAge(scope string, d time.Duration) string {
	return fmt.Sprintf("%s, max-age=%d", scope, int(d.Seconds()))
}

// Cache returns middleware that sets Cache-Control headers based on route patterns.
// Requests other than GET and HEAD always get "no-store".
func Cache(cfg CacheConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				w.Header().Set("Cache-Control", "no-store")
				next.ServeHTTP(w, r)
				return
			}

			for _, policy := range cfg.Policies {
				if matchesAny(r.URL.Path, []string{policy.Pattern}) {
					w.Header().Set("Cache-Control", policy.CacheControl)
					next.ServeHTTP(w, r)
					return
				}
			}

			if cfg.DefaultPolicy != "" {
				w.Header().Set("Cache-Control", cfg.DefaultPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}
