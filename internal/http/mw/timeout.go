package mw

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"
)

// panicWithStack captures a panic value along with its stack trace.
type panicWithStack struct {
	value any
	stack []byte
}

// TimeoutConfig defines timeout behavior for different path patterns.
type TimeoutConfig struct {
	// Default timeout for most endpoints.
	Default time.Duration
	// Extended timeout for paths that wait on LLM providers or crawls.
	Extended time.Duration
	// Substrings of paths that get the extended timeout.
	ExtendedPatterns []string
	// Substrings of paths that run without a timeout, such as SSE streams.
	SkipPatterns []string
}

// DefaultTimeoutConfig returns the timeouts used by the API server.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Default:          30 * time.Second,
		Extended:         5 * time.Minute,
		ExtendedPatterns: []string{"/scrape", "/prompts/generate", "/aeo-reports", "/reconcile"},
		SkipPatterns:     []string{"/stream"},
	}
}

// Timeout returns a middleware that bounds each request by its path's timeout
// and answers 504 when the handler does not finish in time.
func Timeout(cfg TimeoutConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if matchesAny(r.URL.Path, cfg.SkipPatterns) {
				next.ServeHTTP(w, r)
				return
			}

			timeout := cfg.Default
			if matchesAny(r.URL.Path, cfg.ExtendedPatterns) {
				timeout = cfg.Extended
			}

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			done := make(chan struct{})
			panicChan := make(chan *panicWithStack, 1)

			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicChan <- &panicWithStack{value: p, stack: debug.Stack()}
					}
				}()
				next.ServeHTTP(w, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
			case p := <-panicChan:
				// Re-panic on this goroutine so Recoverer sees it.
				panic(fmt.Sprintf("%v\n\nOriginal stack trace:\n%s", p.value, p.stack))
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					writeJSONError(w, http.StatusGatewayTimeout, "request timed out")
				}
			}
		})
	}
}

func matchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}
