package mw

import (
	"net/http"

	"github.com/jmylchreest/autoreach-api/internal/version"
)

// Build headers stamped on every response.
const (
	HeaderAPIVersion = "X-API-Version"
	HeaderAPICommit  = "X-API-Commit"
)

// BuildHeaders stamps responses with the running build so dashboards can
// tell which deployment produced an analysis. The commit header is omitted
// when the binary carries no VCS stamp.
func BuildHeaders(info version.Info) func(http.Handler) http.Handler {
	stamp := info.Short()
	commit := ""
	if info.Commit != "" && info.Commit != "unknown" {
		commit = info.Commit
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set(HeaderAPIVersion, stamp)
			if commit != "" {
				h.Set(HeaderAPICommit, commit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
