// Package mw contains HTTP middleware for the AutoReach API.
package mw

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmylchreest/autoreach-api/internal/auth"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserClaimsKey is the context key for user claims.
	UserClaimsKey ContextKey = "user_claims"
)

// LocalUserID owns every request when authentication is disabled.
const LocalUserID = "local"

// UserClaims identifies the caller of a request.
type UserClaims struct {
	UserID string // JWT subject
	Email  string
	Name   string
	Local  bool // true when auth is disabled
}

// AuthConfig controls bearer token authentication.
type AuthConfig struct {
	Verifier *auth.Verifier
	// Disabled attributes every request to LocalUserID without a token.
	Disabled bool
}

// Authenticate resolves the claims for an Authorization header value.
func (c AuthConfig) Authenticate(authHeader string) (*UserClaims, error) {
	if c.Disabled {
		return &UserClaims{UserID: LocalUserID, Local: true}, nil
	}
	token := bearerToken(authHeader)
	if token == "" {
		return nil, auth.ErrInvalidToken
	}
	if c.Verifier == nil {
		return nil, auth.ErrMissingSecret
	}
	claims, err := c.Verifier.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	return &UserClaims{
		UserID: claims.UserID(),
		Email:  claims.Email,
		Name:   claims.Name,
	}, nil
}

// Auth returns a chi middleware that requires a valid bearer token, for
// routes served outside huma such as the SSE stream.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" && !cfg.Disabled {
				writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			claims, err := cfg.Authenticate(authHeader)
			if err != nil {
				slog.Debug("auth validation failed", "error", err)
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserClaims retrieves user claims from context.
func GetUserClaims(ctx context.Context) *UserClaims {
	claims, ok := ctx.Value(UserClaimsKey).(*UserClaims)
	if !ok {
		return nil
	}
	return claims
}

// WithUserClaims returns a copy of ctx carrying claims.
func WithUserClaims(ctx context.Context, claims *UserClaims) context.Context {
	return context.WithValue(ctx, UserClaimsKey, claims)
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}
