package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/autoreach-api/internal/database/migrations"
	"github.com/jmylchreest/autoreach-api/internal/llm"
	"github.com/jmylchreest/autoreach-api/internal/models"
	"github.com/jmylchreest/autoreach-api/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(i int) *int { return &i }

// stubGateway answers CallJSON from a routing function and counts calls.
type stubGateway struct {
	mu      sync.Mutex
	prompts []string
	answer  func(prompt string) llm.Result
}

func (g *stubGateway) CallJSON(_ context.Context, prompt, _ string) llm.Result {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.answer == nil {
		return llm.Result{OK: false, Error: "Missing GOOGLE_GENERATIVE_AI_API_KEY"}
	}
	return g.answer(prompt)
}

func (g *stubGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func okJSON(content string) func(string) llm.Result {
	return func(string) llm.Result { return llm.Result{OK: true, Content: content, Provider: "google"} }
}

// recordingSink captures events and optionally fails after a number of sends.
type recordingSink struct {
	mu      sync.Mutex
	events  []models.SSEEvent
	failAt  int // 1-based send index that fails; 0 never fails
	failErr error
}

func (r *recordingSink) Send(_ context.Context, ev models.SSEEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.failAt > 0 && len(r.events) >= r.failAt {
		return r.failErr
	}
	return nil
}

func (r *recordingSink) ofType(t models.EventType) []models.SSEEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SSEEvent
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = string(ev.Type)
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

type notification struct {
	event     models.WebhookEventType
	subjectID string
	payload   any
}

// recordingNotifier captures webhook notifications.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, event models.WebhookEventType, subjectID string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{event: event, subjectID: subjectID, payload: payload})
	return n.err
}

// setupTestRepos opens an in-memory database with all migrations applied.
func setupTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewRepositories(db)
}
