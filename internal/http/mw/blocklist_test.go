package mw

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeBlocklistSource struct {
	mu    sync.Mutex
	data  string
	etag  string
	err   error
	calls int
	seen  []string
}

func (f *fakeBlocklistSource) GetIfChanged(_ context.Context, _ string, etag string) ([]byte, string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = append(f.seen, etag)
	if f.err != nil {
		return nil, "", false, f.err
	}
	if etag != "" && etag == f.etag {
		return nil, etag, false, nil
	}
	return []byte(f.data), f.etag, true, nil
}

func (f *fakeBlocklistSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ========================================
// extractIP Tests
// ========================================

func TestExtractIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		expected   string
	}{
		{"192.168.1.1:8080", "192.168.1.1"},
		{"192.168.1.1", "192.168.1.1"},
		{"[::1]:8080", "::1"},
		{"::1", "::1"},
	}

	for _, tt := range tests {
		t.Run(tt.remoteAddr, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if got := extractIP(req); got != tt.expected {
				t.Errorf("extractIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// ========================================
// IPBlocklist Tests
// ========================================

func TestIPBlocklist_Refresh(t *testing.T) {
	src := &fakeBlocklistSource{data: `["203.0.113.7", "10.0.0.0/8", "not-an-ip", "300.0.0.0/99", " "]`, etag: `"v1"`}
	b := NewIPBlocklist(BlocklistConfig{Source: src, Key: "config/blocklist.json"})

	b.refresh(context.Background())

	tests := []struct {
		ip   string
		want bool
	}{
		{"203.0.113.7", true},
		{"10.20.30.40", true},
		{"192.168.1.1", false},
		{"", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := b.isBlocked(tt.ip); got != tt.want {
			t.Errorf("isBlocked(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}

	b.refresh(context.Background())
	if src.seen[1] != `"v1"` {
		t.Errorf("second refresh sent etag %q, want the stored one", src.seen[1])
	}
	if !b.isBlocked("203.0.113.7") {
		t.Error("unchanged refresh dropped the list")
	}
}

func TestIPBlocklist_FailuresKeepPreviousList(t *testing.T) {
	src := &fakeBlocklistSource{data: `["203.0.113.7"]`, etag: `"v1"`}
	b := NewIPBlocklist(BlocklistConfig{Source: src, Key: "k"})
	b.refresh(context.Background())

	for _, err := range []error{errors.New("connection reset"), fmt.Errorf("%w: k", fs.ErrNotExist)} {
		src.err = err
		b.refresh(context.Background())
		if !b.isBlocked("203.0.113.7") {
			t.Errorf("refresh error %v dropped the list", err)
		}
		if b.lastError.IsZero() {
			t.Errorf("refresh error %v did not start the backoff", err)
		}
	}

	src.err = nil
	src.etag = `"v2"`
	src.data = `{"not":"a list"}`
	b.refresh(context.Background())
	if !b.isBlocked("203.0.113.7") {
		t.Error("invalid JSON dropped the list")
	}
}

func TestIPBlocklist_Middleware(t *testing.T) {
	src := &fakeBlocklistSource{data: `["203.0.113.7"]`, etag: `"v1"`}
	b := NewIPBlocklist(BlocklistConfig{Source: src, Key: "k", CacheTTL: time.Hour})
	b.refresh(context.Background())

	handler := b.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for addr, want := range map[string]int{
		"203.0.113.7:5555": http.StatusForbidden,
		"198.51.100.1:80":  http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: status = %d, want %d", addr, rec.Code, want)
		}
	}
	if src.callCount() != 1 {
		t.Errorf("source calls = %d, want 1 within the cache TTL", src.callCount())
	}
}

func TestIPBlocklist_LazyLoad(t *testing.T) {
	src := &fakeBlocklistSource{data: `["203.0.113.7"]`, etag: `"v1"`}
	b := NewIPBlocklist(BlocklistConfig{Source: src, Key: "k"})
	handler := b.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:1"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	deadline := time.Now().Add(2 * time.Second)
	for !b.isBlocked("203.0.113.7") {
		if time.Now().After(deadline) {
			t.Fatal("blocklist was not loaded after the first request")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestIPBlocklist_Disabled(t *testing.T) {
	b := NewIPBlocklist(BlocklistConfig{})
	handler := b.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want pass-through", rec.Code)
	}
}
