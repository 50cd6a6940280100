package mw

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// BlocklistSource reads the blocklist object when its ETag differs from etag.
// *service.StorageService implements it.
type BlocklistSource interface {
	GetIfChanged(ctx context.Context, key, etag string) (data []byte, newETag string, changed bool, err error)
}

// IPBlocklist rejects requests from IPs and CIDR ranges listed in a JSON
// array stored in object storage. The list loads lazily on the first
// request, refreshes in the background after CacheTTL and fails open.
type IPBlocklist struct {
	source       BlocklistSource
	key          string
	cacheTTL     time.Duration
	errorBackoff time.Duration
	logger       *slog.Logger
	now          func() time.Time

	refreshing atomic.Bool

	mu           sync.RWMutex
	blocked      map[string]bool
	blockedCIDRs []*net.IPNet
	etag         string
	lastCheck    time.Time
	lastError    time.Time
	initialized  bool
}

// BlocklistConfig holds configuration for the IP blocklist.
type BlocklistConfig struct {
	Source       BlocklistSource
	Key          string
	CacheTTL     time.Duration // default 5m
	ErrorBackoff time.Duration // default 1m
	Logger       *slog.Logger
}

// NewIPBlocklist creates a new IP blocklist middleware.
func NewIPBlocklist(cfg BlocklistConfig) *IPBlocklist {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.ErrorBackoff == 0 {
		cfg.ErrorBackoff = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &IPBlocklist{
		source:       cfg.Source,
		key:          cfg.Key,
		cacheTTL:     cfg.CacheTTL,
		errorBackoff: cfg.ErrorBackoff,
		logger:       cfg.Logger.With("component", "blocklist"),
		now:          time.Now,
		blocked:      map[string]bool{},
	}
}

// Middleware returns the HTTP middleware handler. It expects chi's RealIP to
// run first.
func (b *IPBlocklist) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if b.source == nil || b.key == "" {
				next.ServeHTTP(w, r)
				return
			}

			b.maybeRefresh()

			if ip := extractIP(r); b.isBlocked(ip) {
				b.logger.Warn("blocked request from blocklisted IP", "ip", ip, "path", r.URL.Path)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (b *IPBlocklist) maybeRefresh() {
	b.mu.RLock()
	now := b.now()
	due := !b.initialized || now.Sub(b.lastCheck) > b.cacheTTL
	backingOff := !b.lastError.IsZero() && now.Sub(b.lastError) < b.errorBackoff
	b.mu.RUnlock()

	if !due || backingOff || !b.refreshing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer b.refreshing.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.refresh(ctx)
	}()
}

// refresh reloads the list. Failures keep the previous list.
func (b *IPBlocklist) refresh(ctx context.Context) {
	b.mu.RLock()
	etag := b.etag
	b.mu.RUnlock()

	data, newETag, changed, err := b.source.GetIfChanged(ctx, b.key, etag)
	now := b.now()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		b.mu.Lock()
		b.initialized, b.lastCheck, b.lastError = true, now, now
		b.mu.Unlock()
		b.logger.Debug("blocklist not found, will retry later", "key", b.key)
		return
	case err != nil:
		b.mu.Lock()
		b.initialized, b.lastError = true, now
		b.mu.Unlock()
		b.logger.Error("failed to fetch blocklist", "key", b.key, "error", err)
		return
	case !changed:
		b.mu.Lock()
		b.lastCheck = now
		b.mu.Unlock()
		return
	}

	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		b.mu.Lock()
		b.initialized, b.lastError = true, now
		b.mu.Unlock()
		b.logger.Error("failed to parse blocklist JSON", "key", b.key, "error", err)
		return
	}
	blocked, cidrs := b.parseEntries(entries)

	b.mu.Lock()
	b.blocked = blocked
	b.blockedCIDRs = cidrs
	b.etag = newETag
	b.initialized = true
	b.lastCheck = now
	b.lastError = time.Time{}
	b.mu.Unlock()

	b.logger.Info("blocklist refreshed", "exact_ips", len(blocked), "cidr_ranges", len(cidrs))
}

func (b *IPBlocklist) parseEntries(entries []string) (map[string]bool, []*net.IPNet) {
	blocked := make(map[string]bool, len(entries))
	var cidrs []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				b.logger.Warn("invalid CIDR in blocklist", "entry", entry, "error", err)
				continue
			}
			cidrs = append(cidrs, ipNet)
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			blocked[ip.String()] = true
		} else {
			b.logger.Warn("invalid IP in blocklist", "entry", entry)
		}
	}
	return blocked, cidrs
}

func (b *IPBlocklist) isBlocked(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.blocked[ip.String()] {
		return true
	}
	for _, cidr := range b.blockedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// extractIP returns the host part of RemoteAddr.
func extractIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
