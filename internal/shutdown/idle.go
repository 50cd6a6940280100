// Package shutdown stops the API after a quiet period so the host can scale it to zero.
package shutdown

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// BusyFunc reports whether background work, such as a running analysis, is in progress.
type BusyFunc func() bool

// IdleMonitor signals once no request or background work has been seen for the timeout.
type IdleMonitor struct {
	timeout      time.Duration
	interval     time.Duration
	excludePaths []string
	busy         BusyFunc
	logger       *slog.Logger

	active   atomic.Int64
	mu       sync.Mutex
	lastSeen time.Time
	now      func() time.Time

	idle     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

// IdleMonitorConfig holds configuration for the idle monitor. A zero Timeout disables it.
type IdleMonitorConfig struct {
	Timeout time.Duration
	// ExcludePaths are path prefixes that do not count as activity, e.g. health checks.
	ExcludePaths []string
	Busy         BusyFunc
	Logger       *slog.Logger
}

// NewIdleMonitor creates an idle monitor.
func NewIdleMonitor(cfg IdleMonitorConfig) *IdleMonitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	// Check a few times per timeout, bounded to [1s, 30s].
	interval := cfg.Timeout / 6
	if interval < time.Second {
		interval = time.Second
	}
	if interval > 30*time.Second {
		interval = 30 * time.Second
	}
	return &IdleMonitor{
		timeout:      cfg.Timeout,
		interval:     interval,
		excludePaths: cfg.ExcludePaths,
		busy:         cfg.Busy,
		logger:       logger.With("component", "idle"),
		lastSeen:     time.Now(),
		now:          time.Now,
		idle:         make(chan struct{}),
		stop:         make(chan struct{}),
	}
}

// Enabled reports whether the monitor will ever fire.
func (m *IdleMonitor) Enabled() bool {
	return m.timeout > 0
}

// Start begins the check loop. It is a no-op when disabled.
func (m *IdleMonitor) Start() {
	if !m.Enabled() {
		return
	}
	m.logger.Info("idle shutdown enabled", "timeout", m.timeout.String(), "exclude_paths", m.excludePaths)
	go m.run()
}

// Stop ends the check loop without signalling idleness.
func (m *IdleMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Idle returns a channel closed when the idle timeout is reached.
func (m *IdleMonitor) Idle() <-chan struct{} {
	return m.idle
}

// Middleware records request activity outside the excluded paths.
func (m *IdleMonitor) Middleware(next http.Handler) http.Handler {
	if !m.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		m.active.Add(1)
		m.touch()
		defer func() {
			m.active.Add(-1)
			m.touch()
		}()
		next.ServeHTTP(w, r)
	})
}

func (m *IdleMonitor) excluded(path string) bool {
	for _, p := range m.excludePaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (m *IdleMonitor) touch() {
	m.mu.Lock()
	m.lastSeen = m.now()
	m.mu.Unlock()
}

func (m *IdleMonitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if m.check() {
				close(m.idle)
				return
			}
		}
	}
}

// check reports whether the monitor has been idle for the full timeout.
// Busy background work restarts the quiet period.
func (m *IdleMonitor) check() bool {
	active := m.active.Load()
	busy := m.busy != nil && m.busy()
	if active > 0 || busy {
		m.touch()
		return false
	}

	m.mu.Lock()
	quiet := m.now().Sub(m.lastSeen)
	m.mu.Unlock()

	if quiet < m.timeout {
		m.logger.Debug("idle check", "quiet", quiet.String(), "timeout", m.timeout.String())
		return false
	}
	m.logger.Info("idle timeout reached, signalling shutdown", "quiet", quiet.String())
	return true
}
