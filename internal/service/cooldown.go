package service

import (
	"context"
	"time"

	"github.com/jmylchreest/autoreach-api/internal/config"
)

// CooldownPolicy decides the pause after a completed batch. batch is the
// zero-based index of the batch that just finished.
type CooldownPolicy interface {
	Delay(batch int) time.Duration
}

// FixedCooldown pauses for the same duration after every batch.
type FixedCooldown time.Duration

// Delay implements CooldownPolicy.
func (f FixedCooldown) Delay(int) time.Duration { return time.Duration(f) }

// ExponentialCooldown doubles the pause after each batch, capped at Max.
type ExponentialCooldown struct {
	Base time.Duration
	Max  time.Duration
}

// Delay implements CooldownPolicy.
func (e ExponentialCooldown) Delay(batch int) time.Duration {
	if e.Base <= 0 {
		return 0
	}
	d := e.Base
	for i := 0; i < batch; i++ {
		d *= 2
		if e.Max > 0 && d >= e.Max {
			return e.Max
		}
	}
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// NoCooldown never pauses.
type NoCooldown struct{}

// Delay implements CooldownPolicy.
func (NoCooldown) Delay(int) time.Duration { return 0 }

// NewCooldownPolicy builds the policy named in the analysis config.
func NewCooldownPolicy(cfg config.AnalysisConfig) CooldownPolicy {
	switch cfg.CooldownPolicy {
	case config.CooldownNone:
		return NoCooldown{}
	case config.CooldownExponential:
		return ExponentialCooldown{Base: cfg.Cooldown, Max: cfg.CooldownMax}
	default:
		return FixedCooldown(cfg.Cooldown)
	}
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
