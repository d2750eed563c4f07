package notifier

import (
	"math/rand"
	"time"
)

type Rand interface {
	Int63n(n int64) int64
}

type BackoffConfig struct {
	Backoff1 time.Duration // default: 200ms
	Backoff2 time.Duration // default: 1s
	Backoff3 time.Duration // default: 3s

	// Jitter is the share of the delay added at random, 0..1. default: 0.2
	Jitter float64
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Backoff1: 200 * time.Millisecond,
		Backoff2: time.Second,
		Backoff3: 3 * time.Second,
		Jitter:   0.2,
	}
}

// Backoff plans the pause before the next push attempt.
type Backoff struct {
	cfg BackoffConfig
	r   Rand
}

func NewBackoff(cfg BackoffConfig, r Rand) *Backoff {
	def := DefaultBackoffConfig()
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		cfg.Jitter = def.Jitter
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Backoff{cfg: cfg, r: r}
}

// Delay returns the pause after the failed attempt number failed (1-based).
func (b *Backoff) Delay(failed int) time.Duration {
	var base time.Duration
	switch {
	case failed <= 1:
		base = b.cfg.Backoff1
	case failed == 2:
		base = b.cfg.Backoff2
	default:
		base = b.cfg.Backoff3
	}
	span := int64(float64(base) * b.cfg.Jitter)
	if span <= 0 {
		return base
	}
	return base + time.Duration(b.r.Int63n(span+1))
}
