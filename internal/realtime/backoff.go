package realtime

import (
	"math/rand"
	"sync"
	"time"
)

type Rand interface {
	Int63n(n int64) int64
}

type BackoffConfig struct {
	Min time.Duration // default: 1 second
	Max time.Duration // default: 30 seconds
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Min: 1 * time.Second,
		Max: 30 * time.Second,
	}
}

// Backoff doubles the reconnect delay per failed attempt up to Max and adds
// up to 20% jitter.
type Backoff struct {
	cfg BackoffConfig

	mu sync.Mutex
	r  Rand
}

func NewBackoff(cfg BackoffConfig, r Rand) *Backoff {
	def := DefaultBackoffConfig()
	if cfg.Min <= 0 {
		cfg.Min = def.Min
	}
	if cfg.Max <= 0 {
		cfg.Max = def.Max
	}
	if cfg.Max < cfg.Min {
		cfg.Max = cfg.Min
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Backoff{cfg: cfg, r: r}
}

func (b *Backoff) Delay(attempt int32) time.Duration {
	d := b.cfg.Min
	for i := int32(1); i < attempt && d < b.cfg.Max; i++ {
		d *= 2
	}
	if d > b.cfg.Max {
		d = b.cfg.Max
	}
	if j := int64(d / 5); j > 0 {
		b.mu.Lock()
		d += time.Duration(b.r.Int63n(j + 1))
		b.mu.Unlock()
	}
	return d
}
