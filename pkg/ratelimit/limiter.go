// Package ratelimit provides per-provider token-bucket admission control
// for outbound calls to Maps, LLM, and Browser providers.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
)

// BucketConfig parameterizes one provider key's token bucket.
type BucketConfig struct {
	Capacity        int
	RefillPerSecond float64
	MaxWait         time.Duration
}

type bucket struct {
	mu          sync.Mutex
	tokens      float64
	capacity    float64
	refillRate  float64
	lastRefill  time.Time
	maxWait     time.Duration
	waitQueue   []chan struct{}
}

func newBucket(cfg BucketConfig) *bucket {
	return &bucket{
		tokens:     float64(cfg.Capacity),
		capacity:   float64(cfg.Capacity),
		refillRate: cfg.RefillPerSecond,
		lastRefill: time.Now(),
		maxWait:    cfg.MaxWait,
	}
}

// refill must be called with b.mu held.
func (b *bucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// Limiter is a registry of per-key token buckets. Configuration is read
// once at construction; changing rate-limit capacities requires a new
// Limiter (and so, per §4.1, a process restart in practice).
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	configs map[string]BucketConfig
}

// New constructs a Limiter from a static set of per-key configurations.
func New(configs map[string]BucketConfig) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket, len(configs)),
		configs: configs,
	}
}

func (l *Limiter) bucketFor(key string) (*bucket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key]; ok {
		return b, nil
	}
	cfg, ok := l.configs[key]
	if !ok {
		return nil, fmt.Errorf("ratelimit: no configuration for key %q", key)
	}
	b := newBucket(cfg)
	l.buckets[key] = b
	return b, nil
}

// Acquire blocks until a token for key is available, ctx is cancelled, or
// the key's configured MaxWait elapses (returning model.ErrTimedOut).
// Admission is FIFO per key: a goroutine that starts waiting earlier is
// woken (and gets first refusal at a freshly refilled token) before one
// that starts waiting later, via the explicit waitQueue below.
func (l *Limiter) Acquire(ctx context.Context, key string) error {
	b, err := l.bucketFor(key)
	if err != nil {
		return err
	}

	var deadline <-chan time.Time
	if b.maxWait > 0 {
		timer := time.NewTimer(b.maxWait)
		defer timer.Stop()
		deadline = timer.C
	}

	b.mu.Lock()
	b.refill()
	if len(b.waitQueue) == 0 && b.tokens >= 1 {
		b.tokens--
		b.mu.Unlock()
		return nil
	}
	my := make(chan struct{}, 1)
	b.waitQueue = append(b.waitQueue, my)
	b.mu.Unlock()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.abandon(b, my)
			return ctx.Err()
		case <-deadline:
			l.abandon(b, my)
			return model.ErrTimedOut
		case <-ticker.C:
			b.mu.Lock()
			b.refill()
			if len(b.waitQueue) > 0 && b.waitQueue[0] == my && b.tokens >= 1 {
				b.tokens--
				b.waitQueue = b.waitQueue[1:]
				b.mu.Unlock()
				return nil
			}
			b.mu.Unlock()
		}
	}
}

func (l *Limiter) abandon(b *bucket, my chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.waitQueue {
		if ch == my {
			b.waitQueue = append(b.waitQueue[:i], b.waitQueue[i+1:]...)
			return
		}
	}
}
