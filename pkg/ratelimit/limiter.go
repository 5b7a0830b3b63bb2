package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// windowSafetyBuffer is added when sleeping out an exhausted window so the
// source sees the window as fully elapsed.
const windowSafetyBuffer = time.Second

// Limiter paces calls against a rate-limited source.
type Limiter interface {
	// Wait blocks until it is safe to issue the next request, then records
	// the call. Cancellation is observed while suspended.
	Wait(ctx context.Context) error
	// HandleRateLimit is invoked when the source explicitly signals
	// throttling; it suspends for a full window and resets counters.
	HandleRateLimit(ctx context.Context) error
	// Reset clears the limiter state.
	Reset()
}

// Config holds the immutable pacing parameters of a Pacer.
type Config struct {
	// MinDelay is the minimum spacing between consecutive calls.
	MinDelay time.Duration
	// MaxRequests is the call budget per window.
	MaxRequests int
	// Window is the budget interval.
	Window time.Duration
	// JitterFactor adds up to JitterFactor*MinDelay of random extra delay
	// per call (0.0 to 1.0). The fallback path uses a large factor to
	// emulate human pacing.
	JitterFactor float64
}

// Pacer enforces a minimum inter-call delay and a maximum-calls-per-window
// budget, suspending the caller as needed.
type Pacer struct {
	cfg Config

	mu           sync.Mutex
	windowStart  time.Time
	requestCount int
	lastCall     time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rng   *rand.Rand
}

// NewPacer creates a Pacer with the given configuration.
func NewPacer(cfg Config) *Pacer {
	return &Pacer{
		cfg:         cfg,
		windowStart: time.Now(),
		now:         time.Now,
		sleep:       sleepCtx,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Wait blocks until the pacing rules allow another call, then records it.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()

	now := p.now()

	// A fresh window resets the budget.
	if now.Sub(p.windowStart) >= p.cfg.Window {
		p.windowStart = now
		p.requestCount = 0
	}

	// Exhausted budget: sleep out the remaining window plus a buffer.
	if p.requestCount >= p.cfg.MaxRequests {
		remaining := p.cfg.Window - now.Sub(p.windowStart) + windowSafetyBuffer
		p.mu.Unlock()
		if err := p.sleep(ctx, remaining); err != nil {
			return err
		}
		p.mu.Lock()
		p.windowStart = p.now()
		p.requestCount = 0
	}

	// Independently enforce the minimum inter-call spacing.
	delay := p.cfg.MinDelay - p.now().Sub(p.lastCall)
	if !p.lastCall.IsZero() && delay > 0 {
		delay += p.jitter()
		p.mu.Unlock()
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
		p.mu.Lock()
	}

	p.lastCall = p.now()
	p.requestCount++
	p.mu.Unlock()
	return nil
}

// HandleRateLimit suspends for the full window duration and resets counters.
// Expected to be called rarely relative to Wait.
func (p *Pacer) HandleRateLimit(ctx context.Context) error {
	if err := p.sleep(ctx, p.cfg.Window+windowSafetyBuffer); err != nil {
		return err
	}

	p.mu.Lock()
	p.windowStart = p.now()
	p.requestCount = 0
	p.mu.Unlock()
	return nil
}

// Reset clears the pacing state.
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.windowStart = p.now()
	p.requestCount = 0
	p.lastCall = time.Time{}
}

// jitter returns a random extra delay; caller holds the lock.
func (p *Pacer) jitter() time.Duration {
	if p.cfg.JitterFactor <= 0 {
		return 0
	}
	return time.Duration(p.rng.Float64() * p.cfg.JitterFactor * float64(p.cfg.MinDelay))
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
