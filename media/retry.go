package media

import (
	"context"
	"time"
)

// RetryPolicy is the state of one download's attempt loop. It holds no I/O of
// its own; the acquirer drives it and tests can step it directly.
type RetryPolicy struct {
	Ceiling int
	Base    time.Duration

	attempt int
	pool    *CookiePool
}

func NewRetryPolicy(ceiling int, base time.Duration, pool *CookiePool) *RetryPolicy {
	if ceiling < 1 {
		ceiling = 1
	}
	return &RetryPolicy{Ceiling: ceiling, Base: base, pool: pool}
}

// Attempt is the number of attempts started so far.
func (p *RetryPolicy) Attempt() int { return p.attempt }

// Next starts another attempt and returns its 1-based number, or false once
// the ceiling is reached.
func (p *RetryPolicy) Next() (int, bool) {
	if p.IsExhausted() {
		return p.attempt, false
	}
	p.attempt++
	return p.attempt, true
}

func (p *RetryPolicy) IsExhausted() bool { return p.attempt >= p.Ceiling }

// Backoff is the delay after the given failed attempt: Base, 2*Base, 4*Base...
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.Base * time.Duration(1<<(attempt-1))
}

// OnFailure permanently drops the cookie used by the failed attempt.
func (p *RetryPolicy) OnFailure(cookie string) {
	if p.pool != nil && cookie != "" {
		p.pool.Invalidate(cookie)
	}
}

// Wait sleeps for the attempt's backoff unless ctx ends first.
func (p *RetryPolicy) Wait(ctx context.Context, attempt int) error {
	d := p.Backoff(attempt)
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
