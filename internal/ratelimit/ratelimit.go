// Package ratelimit is a fixed-window daily counter per identity. Windows
// reset at local midnight in a configured time zone.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultLimit    = 3
	DefaultTimezone = "America/Chicago"
	keyDateLayout   = "20060102"
)

// Counter maps window keys to usage counts. Unknown keys count as zero.
type Counter interface {
	Count(ctx context.Context, key string) (int, error)
	SetCount(ctx context.Context, key string, n int) error
}

// Incrementer is implemented by counters shared between processes. TakeUnit
// must atomically compare the count for key against limit and increment it
// only when below, returning the count after the call. The key may expire at
// expireAt.
type Incrementer interface {
	TakeUnit(ctx context.Context, key string, limit int, expireAt time.Time) (used int, allowed bool, err error)
}

// Pruner is implemented by counters that can drop keys sorting before cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff string) (int, error)
}

type Decision struct {
	Allowed   bool
	Used      int
	Remaining int
	Limit     int
	ResetIn   time.Duration
}

// LimitError reports an exhausted daily allowance.
type LimitError struct {
	Limit   int
	Used    int
	ResetIn time.Duration
}

func (e *LimitError) Error() string {
	mins := int(e.ResetIn / time.Minute)
	return fmt.Sprintf("daily limit reached (%d/day), resets in %dh %dm", e.Limit, mins/60, mins%60)
}

type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

type Limiter struct {
	mu      sync.Mutex
	counter Counter
	limit   int
	loc     *time.Location
	now     func() time.Time
}

func New(counter Counter, limit int, loc *time.Location, opts ...Option) *Limiter {
	if loc == nil {
		loc = time.UTC
	}
	l := &Limiter{
		counter: counter,
		limit:   limit,
		loc:     loc,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Limit() int {
	return l.limit
}

func (l *Limiter) Location() *time.Location {
	return l.loc
}

// Key returns the counter key for identity in the current window.
func (l *Limiter) Key(identity string) string {
	return l.now().In(l.loc).Format(keyDateLayout) + ":" + identity
}

// Take consumes one unit for identity. When the allowance is exhausted the
// counter is left untouched and Allowed is false.
func (l *Limiter) Take(ctx context.Context, identity string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := l.Key(identity)
	if inc, ok := l.counter.(Incrementer); ok {
		reset := l.nextReset()
		used, allowed, err := inc.TakeUnit(ctx, key, l.limit, reset)
		if err != nil {
			return Decision{}, fmt.Errorf("take unit: %w", err)
		}
		d := Decision{Allowed: allowed, Used: used, Limit: l.limit, ResetIn: reset.Sub(l.now())}
		if allowed {
			d.Remaining = max(l.limit-used, 0)
		}
		return d, nil
	}

	used, err := l.counter.Count(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("read usage: %w", err)
	}

	d := Decision{Limit: l.limit, Used: used, ResetIn: l.untilReset()}
	if used >= l.limit {
		return d, nil
	}

	used++
	if err := l.counter.SetCount(ctx, key, used); err != nil {
		return Decision{}, fmt.Errorf("write usage: %w", err)
	}
	d.Allowed = true
	d.Used = used
	d.Remaining = l.limit - used
	return d, nil
}

// Status reports usage without consuming anything.
func (l *Limiter) Status(ctx context.Context, identity string) (Decision, error) {
	used, err := l.counter.Count(ctx, l.Key(identity))
	if err != nil {
		return Decision{}, fmt.Errorf("read usage: %w", err)
	}
	return Decision{
		Allowed:   used < l.limit,
		Used:      used,
		Remaining: max(l.limit-used, 0),
		Limit:     l.limit,
		ResetIn:   l.untilReset(),
	}, nil
}

// Prune drops counters from earlier windows if the counter supports it.
func (l *Limiter) Prune(ctx context.Context) (int, error) {
	p, ok := l.counter.(Pruner)
	if !ok {
		return 0, nil
	}
	return p.PruneBefore(ctx, l.Key(""))
}

func (l *Limiter) untilReset() time.Duration {
	return l.nextReset().Sub(l.now())
}

// nextReset is the next local midnight.
func (l *Limiter) nextReset() time.Time {
	now := l.now().In(l.loc)
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, l.loc)
}
