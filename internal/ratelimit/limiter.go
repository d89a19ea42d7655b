// Package ratelimit bounds how often a caller may perform an operation using
// fixed-window counters keyed by an opaque identifier (usually the client IP).
//
// State lives in process memory only. Separate processes keep separate
// counters, so the quota holds per instance rather than per deployment.
package ratelimit

import (
	"sync"
	"time"
)

// Config is the quota of a single limiter.
type Config struct {
	// Window is how long a counter lives before it resets.
	Window time.Duration
	// MaxRequests is the number of admitted calls per window.
	MaxRequests int
}

var (
	// AIGeneration guards calls that reach the generative-language provider.
	AIGeneration = Config{Window: 60 * time.Second, MaxRequests: 10}
	// Authentication guards signup and login.
	Authentication = Config{Window: 300 * time.Second, MaxRequests: 5}
	// General guards every other authenticated route.
	General = Config{Window: 60 * time.Second, MaxRequests: 30}
)

// Result reports the outcome of a Check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long a rejected caller should wait, rounded up to whole
// seconds and never below one second.
func (r Result) RetryAfter(now time.Time) time.Duration {
	wait := r.ResetAt.Sub(now)
	if wait <= 0 {
		return time.Second
	}
	secs := (wait + time.Second - 1) / time.Second
	return secs * time.Second
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window counter per identifier. It is safe for
// concurrent use; the check-and-increment is atomic under mu.
type Limiter struct {
	name string
	cfg  Config
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func New(name string, cfg Config, opts ...Option) *Limiter {
	if cfg.MaxRequests < 1 {
		cfg.MaxRequests = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	l := &Limiter{
		name:    name,
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Name() string   { return l.name }
func (l *Limiter) Config() Config { return l.cfg }

// Check admits or rejects one call for identifier.
func (l *Limiter) Check(identifier string) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[identifier]
	if !ok || !now.Before(e.resetAt) {
		e = &entry{count: 1, resetAt: now.Add(l.cfg.Window)}
		l.entries[identifier] = e
		return Result{Allowed: true, Remaining: l.cfg.MaxRequests - 1, ResetAt: e.resetAt}
	}

	if e.count < l.cfg.MaxRequests {
		e.count++
		return Result{Allowed: true, Remaining: l.cfg.MaxRequests - e.count, ResetAt: e.resetAt}
	}

	return Result{Allowed: false, Remaining: 0, ResetAt: e.resetAt}
}

// Cleanup drops every entry whose window has expired and returns how many
// were removed.
func (l *Limiter) Cleanup() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// Len is the number of tracked identifiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Limiters groups the named instances used by the HTTP layer.
type Limiters struct {
	AI      *Limiter
	Auth    *Limiter
	General *Limiter
}

func NewLimiters(opts ...Option) *Limiters {
	return &Limiters{
		AI:      New("ai", AIGeneration, opts...),
		Auth:    New("auth", Authentication, opts...),
		General: New("general", General, opts...),
	}
}

func (ls *Limiters) All() []*Limiter {
	return []*Limiter{ls.AI, ls.Auth, ls.General}
}
