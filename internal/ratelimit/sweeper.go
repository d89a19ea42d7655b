package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sweeper periodically calls Cleanup on a set of limiters so that
// identifiers which stopped calling do not stay in memory forever.
type Sweeper struct {
	interval time.Duration
	limiters []*Limiter

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewSweeper(interval time.Duration, limiters ...*Limiter) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		interval: interval,
		limiters: limiters,
	}
}

// Start launches the sweep loop in the background. It returns immediately;
// the loop ends when ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.run(ctx, s.stopCh)
}

// Stop ends the loop and waits for it to exit. Calling Stop on a sweeper that
// is not running is a no-op.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

// Sweep runs one cleanup pass over every limiter and returns the total number
// of entries removed.
func (s *Sweeper) Sweep() int {
	total := 0
	for _, l := range s.limiters {
		if n := l.Cleanup(); n > 0 {
			log.Printf("ratelimit: removed %d expired entries from %q limiter", n, l.Name())
			total += n
		}
	}
	return total
}

func (s *Sweeper) run(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
