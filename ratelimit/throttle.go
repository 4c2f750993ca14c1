package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

const (
	throttleLimit  = 5
	throttleWindow = time.Second

	// Probability of sweeping idle subjects on a given call, in percent.
	cleanupChance = 1
)

// Throttler smooths bursts with a sliding window: instead of rejecting the
// sixth request in a second, it reports how long the caller must wait until
// the oldest timestamp ages out.
type Throttler struct {
	mu       sync.Mutex
	subjects map[string][]time.Time
	now      func() time.Time
}

// NewThrottler creates a throttler with the 5-per-second window.
func NewThrottler() *Throttler {
	return &Throttler{
		subjects: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Reserve records one request and returns the delay the caller should wait
// before proceeding. Zero means go now.
func (t *Throttler) Reserve(subject string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	cutoff := now.Add(-throttleWindow)

	stamps := t.subjects[subject]
	live := stamps[:0]
	for _, s := range stamps {
		if s.After(cutoff) {
			live = append(live, s)
		}
	}

	var delay time.Duration
	if len(live) >= throttleLimit {
		// Admissible once the oldest in-window timestamp ages out.
		delay = live[len(live)-throttleLimit].Add(throttleWindow).Sub(now)
	}
	t.subjects[subject] = append(live, now.Add(delay))

	if rand.Intn(100) < cleanupChance {
		t.sweep(cutoff)
	}
	return delay
}

// Wait reserves a slot and sleeps out the delay, honoring cancellation.
func (t *Throttler) Wait(ctx context.Context, subject string) error {
	delay := t.Reserve(subject)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// sweep drops subjects whose every timestamp has aged out. Caller holds the
// lock.
func (t *Throttler) sweep(cutoff time.Time) {
	for subject, stamps := range t.subjects {
		idle := true
		for _, s := range stamps {
			if s.After(cutoff) {
				idle = false
				break
			}
		}
		if idle {
			delete(t.subjects, subject)
		}
	}
}
