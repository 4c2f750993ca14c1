// Package ratelimit enforces fixed-window request quotas per subject and a
// short sliding-window throttle that smooths bursts instead of rejecting
// them.
package ratelimit

import (
	"sync"
	"time"
)

// Policy is one named quota: at most Limit requests per Window.
type Policy struct {
	Name   string        `json:"name"`
	Window time.Duration `json:"window"`
	Limit  int           `json:"limit"`
}

// Built-in policies. The chain applies global, ip, user, and burst to every
// request; ai_query guards the provider-backed routes and default covers the
// rest.
var (
	PolicyUser    = Policy{Name: "user", Window: time.Hour, Limit: 60}
	PolicyIP      = Policy{Name: "ip", Window: time.Hour, Limit: 100}
	PolicyGlobal  = Policy{Name: "global", Window: time.Hour, Limit: 1000}
	PolicyBurst   = Policy{Name: "burst", Window: time.Minute, Limit: 10}
	PolicyAIQuery = Policy{Name: "ai_query", Window: time.Hour, Limit: 30}
	PolicyDefault = Policy{Name: "default", Window: 15 * time.Minute, Limit: 30}
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Policy     string
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// SubjectStats reports one subject's current window plus counters that
// survive window resets.
type SubjectStats struct {
	Subject         string    `json:"subject"`
	Count           int       `json:"count"`
	Blocked         int       `json:"blocked"`
	TotalRequests   int       `json:"totalRequests"`
	BlockedRequests int       `json:"blockedRequests"`
	Limit           int       `json:"limit"`
	Remaining       int       `json:"remaining"`
	ResetAt         time.Time `json:"resetAt"`
	LastReset       time.Time `json:"lastReset"`
}

// Stats is one limiter's snapshot.
type Stats struct {
	Policy        string         `json:"policy"`
	ActiveWindows int            `json:"activeWindows"`
	Subjects      []SubjectStats `json:"subjects"`
}

type window struct {
	start   time.Time
	count   int
	blocked int

	// Lifetime counters, kept across window resets.
	total        int
	totalBlocked int
	lastReset    time.Time
}

// Limiter applies one policy across subjects with fixed windows. Windows
// reset fully when they elapse.
type Limiter struct {
	policy  Policy
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewLimiter creates a limiter for the policy.
func NewLimiter(policy Policy) *Limiter {
	return &Limiter{
		policy:  policy,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Policy returns the limiter's policy.
func (l *Limiter) Policy() Policy {
	return l.policy
}

// Allow admits or rejects one request for subject. Rejections bump the
// blocked counters without consuming count.
func (l *Limiter) Allow(subject string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[subject]
	if !ok {
		w = &window{start: now, lastReset: now}
		l.windows[subject] = w
	} else if now.Sub(w.start) >= l.policy.Window {
		w.start = now
		w.lastReset = now
		w.count = 0
		w.blocked = 0
	}
	w.total++

	resetAt := w.start.Add(l.policy.Window)
	if w.count >= l.policy.Limit {
		w.blocked++
		w.totalBlocked++
		return Decision{
			Allowed:    false,
			Policy:     l.policy.Name,
			Limit:      l.policy.Limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}
	}
	w.count++
	return Decision{
		Allowed:   true,
		Policy:    l.policy.Name,
		Limit:     l.policy.Limit,
		Remaining: l.policy.Limit - w.count,
		ResetAt:   resetAt,
	}
}

// Stats snapshots every active subject window. Subjects whose window has
// elapsed are omitted; their lifetime counters reappear on the next request.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stats := Stats{
		Policy:   l.policy.Name,
		Subjects: make([]SubjectStats, 0, len(l.windows)),
	}
	for subject, w := range l.windows {
		if now.Sub(w.start) >= l.policy.Window {
			continue
		}
		stats.ActiveWindows++
		remaining := l.policy.Limit - w.count
		if remaining < 0 {
			remaining = 0
		}
		stats.Subjects = append(stats.Subjects, SubjectStats{
			Subject:         subject,
			Count:           w.count,
			Blocked:         w.blocked,
			TotalRequests:   w.total,
			BlockedRequests: w.totalBlocked,
			Limit:           l.policy.Limit,
			Remaining:       remaining,
			ResetAt:         w.start.Add(l.policy.Window),
			LastReset:       w.lastReset,
		})
	}
	return stats
}

// Reset clears one subject's window, or every window when subject is empty.
func (l *Limiter) Reset(subject string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if subject == "" {
		l.windows = make(map[string]*window)
		return
	}
	delete(l.windows, subject)
}
