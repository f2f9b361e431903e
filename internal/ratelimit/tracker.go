// Package ratelimit tracks per-endpoint quota state reported by the remote
// platform. The platform is the source of truth: every API response carries
// the current limit, the calls remaining in the window, and when the window
// resets. The tracker mirrors that state locally so callers can decide
// whether a call is worth attempting before spending it.
package ratelimit

import (
	"sync"
	"time"
)

// Window is the quota state for one endpoint as last reported remotely.
type Window struct {
	// Limit is the total calls allowed per window.
	Limit int
	// Remaining is the calls left in the current window.
	Remaining int
	// ResetAt is when the window rolls over and the quota refills.
	ResetAt time.Time
}

// Tracker maintains quota windows keyed by endpoint name. It is safe for
// concurrent use. Endpoints with no recorded state are treated
// optimistically: a call is allowed until the platform says otherwise.
type Tracker struct {
	mu      sync.Mutex
	windows map[string]Window

	// now is swappable for tests.
	now func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		windows: make(map[string]Window),
		now:     time.Now,
	}
}

// RecordResponse stores the quota state reported by the platform for an
// endpoint, replacing any previous state.
func (t *Tracker) RecordResponse(endpoint string, limit, remaining int, resetAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.windows[endpoint] = Window{
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// CanCall reports whether a call to the endpoint should be attempted.
// Unknown endpoints are allowed. An exhausted window is allowed again once
// its reset time has passed; the stale entry is dropped so the endpoint
// reverts to the optimistic default until fresh state arrives.
func (t *Tracker) CanCall(endpoint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[endpoint]
	if !ok {
		return true
	}
	if !t.now().Before(w.ResetAt) {
		delete(t.windows, endpoint)
		return true
	}
	return w.Remaining > 0
}

// TimeUntilReset returns how long until the endpoint's window resets. It
// returns zero for unknown endpoints and for windows that have already
// reset.
func (t *Tracker) TimeUntilReset(endpoint string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[endpoint]
	if !ok {
		return 0
	}
	d := w.ResetAt.Sub(t.now())
	if d < 0 {
		return 0
	}
	return d
}

// Status returns a snapshot of all tracked windows, keyed by endpoint.
func (t *Tracker) Status() map[string]Window {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Window, len(t.windows))
	for k, v := range t.windows {
		out[k] = v
	}
	return out
}
