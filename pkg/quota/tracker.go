// Package quota bounds how many prompts an unauthenticated connection may
// send per rolling 24-hour window. Records live in memory keyed by
// connection id and are dropped on disconnect; this is a connection-scoped
// soft limit, not an account-level hard limit.
package quota

import (
	"sync"
	"time"
)

// DefaultDailyLimit is the guest prompt allowance per connection per window.
const DefaultDailyLimit = 10

// Window is the rolling period over which guest prompts are counted.
const Window = 24 * time.Hour

type record struct {
	count       int
	windowStart time.Time
}

// Tracker is a keyed in-memory counter with an injected clock so window
// resets are testable without real delays.
type Tracker struct {
	limit int
	now   func() time.Time

	mu     sync.Mutex
	byConn map[string]*record
}

// NewTracker creates a tracker. limit <= 0 falls back to DefaultDailyLimit;
// a nil clock uses time.Now.
func NewTracker(limit int, now func() time.Time) *Tracker {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		limit:  limit,
		now:    now,
		byConn: make(map[string]*record),
	}
}

// Limit returns the per-window allowance.
func (t *Tracker) Limit() int {
	return t.limit
}

// CheckAndConsume consumes one prompt for the connection if the allowance
// permits. At the limit it denies without incrementing. A window older than
// 24h is reset (count=0, windowStart=now) before the check.
func (t *Tracker) CheckAndConsume(connID string) (allowed bool, remaining int) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.byConn[connID]
	if !ok {
		rec = &record{windowStart: now}
		t.byConn[connID] = rec
	}

	if now.Sub(rec.windowStart) > Window {
		rec.count = 0
		rec.windowStart = now
	}

	if rec.count >= t.limit {
		return false, 0
	}

	rec.count++
	return true, t.limit - rec.count
}

// Release drops the connection's record. Called on disconnect.
func (t *Tracker) Release(connID string) {
	t.mu.Lock()
	delete(t.byConn, connID)
	t.mu.Unlock()
}
