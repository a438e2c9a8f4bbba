package soaring

import (
	"context"
	"time"
)

// NeverSentAge is how far in the past a missing last-sent time is placed.
const NeverSentAge = 365 * 24 * time.Hour

// NeverSent is the last-sent sentinel for a pair with no history.
func NeverSent(now time.Time) time.Time {
	return now.Add(-NeverSentAge)
}

// MayNotify reports whether at least cooldown has elapsed since lastSent.
// A zero lastSent is treated as NeverSent(now).
func MayNotify(lastSent, now time.Time, cooldown time.Duration) bool {
	if lastSent.IsZero() {
		lastSent = NeverSent(now)
	}
	return now.Sub(lastSent) >= cooldown
}

// CooldownStatus describes the cooldown state of one (subscriber, station) pair.
type CooldownStatus struct {
	LastSent  time.Time
	Allowed   bool
	Remaining time.Duration
}

// CooldownTracker answers cooldown questions from the notification history.
type CooldownTracker struct {
	history HistoryStore
}

// NewCooldownTracker creates a tracker backed by history.
func NewCooldownTracker(history HistoryStore) *CooldownTracker {
	return &CooldownTracker{history: history}
}

// Status looks up the last notification for the pair and applies the cooldown.
func (t *CooldownTracker) Status(ctx context.Context, subscriberID, stationID string, now time.Time, cooldown time.Duration) (CooldownStatus, error) {
	last, err := t.history.LastSent(ctx, subscriberID, stationID)
	if err != nil {
		return CooldownStatus{}, &StoreError{Op: "last sent", Err: err}
	}
	if last.IsZero() {
		last = NeverSent(now)
	}
	st := CooldownStatus{LastSent: last, Allowed: MayNotify(last, now, cooldown)}
	if !st.Allowed {
		st.Remaining = cooldown - now.Sub(last)
	}
	return st, nil
}
