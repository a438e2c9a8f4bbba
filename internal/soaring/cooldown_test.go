package soaring

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMayNotify(t *testing.T) {
	now := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	cooldown := 4 * time.Hour

	tests := []struct {
		name     string
		lastSent time.Time
		want     bool
	}{
		{"3h59m ago", now.Add(-(3*time.Hour + 59*time.Minute)), false},
		{"exactly 4h ago", now.Add(-4 * time.Hour), true},
		{"4h1m ago", now.Add(-(4*time.Hour + time.Minute)), true},
		{"never sent", time.Time{}, true},
		{"sentinel", NeverSent(now), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MayNotify(tt.lastSent, now, cooldown); got != tt.want {
				t.Fatalf("MayNotify = %v, want %v", got, tt.want)
			}
		})
	}

	if !MayNotify(now, now, 0) {
		t.Fatalf("a zero cooldown always allows")
	}
}

// fakeHistory is an in-memory HistoryStore keyed per (subscriber, station).
type fakeHistory struct {
	last      map[string]time.Time
	records   []NotificationRecord
	lookupErr error
	recordErr error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{last: map[string]time.Time{}}
}

func (f *fakeHistory) LastSent(_ context.Context, sub, station string) (time.Time, error) {
	if f.lookupErr != nil {
		return time.Time{}, f.lookupErr
	}
	return f.last[sub+"|"+station], nil
}

func (f *fakeHistory) Record(_ context.Context, rec NotificationRecord) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.records = append(f.records, rec)
	f.last[rec.SubscriberID+"|"+rec.StationID] = rec.SentAt
	return nil
}

func TestCooldownTrackerIsPerPair(t *testing.T) {
	now := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	h := newFakeHistory()
	h.last["alice|FPS"] = now.Add(-time.Hour)
	tracker := NewCooldownTracker(h)

	st, err := tracker.Status(context.Background(), "alice", "FPS", now, 4*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Allowed || st.Remaining != 3*time.Hour {
		t.Fatalf("expected 3h remaining, got %+v", st)
	}

	for _, pair := range [][2]string{{"alice", "UTOLY"}, {"bob", "FPS"}} {
		st, err := tracker.Status(context.Background(), pair[0], pair[1], now, 4*time.Hour)
		if err != nil || !st.Allowed {
			t.Fatalf("%v should be independent of alice|FPS: %+v, %v", pair, st, err)
		}
		if !st.LastSent.Equal(NeverSent(now)) {
			t.Fatalf("expected never-sent sentinel, got %v", st.LastSent)
		}
	}
}

func TestCooldownTrackerWrapsStoreErrors(t *testing.T) {
	h := newFakeHistory()
	h.lookupErr = errors.New("connection reset")

	_, err := NewCooldownTracker(h).Status(context.Background(), "alice", "FPS", time.Now(), time.Hour)
	var se *StoreError
	if !errors.As(err, &se) || Category(err) != ErrorStore {
		t.Fatalf("expected StoreError, got %v", err)
	}
}
