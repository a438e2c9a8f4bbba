package store

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/soarbot/internal/soaring"
)

// MemoryStore is a concurrency-safe in-memory notification history and run
// metrics store. Nothing survives a restart.
type MemoryStore struct {
	mu sync.RWMutex

	// key: subscriber|station, value: records oldest first
	history map[string][]soaring.NotificationRecord
	runs    []soaring.RunMetrics

	// retention configuration
	maxHistory int           // max records per pair, and max runs kept
	maxAge     time.Duration // optional max age for records
	now        func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		history:    make(map[string][]soaring.NotificationRecord),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Record appends a notification and enforces retention.
func (s *MemoryStore) Record(_ context.Context, rec soaring.NotificationRecord) error {
	key := pairKey(rec.SubscriberID, rec.StationID)

	s.mu.Lock()
	defer s.mu.Unlock()

	records := append(s.history[key], rec)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(records) > s.maxHistory {
		records = records[len(records)-s.maxHistory:]
	}

	// Enforce retention by age, always keeping the newest record so the
	// cooldown still sees it.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(records)-1; i++ {
			if !records[i].SentAt.Before(cutoff) {
				break
			}
		}
		records = records[i:]
	}

	s.history[key] = records
	return nil
}

// LastSent returns the most recent send time for the pair, or the zero time.
func (s *MemoryStore) LastSent(_ context.Context, subscriberID, stationID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last time.Time
	for _, rec := range s.history[pairKey(subscriberID, stationID)] {
		if rec.SentAt.After(last) {
			last = rec.SentAt
		}
	}
	return last, nil
}

// Notifications lists records matching f, newest first.
func (s *MemoryStore) Notifications(_ context.Context, f NotificationFilter) ([]soaring.NotificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []soaring.NotificationRecord
	for _, records := range s.history {
		for _, rec := range records {
			if f.SubscriberID != "" && rec.SubscriberID != f.SubscriberID {
				continue
			}
			if f.StationID != "" && rec.StationID != f.StationID {
				continue
			}
			out = append(out, rec)
		}
	}
	sortRecords(out)
	if len(out) > f.limit() {
		out = out[:f.limit()]
	}
	return out, nil
}

// RecordRun keeps the run summary.
func (s *MemoryStore) RecordRun(_ context.Context, m soaring.RunMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append(s.runs, m)
	if s.maxHistory > 0 && len(s.runs) > s.maxHistory {
		s.runs = s.runs[len(s.runs)-s.maxHistory:]
	}
	return nil
}

// Runs returns up to limit run summaries, newest first.
func (s *MemoryStore) Runs(_ context.Context, limit int) ([]soaring.RunMetrics, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]soaring.RunMetrics, 0, min(limit, len(s.runs)))
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}

// LatestRun returns the most recent run summary.
func (s *MemoryStore) LatestRun(_ context.Context) (soaring.RunMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.runs) == 0 {
		return soaring.RunMetrics{}, ErrNotFound
	}
	return s.runs[len(s.runs)-1], nil
}
