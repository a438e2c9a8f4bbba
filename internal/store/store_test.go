package store

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"

	"github.com/i474232898/soarbot/internal/db"
	"github.com/i474232898/soarbot/internal/soaring"
)

var base = time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)

func record(id, sub, station string, at time.Time) soaring.NotificationRecord {
	return soaring.NotificationRecord{
		ID:           id,
		SubscriberID: sub,
		StationID:    station,
		SentAt:       at,
		Message:      "conditions look good",
		Result:       soaring.ConditionResult{StationID: station, Met: true},
		Observations: []soaring.Observation{{Timestamp: at, WindSpeed: 12, WindGust: 14, WindDirection: 160, Cardinal: "SSE"}},
	}
}

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := db.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLStore(conn, db.DriverSQLite)
}

type historyStore interface {
	soaring.HistoryStore
	soaring.MetricsSink
	Reader
}

func backends(t *testing.T) map[string]historyStore {
	return map[string]historyStore{
		"memory": NewMemoryStore(0, 0),
		"sqlite": newSQLiteStore(t),
	}
}

func TestLastSent(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			last, err := s.LastSent(ctx, "u1", "FPS")
			if err != nil || !last.IsZero() {
				t.Fatalf("expected zero time for unknown pair, got %v, %v", last, err)
			}

			for i, at := range []time.Time{base, base.Add(2 * time.Hour), base.Add(time.Hour)} {
				if err := s.Record(ctx, record(string(rune('a'+i)), "u1", "FPS", at)); err != nil {
					t.Fatalf("record: %v", err)
				}
			}
			if err := s.Record(ctx, record("z", "u2", "FPS", base.Add(5*time.Hour))); err != nil {
				t.Fatalf("record: %v", err)
			}

			last, err = s.LastSent(ctx, "u1", "FPS")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !last.Equal(base.Add(2 * time.Hour)) {
				t.Fatalf("expected latest send, got %v", last)
			}
		})
	}
}

func TestNotificationsFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_ = s.Record(ctx, record("1", "u1", "FPS", base))
			_ = s.Record(ctx, record("2", "u1", "UTOLY", base.Add(time.Hour)))
			_ = s.Record(ctx, record("3", "u2", "FPS", base.Add(2*time.Hour)))

			all, err := s.Notifications(ctx, NotificationFilter{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(all) != 3 || all[0].ID != "3" || all[2].ID != "1" {
				t.Fatalf("expected newest first, got %+v", ids(all))
			}

			fps, _ := s.Notifications(ctx, NotificationFilter{StationID: "FPS"})
			if len(fps) != 2 {
				t.Fatalf("expected 2 FPS records, got %v", ids(fps))
			}

			one, _ := s.Notifications(ctx, NotificationFilter{SubscriberID: "u1", Limit: 1})
			if len(one) != 1 || one[0].ID != "2" {
				t.Fatalf("expected only record 2, got %v", ids(one))
			}
			if one[0].Observations[0].Cardinal != "SSE" || !one[0].Result.Met {
				t.Fatalf("payload not preserved: %+v", one[0])
			}
		})
	}
}

func ids(recs []soaring.NotificationRecord) []string {
	var out []string
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.LatestRun(ctx); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			first := soaring.NewRunMetrics("run-1", base)
			second := soaring.NewRunMetrics("run-2", base.Add(5*time.Minute))
			second.Success = false
			second.ErrorMessage = "cycle interrupted"
			second.Errors[soaring.ErrorTimeout] = 1
			// NaN readings must survive a round trip as missing values.
			second.Stations = []soaring.StationDetail{{
				StationID: "FPS",
				Latest:    []soaring.Observation{{Timestamp: base, WindSpeed: math.NaN()}},
			}}

			if err := s.RecordRun(ctx, first); err != nil {
				t.Fatalf("record run: %v", err)
			}
			if err := s.RecordRun(ctx, second); err != nil {
				t.Fatalf("record run: %v", err)
			}

			latest, err := s.LatestRun(ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if latest.RunID != "run-2" || latest.Success || latest.ErrorCount(soaring.ErrorTimeout) != 1 {
				t.Fatalf("unexpected latest run %+v", latest)
			}
			if !math.IsNaN(latest.Stations[0].Latest[0].WindSpeed) {
				t.Fatalf("expected NaN speed after round trip")
			}

			runs, _ := s.Runs(ctx, 10)
			if len(runs) != 2 || runs[1].RunID != "run-1" {
				t.Fatalf("unexpected runs %+v", runs)
			}
		})
	}
}

func TestMemoryStoreRetention(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, 0)
	for i := 0; i < 4; i++ {
		_ = s.Record(ctx, record(string(rune('a'+i)), "u1", "FPS", base.Add(time.Duration(i)*time.Hour)))
	}
	recs, _ := s.Notifications(ctx, NotificationFilter{})
	if len(recs) != 2 || recs[0].ID != "d" {
		t.Fatalf("expected last 2 records, got %v", ids(recs))
	}

	aged := NewMemoryStore(0, 24*time.Hour)
	aged.now = func() time.Time { return base.Add(72 * time.Hour) }
	_ = aged.Record(ctx, record("old", "u1", "FPS", base))
	_ = aged.Record(ctx, record("newer", "u1", "FPS", base.Add(time.Hour)))
	last, _ := aged.LastSent(ctx, "u1", "FPS")
	if !last.Equal(base.Add(time.Hour)) {
		t.Fatalf("newest record must be kept, got %v", last)
	}
}

type fakeRedis struct {
	data map[string]string
	gets int
	fail bool
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.gets++
	if f.fail {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	if f.fail {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	f.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

type countingHistory struct {
	*MemoryStore
	lookups int
}

func (c *countingHistory) LastSent(ctx context.Context, sub, station string) (time.Time, error) {
	c.lookups++
	return c.MemoryStore.LastSent(ctx, sub, station)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	next := &countingHistory{MemoryStore: NewMemoryStore(0, 0)}
	kv := &fakeRedis{data: map[string]string{}}
	cache := NewRedisCache(kv, next, time.Hour)

	if err := cache.Record(ctx, record("1", "u1", "FPS", base)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, ok := kv.data["soarbot:last_sent:u1:FPS"]; !ok {
		t.Fatalf("expected cache entry after record, got %v", kv.data)
	}

	last, err := cache.LastSent(ctx, "u1", "FPS")
	if err != nil || !last.Equal(base) {
		t.Fatalf("unexpected cached value %v, %v", last, err)
	}
	if next.lookups != 0 {
		t.Fatalf("expected cache hit, store consulted %d times", next.lookups)
	}

	kv.fail = true
	last, err = cache.LastSent(ctx, "u1", "FPS")
	if err != nil || !last.Equal(base) {
		t.Fatalf("expected fallback to store, got %v, %v", last, err)
	}
	if next.lookups != 1 {
		t.Fatalf("expected one store lookup, got %d", next.lookups)
	}
}
