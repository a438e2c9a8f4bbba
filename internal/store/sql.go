package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/soarbot/internal/db"
	"github.com/i474232898/soarbot/internal/soaring"
)

// timeLayout is fixed width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// SQLStore persists notification history and run metrics through database/sql.
// Queries are written with ? placeholders and rebound for the driver.
type SQLStore struct {
	db     *sql.DB
	driver string
}

func NewSQLStore(conn *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: conn, driver: driver}
}

func (s *SQLStore) q(query string) string {
	return db.Rebind(s.driver, query)
}

func (s *SQLStore) Record(ctx context.Context, rec soaring.NotificationRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO notification_history (id, subscriber_id, station_id, sent_at, message, payload)
		VALUES (?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.SubscriberID, rec.StationID, formatTime(rec.SentAt), rec.Message, string(payload))
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *SQLStore) LastSent(ctx context.Context, subscriberID, stationID string) (time.Time, error) {
	var last string
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT sent_at FROM notification_history
		WHERE subscriber_id = ? AND station_id = ?
		ORDER BY sent_at DESC LIMIT 1`),
		subscriberID, stationID).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query last sent: %w", err)
	}
	return parseTime(last)
}

func (s *SQLStore) Notifications(ctx context.Context, f NotificationFilter) ([]soaring.NotificationRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.SubscriberID != "" {
		where = append(where, "subscriber_id = ?")
		args = append(args, f.SubscriberID)
	}
	if f.StationID != "" {
		where = append(where, "station_id = ?")
		args = append(args, f.StationID)
	}
	query := "SELECT payload FROM notification_history"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY sent_at DESC LIMIT ?"
	args = append(args, f.limit())

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []soaring.NotificationRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec soaring.NotificationRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decode notification: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLStore) RecordRun(ctx context.Context, m soaring.RunMetrics) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode run metrics: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO run_metrics (run_id, started_at, finished_at, runtime_seconds, success, error_message, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		m.RunID, formatTime(m.StartedAt), formatTime(m.FinishedAt), m.RuntimeSeconds,
		db.Bool(m.Success), m.ErrorMessage, string(payload))
	if err != nil {
		return fmt.Errorf("insert run metrics: %w", err)
	}
	return nil
}

func (s *SQLStore) Runs(ctx context.Context, limit int) ([]soaring.RunMetrics, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT payload FROM run_metrics ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []soaring.RunMetrics
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var m soaring.RunMetrics
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			return nil, fmt.Errorf("decode run metrics: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLStore) LatestRun(ctx context.Context) (soaring.RunMetrics, error) {
	runs, err := s.Runs(ctx, 1)
	if err != nil {
		return soaring.RunMetrics{}, err
	}
	if len(runs) == 0 {
		return soaring.RunMetrics{}, ErrNotFound
	}
	return runs[0], nil
}
