package subscribers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/i474232898/soarbot/internal/db"
	"github.com/i474232898/soarbot/internal/soaring"
)

// SQLSource loads subscribers from the subscribers and subscriber_stations tables.
type SQLSource struct {
	db       *sql.DB
	driver   string
	defaults Defaults
}

func NewSQLSource(conn *sql.DB, driver string, defaults Defaults) *SQLSource {
	return &SQLSource{db: conn, driver: driver, defaults: defaults.withFallbacks()}
}

func (s *SQLSource) q(query string) string {
	return db.Rebind(s.driver, query)
}

func (s *SQLSource) Subscribers(ctx context.Context) ([]soaring.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, username, first_name, last_name, cooldown_seconds, timezone,
		       notifications_enabled, message_rows, winter_midday_allowed, quiet_start, quiet_end
		FROM subscribers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var (
		subs  []soaring.Subscriber
		index = map[string]int{}
	)
	for rows.Next() {
		var (
			sub                   soaring.Subscriber
			cooldownSeconds       int64
			enabled, winterMidday int
			quietStart, quietEnd  string
		)
		err := rows.Scan(&sub.ID, &sub.ChatID, &sub.Username, &sub.FirstName, &sub.LastName,
			&cooldownSeconds, &sub.Preferences.Timezone, &enabled, &sub.Preferences.MessageRows,
			&winterMidday, &quietStart, &quietEnd)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		sub.Preferences.Cooldown = time.Duration(cooldownSeconds) * time.Second
		sub.Preferences.NotificationsEnabled = enabled != 0
		sub.Preferences.WinterMiddayAllowed = winterMidday != 0
		if sub.Preferences.Timezone == "" {
			sub.Preferences.Timezone = s.defaults.Timezone
		}
		if sub.Preferences.QuietHours, err = parseWindow(quietStart, quietEnd); err != nil {
			return nil, fmt.Errorf("subscriber %s: quiet hours: %w", sub.ID, err)
		}
		index[sub.ID] = len(subs)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadStations(ctx, subs, index); err != nil {
		return nil, err
	}

	for i := range subs {
		if subs[i], err = finalize(subs[i]); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

func (s *SQLSource) loadStations(ctx context.Context, subs []soaring.Subscriber, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subscriber_id, station_id, name, custom_name, description, provider,
		       wind_speed_min, wind_speed_max, wind_direction_min, wind_direction_max,
		       max_gust_differential, max_precipitation, priority, enabled,
		       latitude, longitude, lookback_minutes
		FROM subscriber_stations ORDER BY subscriber_id, priority`)
	if err != nil {
		return fmt.Errorf("query subscriber stations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			subID    string
			st       soaring.StationConfig
			enabled  int
			lat, lon sql.NullFloat64
		)
		err := rows.Scan(&subID, &st.ID, &st.Name, &st.CustomName, &st.Description, &st.Provider,
			&st.WindSpeedMin, &st.WindSpeedMax, &st.WindDirectionMin, &st.WindDirectionMax,
			&st.MaxGustDifferential, &st.MaxPrecipitation, &st.Priority, &enabled,
			&lat, &lon, &st.LookbackMinutes)
		if err != nil {
			return fmt.Errorf("scan subscriber station: %w", err)
		}
		st.Enabled = enabled != 0
		if lat.Valid {
			st.Latitude = &lat.Float64
		}
		if lon.Valid {
			st.Longitude = &lon.Float64
		}

		i, ok := index[subID]
		if !ok {
			continue
		}
		subs[i].Stations = append(subs[i].Stations, st)
	}
	return rows.Err()
}

// Save inserts or replaces a subscriber and its stations.
func (s *SQLSource) Save(ctx context.Context, sub soaring.Subscriber) error {
	if _, err := finalize(sub); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var quietStart, quietEnd string
	if w := sub.Preferences.QuietHours; w != nil {
		quietStart, quietEnd = w.Start.String(), w.End.String()
	}
	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO subscribers (id, chat_id, username, first_name, last_name, cooldown_seconds, timezone,
		                         notifications_enabled, message_rows, winter_midday_allowed, quiet_start, quiet_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			chat_id = excluded.chat_id,
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			cooldown_seconds = excluded.cooldown_seconds,
			timezone = excluded.timezone,
			notifications_enabled = excluded.notifications_enabled,
			message_rows = excluded.message_rows,
			winter_midday_allowed = excluded.winter_midday_allowed,
			quiet_start = excluded.quiet_start,
			quiet_end = excluded.quiet_end`),
		sub.ID, sub.ChatID, sub.Username, sub.FirstName, sub.LastName,
		int64(sub.Preferences.Cooldown/time.Second), sub.Preferences.Timezone,
		db.Bool(sub.Preferences.NotificationsEnabled), sub.Preferences.MessageRows,
		db.Bool(sub.Preferences.WinterMiddayAllowed), quietStart, quietEnd)
	if err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM subscriber_stations WHERE subscriber_id = ?`), sub.ID); err != nil {
		return fmt.Errorf("clear subscriber stations: %w", err)
	}
	for _, st := range sub.Stations {
		_, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO subscriber_stations (subscriber_id, station_id, name, custom_name, description, provider,
			                                 wind_speed_min, wind_speed_max, wind_direction_min, wind_direction_max,
			                                 max_gust_differential, max_precipitation, priority, enabled,
			                                 latitude, longitude, lookback_minutes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			sub.ID, st.ID, st.Name, st.CustomName, st.Description, st.Provider,
			st.WindSpeedMin, st.WindSpeedMax, st.WindDirectionMin, st.WindDirectionMax,
			st.MaxGustDifferential, st.MaxPrecipitation, st.Priority, db.Bool(st.Enabled),
			st.Latitude, st.Longitude, st.LookbackMinutes)
		if err != nil {
			return fmt.Errorf("insert station %s: %w", st.ID, err)
		}
	}
	return tx.Commit()
}
