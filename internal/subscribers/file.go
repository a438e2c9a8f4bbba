package subscribers

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/i474232898/soarbot/internal/soaring"
)

type fileDoc struct {
	Subscribers []subscriberDoc `yaml:"subscribers"`
}

type subscriberDoc struct {
	ID          string         `yaml:"id"`
	ChatID      string         `yaml:"chat_id"`
	Username    string         `yaml:"username"`
	FirstName   string         `yaml:"first_name"`
	LastName    string         `yaml:"last_name"`
	Preferences preferencesDoc `yaml:"preferences"`
	Stations    []stationDoc   `yaml:"stations"`
}

type preferencesDoc struct {
	Cooldown             string     `yaml:"cooldown"`
	Timezone             string     `yaml:"timezone"`
	NotificationsEnabled *bool      `yaml:"notifications_enabled"`
	MessageRows          int        `yaml:"message_rows"`
	WinterMiddayAllowed  *bool      `yaml:"winter_midday_allowed"`
	QuietHours           *windowDoc `yaml:"quiet_hours"`
}

type windowDoc struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type stationDoc struct {
	ID                  string   `yaml:"id"`
	Name                string   `yaml:"name"`
	CustomName          string   `yaml:"custom_name"`
	Description         string   `yaml:"description"`
	Provider            string   `yaml:"provider"`
	WindSpeedMin        float64  `yaml:"wind_speed_min"`
	WindSpeedMax        float64  `yaml:"wind_speed_max"`
	WindDirectionMin    float64  `yaml:"wind_direction_min"`
	WindDirectionMax    float64  `yaml:"wind_direction_max"`
	MaxGustDifferential float64  `yaml:"max_gust_differential"`
	MaxPrecipitation    float64  `yaml:"max_precipitation"`
	Priority            int      `yaml:"priority"`
	Enabled             *bool    `yaml:"enabled"`
	Latitude            *float64 `yaml:"latitude"`
	Longitude           *float64 `yaml:"longitude"`
	LookbackMinutes     int      `yaml:"lookback_minutes"`
}

// FileSource loads subscribers from a YAML file. The file is re-read on every
// call so edits apply on the next cycle.
type FileSource struct {
	path     string
	defaults Defaults
}

func NewFileSource(path string, defaults Defaults) *FileSource {
	return &FileSource{path: path, defaults: defaults.withFallbacks()}
}

func (s *FileSource) Subscribers(_ context.Context) ([]soaring.Subscriber, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read subscribers file: %w", err)
	}
	return Parse(data, s.defaults)
}

// Parse decodes and validates a YAML subscribers document.
func Parse(data []byte, defaults Defaults) ([]soaring.Subscriber, error) {
	defaults = defaults.withFallbacks()

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode subscribers yaml: %w", err)
	}

	out := make([]soaring.Subscriber, 0, len(doc.Subscribers))
	for _, d := range doc.Subscribers {
		sub, err := d.toSubscriber(defaults)
		if err != nil {
			return nil, err
		}
		if sub, err = finalize(sub); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func (d subscriberDoc) toSubscriber(defaults Defaults) (soaring.Subscriber, error) {
	prefs := soaring.UserPreferences{
		Cooldown:             defaults.Cooldown,
		Timezone:             d.Preferences.Timezone,
		NotificationsEnabled: boolOr(d.Preferences.NotificationsEnabled, true),
		MessageRows:          d.Preferences.MessageRows,
		WinterMiddayAllowed:  boolOr(d.Preferences.WinterMiddayAllowed, true),
	}
	if prefs.Timezone == "" {
		prefs.Timezone = defaults.Timezone
	}
	if d.Preferences.Cooldown != "" {
		cd, err := time.ParseDuration(d.Preferences.Cooldown)
		if err != nil {
			return soaring.Subscriber{}, fmt.Errorf("subscriber %s: invalid cooldown %q: %w", d.ID, d.Preferences.Cooldown, err)
		}
		prefs.Cooldown = cd
	}
	if q := d.Preferences.QuietHours; q != nil {
		w, err := parseWindow(q.Start, q.End)
		if err != nil {
			return soaring.Subscriber{}, fmt.Errorf("subscriber %s: quiet hours: %w", d.ID, err)
		}
		prefs.QuietHours = w
	}

	sub := soaring.Subscriber{
		ID:          d.ID,
		ChatID:      d.ChatID,
		Username:    d.Username,
		FirstName:   d.FirstName,
		LastName:    d.LastName,
		Preferences: prefs,
	}
	for _, st := range d.Stations {
		sub.Stations = append(sub.Stations, soaring.StationConfig{
			ID:                  st.ID,
			Name:                st.Name,
			CustomName:          st.CustomName,
			Description:         st.Description,
			Provider:            stringOr(st.Provider, "synoptic"),
			WindSpeedMin:        st.WindSpeedMin,
			WindSpeedMax:        st.WindSpeedMax,
			WindDirectionMin:    st.WindDirectionMin,
			WindDirectionMax:    st.WindDirectionMax,
			MaxGustDifferential: st.MaxGustDifferential,
			MaxPrecipitation:    st.MaxPrecipitation,
			Priority:            st.Priority,
			Enabled:             boolOr(st.Enabled, true),
			Latitude:            st.Latitude,
			Longitude:           st.Longitude,
			LookbackMinutes:     st.LookbackMinutes,
		})
	}
	return sub, nil
}

// parseWindow returns nil when both ends are empty.
func parseWindow(start, end string) (*soaring.TimeWindow, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	s, err := soaring.ParseClock(start)
	if err != nil {
		return nil, err
	}
	e, err := soaring.ParseClock(end)
	if err != nil {
		return nil, err
	}
	return &soaring.TimeWindow{Start: s, End: e}, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
