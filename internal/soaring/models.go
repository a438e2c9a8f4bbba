package soaring

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Observation is a single normalized station reading.
// Wind speeds are in mph, direction in degrees.
type Observation struct {
	Timestamp     time.Time `json:"timestamp"` // always UTC
	WindSpeed     float64   `json:"windSpeed"`
	WindGust      float64   `json:"windGust"`
	WindDirection float64   `json:"windDirection"`
	Precipitation float64   `json:"precipitation"`
	Cardinal      string    `json:"cardinal"`
}

// StationConfig describes one station a subscriber follows and the launch
// criteria for it.
type StationConfig struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name"`
	CustomName  string `json:"customName,omitempty"`
	Description string `json:"description,omitempty"`
	Provider    string `json:"provider" validate:"required"`

	WindSpeedMin        float64 `json:"windSpeedMin" validate:"gte=0"`
	WindSpeedMax        float64 `json:"windSpeedMax" validate:"gtefield=WindSpeedMin"`
	WindDirectionMin    float64 `json:"windDirectionMin" validate:"gte=0,lte=360"`
	WindDirectionMax    float64 `json:"windDirectionMax" validate:"gte=0,lte=360,gtefield=WindDirectionMin"`
	MaxGustDifferential float64 `json:"maxGustDifferential" validate:"gte=0"`
	MaxPrecipitation    float64 `json:"maxPrecipitation" validate:"gte=0"`

	Priority int  `json:"priority"`
	Enabled  bool `json:"enabled"`

	// Optional coordinates, required by coordinate based providers and used
	// for solar daylight.
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`

	// LookbackMinutes overrides the service wide fetch window when > 0.
	LookbackMinutes int `json:"lookbackMinutes,omitempty" validate:"gte=0"`
}

// DisplayName returns the custom name if set, else the station name, else the id.
func (s StationConfig) DisplayName() string {
	if s.CustomName != "" {
		return s.CustomName
	}
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// UserPreferences holds per subscriber notification settings.
type UserPreferences struct {
	Cooldown             time.Duration `json:"cooldown" validate:"gte=0"`
	Timezone             string        `json:"timezone" validate:"required,timezone"`
	NotificationsEnabled bool          `json:"notificationsEnabled"`
	MessageRows          int           `json:"messageRows" validate:"gte=1,lte=50"`
	// WinterMiddayAllowed lifts the midday exclusion outside winter.
	// Subscriber sources default it to true.
	WinterMiddayAllowed  bool          `json:"winterMiddayAllowed"`
	QuietHours           *TimeWindow   `json:"quietHours,omitempty"`
}

// Location resolves the preference timezone, falling back to UTC.
func (p UserPreferences) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil || p.Timezone == "" {
		return time.UTC
	}
	return loc
}

// Subscriber is someone receiving alerts, with stations ordered by priority.
type Subscriber struct {
	ID          string          `json:"id" validate:"required"`
	ChatID      string          `json:"chatId" validate:"required"`
	Username    string          `json:"username,omitempty"`
	FirstName   string          `json:"firstName,omitempty"`
	LastName    string          `json:"lastName,omitempty"`
	Preferences UserPreferences `json:"preferences"`
	Stations    []StationConfig `json:"stations" validate:"dive"`
}

// NotificationRecord is an entry in the append-only notification history.
type NotificationRecord struct {
	ID           string          `json:"id"`
	SubscriberID string          `json:"subscriberId"`
	StationID    string          `json:"stationId"`
	SentAt       time.Time       `json:"sentAt"`
	Message      string          `json:"message"`
	Result       ConditionResult `json:"conditions"`
	Observations []Observation   `json:"stationData"`
}

// ClockTime is a time of day expressed in minutes after midnight.
type ClockTime int

// Clock builds a ClockTime from hours and minutes.
func Clock(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ClockOf returns the time of day of t in t's location.
func ClockOf(t time.Time) ClockTime {
	return Clock(t.Hour(), t.Minute())
}

// ParseClock parses "HH:MM" (a trailing ":SS" is accepted and ignored).
func ParseClock(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock time %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q: bad minute", s)
	}
	return Clock(h, m), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// TimeWindow is a half-open [Start, End) time-of-day range. When Start is
// after End the window wraps midnight. Start == End is an empty window.
type TimeWindow struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// Contains reports whether c falls inside the window.
func (w TimeWindow) Contains(c ClockTime) bool {
	switch {
	case w.Start == w.End:
		return false
	case w.Start < w.End:
		return c >= w.Start && c < w.End
	default:
		return c >= w.Start || c < w.End
	}
}

func (w TimeWindow) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// Cardinal converts a bearing in degrees to a 16 point compass label.
func Cardinal(deg float64) string {
	points := [...]string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
		"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}
	if deg != deg {
		return "-"
	}
	for deg < 0 {
		deg += 360
	}
	idx := int((deg+11.25)/22.5) % len(points)
	return points[idx]
}
