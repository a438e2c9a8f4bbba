package soaring

import (
	"context"
	"time"
)

// Provider abstracts a station data source (e.g. Synoptic, Open-Meteo).
// Returned observations are ordered oldest first and normalized to mph.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, station StationConfig, lookback time.Duration) ([]Observation, error)
}

// HistoryStore is the append-only notification log.
// LastSent returns the zero time when the pair has never been notified.
type HistoryStore interface {
	LastSent(ctx context.Context, subscriberID, stationID string) (time.Time, error)
	Record(ctx context.Context, rec NotificationRecord) error
}

// MetricsSink receives the summary of every cycle.
type MetricsSink interface {
	RecordRun(ctx context.Context, m RunMetrics) error
}

// MessageFormat selects plain text or rich (HTML) delivery.
type MessageFormat string

const (
	FormatPlain MessageFormat = "plain"
	FormatRich  MessageFormat = "rich"
)

// Notifier delivers a message to a recipient address (a chat id).
type Notifier interface {
	Send(ctx context.Context, address, text string, format MessageFormat) error
}

// Preflighter is implemented by collaborators that can detect missing
// configuration before a cycle starts.
type Preflighter interface {
	Preflight() error
}

// Formatter renders the alert text from structured results.
type Formatter interface {
	Format(sub Subscriber, station StationConfig, obs []Observation, res ConditionResult) (string, MessageFormat)
}

// SubscriberSource loads the subscribers for a cycle.
type SubscriberSource interface {
	Subscribers(ctx context.Context) ([]Subscriber, error)
}

// Operator receives alerts about failed cycles.
type Operator interface {
	Alert(ctx context.Context, text string) error
}
