package store

import (
	"context"
	"errors"
	"sort"

	"github.com/i474232898/soarbot/internal/soaring"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// DefaultLimit caps list queries that do not set one.
const DefaultLimit = 50

// NotificationFilter narrows a notification history listing. Empty fields match all.
type NotificationFilter struct {
	SubscriberID string
	StationID    string
	Limit        int
}

func (f NotificationFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultLimit
	}
	return f.Limit
}

// Reader is the read side used by the status API. Listings are newest first.
type Reader interface {
	Notifications(ctx context.Context, f NotificationFilter) ([]soaring.NotificationRecord, error)
	Runs(ctx context.Context, limit int) ([]soaring.RunMetrics, error)
	LatestRun(ctx context.Context) (soaring.RunMetrics, error)
}

func pairKey(subscriberID, stationID string) string {
	return subscriberID + "|" + stationID
}

func sortRecords(recs []soaring.NotificationRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].SentAt.After(recs[j].SentAt)
	})
}
