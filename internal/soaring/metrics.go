package soaring

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorCategory buckets errors counted during a cycle.
type ErrorCategory string

const (
	ErrorProvider         ErrorCategory = "provider"
	ErrorStore            ErrorCategory = "store"
	ErrorDelivery         ErrorCategory = "delivery"
	ErrorInsufficientData ErrorCategory = "insufficient_data"
	ErrorConfig           ErrorCategory = "config"
	ErrorTimeout          ErrorCategory = "timeout"
	ErrorOther            ErrorCategory = "other"
)

// StationDetail records what happened to one (subscriber, station) pair in a cycle.
type StationDetail struct {
	SubscriberID           string           `json:"subscriberId"`
	StationID              string           `json:"stationId"`
	StationName            string           `json:"stationName"`
	Enabled                bool             `json:"enabled"`
	Priority               int              `json:"priority"`
	HasData                bool             `json:"hasData"`
	APIError               string           `json:"apiError,omitempty"`
	Result                 *ConditionResult `json:"conditionsResult,omitempty"`
	CooldownActive         bool             `json:"cooldownActive"`
	CooldownRemainingHours float64          `json:"cooldownRemainingHours,omitempty"`
	NotificationSent       bool             `json:"notificationSent"`
	NotificationError      string           `json:"notificationError,omitempty"`
	Latest                 []Observation    `json:"latestWeatherData,omitempty"`
}

// RunMetrics summarizes one poll-evaluate-notify cycle.
type RunMetrics struct {
	RunID          string    `json:"runId"`
	StartedAt      time.Time `json:"startTime"`
	FinishedAt     time.Time `json:"endTime"`
	RuntimeSeconds float64   `json:"runtimeSeconds"`

	UsersFound   int `json:"usersFound"`
	UsersChecked int `json:"usersChecked"`
	UsersSkipped int `json:"usersSkipped"`

	StationsTotal    int `json:"stationsTotal"`
	StationsChecked  int `json:"stationsChecked"`
	StationsWithData int `json:"stationsWithData"`
	StationsDisabled int `json:"stationsDisabled"`

	ConditionsMet        int `json:"conditionsMetCount"`
	CooldownBlocks       int `json:"cooldownBlocks"`
	NotificationsSent    int `json:"notificationsSent"`
	NotificationFailures int `json:"notificationFailures"`

	Errors map[ErrorCategory]int `json:"errors"`

	WinterMode   bool   `json:"winterMode"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	Stations []StationDetail `json:"stationDetails"`
}

// NewRunMetrics starts an empty, successful run summary.
func NewRunMetrics(runID string, start time.Time) RunMetrics {
	return RunMetrics{
		RunID:     runID,
		StartedAt: start.UTC(),
		Errors:    make(map[ErrorCategory]int),
		Success:   true,
	}
}

// ErrorCount returns the number of errors counted for cat.
func (m RunMetrics) ErrorCount(cat ErrorCategory) int {
	return m.Errors[cat]
}

func (m *RunMetrics) countError(cat ErrorCategory) {
	if m.Errors == nil {
		m.Errors = make(map[ErrorCategory]int)
	}
	m.Errors[cat]++
}

// fail marks the run failed; the first message wins.
func (m *RunMetrics) fail(cat ErrorCategory, err error) {
	m.countError(cat)
	m.Success = false
	if m.ErrorMessage == "" {
		m.ErrorMessage = err.Error()
	}
}

func (m *RunMetrics) finish(end time.Time) {
	m.FinishedAt = end.UTC()
	m.RuntimeSeconds = end.Sub(m.StartedAt).Seconds()
}

// Summary is a one line description of the run.
func (m RunMetrics) Summary() string {
	return fmt.Sprintf("%d notifications sent from %d station checks across %d users in %.2fs",
		m.NotificationsSent, m.StationsChecked, m.UsersChecked, m.RuntimeSeconds)
}

// MultiSink fans a run summary out to several sinks, joining their errors.
type MultiSink []MetricsSink

func (ms MultiSink) RecordRun(ctx context.Context, m RunMetrics) error {
	var errs []error
	for _, s := range ms {
		if err := s.RecordRun(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
