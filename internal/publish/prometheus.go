package publish

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/soarbot/internal/soaring"
)

// PrometheusSink exposes cycle summaries as Prometheus metrics.
type PrometheusSink struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	notifications prometheus.Counter
	failures      prometheus.Counter
	cooldowns     prometheus.Counter
	conditionsMet prometheus.Counter
	errors        *prometheus.CounterVec
	stations      *prometheus.GaugeVec
	runtime       prometheus.Histogram
	lastRun       prometheus.Gauge
	winter        prometheus.Gauge
}

func NewPrometheusSink() *PrometheusSink {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &PrometheusSink{
		registry: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "soarbot_runs_total",
			Help: "Completed cycles by outcome",
		}, []string{"success"}),
		notifications: f.NewCounter(prometheus.CounterOpts{
			Name: "soarbot_notifications_sent_total",
			Help: "Notifications delivered to subscribers",
		}),
		failures: f.NewCounter(prometheus.CounterOpts{
			Name: "soarbot_notification_failures_total",
			Help: "Notification deliveries that failed",
		}),
		cooldowns: f.NewCounter(prometheus.CounterOpts{
			Name: "soarbot_cooldown_blocks_total",
			Help: "Favorable stations suppressed by the cooldown",
		}),
		conditionsMet: f.NewCounter(prometheus.CounterOpts{
			Name: "soarbot_conditions_met_total",
			Help: "Station checks where every condition passed",
		}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "soarbot_errors_total",
			Help: "Errors counted during cycles by category",
		}, []string{"category"}),
		stations: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "soarbot_last_run_stations",
			Help: "Station counts from the most recent cycle",
		}, []string{"state"}),
		runtime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "soarbot_run_duration_seconds",
			Help:    "Cycle wall time",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "soarbot_last_run_timestamp_seconds",
			Help: "Unix time the most recent cycle finished",
		}),
		winter: f.NewGauge(prometheus.GaugeOpts{
			Name: "soarbot_winter_mode",
			Help: "1 when the most recent cycle ran in winter mode",
		}),
	}
}

func (s *PrometheusSink) RecordRun(_ context.Context, m soaring.RunMetrics) error {
	success := "false"
	if m.Success {
		success = "true"
	}
	s.runs.WithLabelValues(success).Inc()
	s.notifications.Add(float64(m.NotificationsSent))
	s.failures.Add(float64(m.NotificationFailures))
	s.cooldowns.Add(float64(m.CooldownBlocks))
	s.conditionsMet.Add(float64(m.ConditionsMet))
	for cat, n := range m.Errors {
		s.errors.WithLabelValues(string(cat)).Add(float64(n))
	}

	s.stations.WithLabelValues("total").Set(float64(m.StationsTotal))
	s.stations.WithLabelValues("checked").Set(float64(m.StationsChecked))
	s.stations.WithLabelValues("with_data").Set(float64(m.StationsWithData))
	s.stations.WithLabelValues("disabled").Set(float64(m.StationsDisabled))

	s.runtime.Observe(m.RuntimeSeconds)
	if !m.FinishedAt.IsZero() {
		s.lastRun.Set(float64(m.FinishedAt.Unix()))
	}
	if m.WinterMode {
		s.winter.Set(1)
	} else {
		s.winter.Set(0)
	}
	return nil
}

// Handler serves the sink's registry in the Prometheus text format.
func (s *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
