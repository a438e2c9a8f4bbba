package soaring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
)

// DefaultLookback is how much station history is fetched per check.
const DefaultLookback = 120 * time.Minute

// Options wires the collaborators of a Service. Sink and Operator are optional.
type Options struct {
	Providers      []Provider
	History        HistoryStore
	Notifier       Notifier
	Formatter      Formatter
	Evaluator      Evaluator
	Season         Season
	SeasonLocation *time.Location
	Lookback       time.Duration
	Sink           MetricsSink
	Operator       Operator
	Logger         *slog.Logger
}

// Service runs poll-evaluate-notify cycles across subscribers and their stations.
type Service struct {
	providers map[string]Provider
	history   HistoryStore
	cooldowns *CooldownTracker
	notifier  Notifier
	formatter Formatter
	evaluator Evaluator
	season    Season
	seasonLoc *time.Location
	lookback  time.Duration
	sink      MetricsSink
	operator  Operator
	newID     func() string
	logger    *slog.Logger
}

// NewService creates a new Service.
func NewService(opts Options) *Service {
	providers := make(map[string]Provider, len(opts.Providers))
	for _, p := range opts.Providers {
		providers[p.Name()] = p
	}
	if opts.Formatter == nil {
		opts.Formatter = MessageFormatter{HTML: true}
	}
	if opts.Evaluator.Daylight == (Daylight{}) {
		opts.Evaluator = NewEvaluator(DefaultDaylight())
	}
	if opts.SeasonLocation == nil {
		opts.SeasonLocation = time.UTC
	}
	if opts.Season == (Season{}) {
		opts.Season = DefaultSeason()
	}
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		providers: providers,
		history:   opts.History,
		cooldowns: NewCooldownTracker(opts.History),
		notifier:  opts.Notifier,
		formatter: opts.Formatter,
		evaluator: opts.Evaluator,
		season:    opts.Season,
		seasonLoc: opts.SeasonLocation,
		lookback:  opts.Lookback,
		sink:      opts.Sink,
		operator:  opts.Operator,
		newID:     uuid.NewString,
		logger:    opts.Logger,
	}
}

// IsWinter reports the season at now in the service season location.
func (s *Service) IsWinter(now time.Time) bool {
	return s.season.IsWinter(now.In(s.seasonLoc))
}

// Run performs a complete cycle: preflight, subscriber loading, evaluation and
// notification, then metrics recording. Configuration problems abort the cycle
// before any station is evaluated and are reported to the operator. The
// returned metrics are always populated.
func (s *Service) Run(ctx context.Context, source SubscriberSource, now time.Time) (RunMetrics, error) {
	start := time.Now()
	m := NewRunMetrics(s.newID(), now)
	m.WinterMode = s.IsWinter(now)

	subs, err := s.prepare(ctx, source)
	if err != nil {
		m.fail(ErrorConfig, err)
		m.finish(now.Add(time.Since(start)))
		s.logger.Error("soaring: cycle aborted", "run_id", m.RunID, "err", err)
		s.recordRun(ctx, m)
		s.alert(ctx, fmt.Sprintf("🚨 SoarBot cycle aborted: %v", err))
		return m, err
	}

	m = s.cycle(ctx, subs, now, m)
	m.finish(now.Add(time.Since(start)))

	if !m.Success {
		s.logger.Error("soaring: cycle failed", "run_id", m.RunID, "err", m.ErrorMessage)
		s.alert(ctx, fmt.Sprintf("🚨 SoarBot cycle failed: %s", m.ErrorMessage))
	} else {
		s.logger.Info("soaring: cycle completed", "run_id", m.RunID, "summary", m.Summary())
	}
	s.recordRun(ctx, m)
	return m, nil
}

// RunCycle evaluates every subscriber against now and returns the metrics.
// It never fails as a whole; errors are counted per category.
func (s *Service) RunCycle(ctx context.Context, subs []Subscriber, now time.Time) RunMetrics {
	start := time.Now()
	m := NewRunMetrics(s.newID(), now)
	m.WinterMode = s.IsWinter(now)
	m = s.cycle(ctx, subs, now, m)
	m.finish(now.Add(time.Since(start)))
	return m
}

func (s *Service) prepare(ctx context.Context, source SubscriberSource) ([]Subscriber, error) {
	if s.notifier == nil {
		return nil, fmt.Errorf("%w: no notifier configured", ErrConfig)
	}
	if p, ok := s.notifier.(Preflighter); ok {
		if err := p.Preflight(); err != nil {
			return nil, err
		}
	}
	if s.history == nil {
		return nil, fmt.Errorf("%w: no notification history store configured", ErrConfig)
	}
	subs, err := source.Subscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load subscribers: %v", ErrConfig, err)
	}
	return subs, nil
}

func (s *Service) cycle(ctx context.Context, subs []Subscriber, now time.Time, m RunMetrics) RunMetrics {
	m.UsersFound = len(subs)
	for _, sub := range subs {
		m.StationsTotal += len(sub.Stations)
	}

	for _, sub := range subs {
		if !sub.Preferences.NotificationsEnabled {
			m.UsersSkipped++
			s.logger.Debug("soaring: notifications disabled", "subscriber", sub.ID)
			continue
		}
		m.UsersChecked++
		s.logger.Info("soaring: checking subscriber", "subscriber", sub.ID, "stations", len(sub.Stations))

		for _, st := range SortStations(sub.Stations) {
			if err := ctx.Err(); err != nil {
				cat := ErrorTimeout
				if errors.Is(err, context.Canceled) {
					cat = ErrorOther
				}
				m.fail(cat, fmt.Errorf("cycle interrupted: %w", err))
				return m
			}

			detail := StationDetail{
				SubscriberID: sub.ID,
				StationID:    st.ID,
				StationName:  st.DisplayName(),
				Enabled:      st.Enabled,
				Priority:     st.Priority,
			}
			if !st.Enabled {
				m.StationsDisabled++
				s.logger.Debug("soaring: station disabled", "subscriber", sub.ID, "station", st.ID)
				m.Stations = append(m.Stations, detail)
				continue
			}

			m.StationsChecked++
			sent := s.checkStation(ctx, sub, st, now, &m, &detail)
			m.Stations = append(m.Stations, detail)
			if sent {
				// Highest priority eligible station wins for this subscriber.
				break
			}
		}
	}
	return m
}

func (s *Service) checkStation(ctx context.Context, sub Subscriber, st StationConfig, now time.Time, m *RunMetrics, detail *StationDetail) bool {
	log := s.logger.With("subscriber", sub.ID, "station", st.ID)

	obs, err := s.fetch(ctx, st)
	if err != nil {
		m.countError(ErrorProvider)
		detail.APIError = err.Error()
		log.Warn("soaring: fetch failed", "err", err)
		return false
	}
	if len(obs) == 0 {
		m.countError(ErrorInsufficientData)
		detail.Result = &ConditionResult{StationID: st.ID, Winter: m.WinterMode, Reason: ReasonInsufficientData}
		log.Warn("soaring: no station data")
		return false
	}
	detail.HasData = true
	m.StationsWithData++
	detail.Latest = tail(obs, MinObservations)

	res, err := s.evaluator.Evaluate(obs, st, sub.Preferences, now, m.WinterMode)
	detail.Result = &res
	if err != nil {
		m.countError(Category(err))
		log.Warn("soaring: cannot evaluate", "err", err)
		return false
	}
	if !res.Met {
		log.Info("soaring: conditions not met", "failed", res.Failed())
		return false
	}
	m.ConditionsMet++

	status, err := s.cooldowns.Status(ctx, sub.ID, st.ID, now, sub.Preferences.Cooldown)
	if err != nil {
		m.countError(ErrorStore)
		log.Warn("soaring: cooldown lookup failed", "err", err)
		return false
	}
	if !status.Allowed {
		m.CooldownBlocks++
		detail.CooldownActive = true
		detail.CooldownRemainingHours = math.Round(status.Remaining.Hours()*10) / 10
		log.Info("soaring: cooldown active", "remaining", status.Remaining.Round(time.Minute))
		return false
	}

	text, format := s.formatter.Format(sub, st, obs, res)
	if err := s.notifier.Send(ctx, sub.ChatID, text, format); err != nil {
		derr := &DeliveryError{Recipient: sub.ChatID, Err: err}
		m.NotificationFailures++
		m.countError(ErrorDelivery)
		detail.NotificationError = derr.Error()
		log.Error("soaring: notification failed", "err", derr)
		return false
	}
	detail.NotificationSent = true
	m.NotificationsSent++
	log.Info("soaring: notification sent")

	rows := sub.Preferences.MessageRows
	if rows <= 0 {
		rows = DefaultMessageRows
	}
	rec := NotificationRecord{
		ID:           s.newID(),
		SubscriberID: sub.ID,
		StationID:    st.ID,
		SentAt:       now.UTC(),
		Message:      text,
		Result:       res,
		Observations: tail(obs, rows),
	}
	if err := s.history.Record(ctx, rec); err != nil {
		m.countError(ErrorStore)
		log.Warn("soaring: record notification failed", "err", &StoreError{Op: "record", Err: err})
	}
	return true
}

func (s *Service) fetch(ctx context.Context, st StationConfig) ([]Observation, error) {
	p, ok := s.providers[st.Provider]
	if !ok {
		return nil, &ProviderError{Provider: st.Provider, Station: st.ID, Err: errors.New("provider not configured")}
	}
	lookback := s.lookback
	if st.LookbackMinutes > 0 {
		lookback = time.Duration(st.LookbackMinutes) * time.Minute
	}
	obs, err := p.Fetch(ctx, st, lookback)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Station: st.ID, Err: err}
	}
	return obs, nil
}

// recordRun is best-effort: failures are logged, never returned.
func (s *Service) recordRun(ctx context.Context, m RunMetrics) {
	if s.sink == nil {
		return
	}
	// The cycle context may already be past its deadline.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.sink.RecordRun(rctx, m); err != nil {
		s.logger.Error("soaring: record run metrics failed", "run_id", m.RunID, "err", err)
	}
}

func (s *Service) alert(ctx context.Context, text string) {
	if s.operator == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.operator.Alert(actx, text); err != nil {
		s.logger.Error("soaring: operator alert failed", "err", err)
	}
}

// tail copies the last n observations.
func tail(obs []Observation, n int) []Observation {
	if n > len(obs) {
		n = len(obs)
	}
	out := make([]Observation, n)
	copy(out, obs[len(obs)-n:])
	return out
}
