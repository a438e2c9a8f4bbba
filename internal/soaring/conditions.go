package soaring

import (
	"fmt"
	"strconv"
	"time"
)

// MinObservations is the tail window every weather check is computed over.
const MinObservations = 3

// CheckName identifies a single condition check.
type CheckName string

const (
	CheckWindSpeed     CheckName = "wind_speed"
	CheckWindDirection CheckName = "wind_direction"
	CheckGusts         CheckName = "gusts"
	CheckPrecipitation CheckName = "precipitation"
	CheckDaytime       CheckName = "daytime"
	CheckQuietHours    CheckName = "quiet_hours"
	CheckMidday        CheckName = "midday"
)

// ReasonInsufficientData is set on a ConditionResult that could not be evaluated.
const ReasonInsufficientData = "insufficient_data"

// ConditionCheck is the outcome of one named check together with what was observed.
type ConditionCheck struct {
	Name     CheckName `json:"name"`
	Passed   bool      `json:"passed"`
	Values   []float64 `json:"values,omitempty"`
	Observed string    `json:"observed,omitempty"`
	Criteria string    `json:"criteria"`
}

// ConditionResult aggregates the checks for one station at one instant.
type ConditionResult struct {
	StationID string           `json:"stationId"`
	Met       bool             `json:"conditionsMet"`
	Reason    string           `json:"reason,omitempty"`
	Winter    bool             `json:"winterMode"`
	Checks    []ConditionCheck `json:"checks,omitempty"`
}

// Check returns the named check.
func (r ConditionResult) Check(name CheckName) (ConditionCheck, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return ConditionCheck{}, false
}

// Failed lists the names of checks that did not pass.
func (r ConditionResult) Failed() []CheckName {
	var out []CheckName
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c.Name)
		}
	}
	return out
}

// Evaluator turns observations, station criteria and subscriber preferences
// into a ConditionResult. It holds no state between calls.
type Evaluator struct {
	Daylight Daylight
}

// NewEvaluator returns an Evaluator using the given daylight rules.
func NewEvaluator(d Daylight) Evaluator {
	return Evaluator{Daylight: d}
}

// Evaluate runs every check over the last MinObservations observations.
// Fewer observations yield an unmet result with ReasonInsufficientData and
// ErrInsufficientData. The input slice is never modified.
func (e Evaluator) Evaluate(obs []Observation, cfg StationConfig, prefs UserPreferences, now time.Time, winter bool) (ConditionResult, error) {
	res := ConditionResult{StationID: cfg.ID, Winter: winter}
	if len(obs) < MinObservations {
		res.Reason = ReasonInsufficientData
		return res, fmt.Errorf("%w: station %s has %d observations, need %d",
			ErrInsufficientData, cfg.ID, len(obs), MinObservations)
	}

	tail := obs[len(obs)-MinObservations:]
	speeds := make([]float64, 0, MinObservations)
	dirs := make([]float64, 0, MinObservations)
	diffs := make([]float64, 0, MinObservations)
	precip := make([]float64, 0, MinObservations)
	for _, o := range tail {
		speeds = append(speeds, o.WindSpeed)
		dirs = append(dirs, o.WindDirection)
		diffs = append(diffs, o.WindGust-o.WindSpeed)
		precip = append(precip, o.Precipitation)
	}

	speedOK := allWithin(speeds, cfg.WindSpeedMin, cfg.WindSpeedMax)
	dirOK := allWithin(dirs, cfg.WindDirectionMin, cfg.WindDirectionMax)
	gustOK := allAtMost(diffs, cfg.MaxGustDifferential)
	rainOK := allAtMost(precip, cfg.MaxPrecipitation)

	rainCriteria := "no rain"
	if cfg.MaxPrecipitation > 0 {
		rainCriteria = "≤" + num(cfg.MaxPrecipitation)
	}

	local := now.In(prefs.Location())
	clock := ClockOf(local)
	day := e.Daylight.verdict(local, cfg)

	quietOK := true
	quietCriteria := "outside quiet hours"
	if prefs.QuietHours != nil {
		quietOK = !prefs.QuietHours.Contains(clock)
		quietCriteria = "outside " + prefs.QuietHours.String()
	}

	// Outside winter the midday band is excluded unless the subscriber lifted it.
	middayOK := true
	middayCriteria := "midday allowed"
	if !winter && !prefs.WinterMiddayAllowed {
		middayOK = !day.midday
		middayCriteria = day.middayCriteria
	}

	res.Checks = []ConditionCheck{
		{Name: CheckWindSpeed, Passed: speedOK, Values: speeds,
			Criteria: num(cfg.WindSpeedMin) + "-" + num(cfg.WindSpeedMax) + " mph"},
		{Name: CheckWindDirection, Passed: dirOK, Values: dirs,
			Criteria: num(cfg.WindDirectionMin) + "-" + num(cfg.WindDirectionMax) + "°"},
		{Name: CheckGusts, Passed: gustOK, Values: diffs,
			Criteria: "≤" + num(cfg.MaxGustDifferential) + " mph"},
		{Name: CheckPrecipitation, Passed: rainOK, Values: precip, Criteria: rainCriteria},
		{Name: CheckDaytime, Passed: day.daytime, Observed: clock.String(), Criteria: day.daytimeCriteria},
		{Name: CheckQuietHours, Passed: quietOK, Observed: clock.String(), Criteria: quietCriteria},
		{Name: CheckMidday, Passed: middayOK, Observed: clock.String(), Criteria: middayCriteria},
	}

	res.Met = true
	for _, c := range res.Checks {
		res.Met = res.Met && c.Passed
	}
	return res, nil
}

// allWithin is false for NaN readings.
func allWithin(vals []float64, lo, hi float64) bool {
	for _, v := range vals {
		if !(v >= lo && v <= hi) {
			return false
		}
	}
	return true
}

func allAtMost(vals []float64, limit float64) bool {
	for _, v := range vals {
		if !(v <= limit) {
			return false
		}
	}
	return true
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
