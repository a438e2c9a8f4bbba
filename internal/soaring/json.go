package soaring

import (
	"encoding/json"
	"math"
	"time"
)

// Missing readings are NaN in memory and null on the wire.

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

type observationJSON struct {
	Timestamp     time.Time `json:"timestamp"`
	WindSpeed     *float64  `json:"windSpeed"`
	WindGust      *float64  `json:"windGust"`
	WindDirection *float64  `json:"windDirection"`
	Precipitation *float64  `json:"precipitation"`
	Cardinal      string    `json:"cardinal"`
}

func (o Observation) MarshalJSON() ([]byte, error) {
	return json.Marshal(observationJSON{
		Timestamp:     o.Timestamp,
		WindSpeed:     nullable(o.WindSpeed),
		WindGust:      nullable(o.WindGust),
		WindDirection: nullable(o.WindDirection),
		Precipitation: nullable(o.Precipitation),
		Cardinal:      o.Cardinal,
	})
}

func (o *Observation) UnmarshalJSON(b []byte) error {
	var v observationJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = Observation{
		Timestamp:     v.Timestamp,
		WindSpeed:     orNaN(v.WindSpeed),
		WindGust:      orNaN(v.WindGust),
		WindDirection: orNaN(v.WindDirection),
		Precipitation: orNaN(v.Precipitation),
		Cardinal:      v.Cardinal,
	}
	return nil
}

type conditionCheckJSON struct {
	Name     CheckName  `json:"name"`
	Passed   bool       `json:"passed"`
	Values   []*float64 `json:"values,omitempty"`
	Observed string     `json:"observed,omitempty"`
	Criteria string     `json:"criteria"`
}

func (c ConditionCheck) MarshalJSON() ([]byte, error) {
	v := conditionCheckJSON{Name: c.Name, Passed: c.Passed, Observed: c.Observed, Criteria: c.Criteria}
	for _, f := range c.Values {
		v.Values = append(v.Values, nullable(f))
	}
	return json.Marshal(v)
}

func (c *ConditionCheck) UnmarshalJSON(b []byte) error {
	var v conditionCheckJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = ConditionCheck{Name: v.Name, Passed: v.Passed, Observed: v.Observed, Criteria: v.Criteria}
	for _, p := range v.Values {
		c.Values = append(c.Values, orNaN(p))
	}
	return nil
}
