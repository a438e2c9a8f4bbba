package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/soarbot/internal/resilience"
	"github.com/i474232898/soarbot/internal/soaring"
)

// OpenMeteoProvider implements the soaring.Provider interface for Open-Meteo,
// using past 15-minute model data at the station coordinates.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg resilience.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpCfg: resilience.HTTPClientConfig{
			Client:  client,
			Backoff: resilience.DefaultBackoff,
		},
		circuit: resilience.NewBreaker("openmeteo"),
		now:     time.Now,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, station soaring.StationConfig, lookback time.Duration) ([]soaring.Observation, error) {
	if station.Latitude == nil || station.Longitude == nil {
		return nil, fmt.Errorf("openmeteo requires latitude and longitude for station %s", station.ID)
	}

	slots := int(math.Ceil(lookback.Minutes() / 15))
	if slots < soaring.MinObservations {
		slots = soaring.MinObservations
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", *station.Latitude))
		values.Set("longitude", fmt.Sprintf("%f", *station.Longitude))
		values.Set("minutely_15", "wind_speed_10m,wind_gusts_10m,wind_direction_10m,precipitation")
		values.Set("past_minutely_15", strconv.Itoa(slots))
		values.Set("forecast_minutely_15", "1")
		values.Set("wind_speed_unit", "mph")
		values.Set("timeformat", "unixtime")
		values.Set("timezone", "UTC")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := resilience.Do(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Minutely15 struct {
			Time          []int64    `json:"time"`
			WindSpeed     []*float64 `json:"wind_speed_10m"`
			WindGusts     []*float64 `json:"wind_gusts_10m"`
			WindDirection []*float64 `json:"wind_direction_10m"`
			Precipitation []*float64 `json:"precipitation"`
		} `json:"minutely_15"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode openmeteo response: %w", err)
	}

	now := p.now()
	data := payload.Minutely15
	out := make([]soaring.Observation, 0, len(data.Time))
	for i, unix := range data.Time {
		ts := time.Unix(unix, 0).UTC()
		// Slots after now are forecasts, not observations.
		if ts.After(now) {
			continue
		}
		speed := at(data.WindSpeed, i, math.NaN())
		gust := at(data.WindGusts, i, speed)
		dir := at(data.WindDirection, i, math.NaN())
		out = append(out, soaring.Observation{
			Timestamp:     ts,
			WindSpeed:     speed,
			WindGust:      gust,
			WindDirection: dir,
			Precipitation: at(data.Precipitation, i, 0),
			Cardinal:      soaring.Cardinal(dir),
		})
	}
	return out, nil
}
