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

// KnotsToMPH converts Synoptic english-unit wind readings to mph.
const KnotsToMPH = 1.15078

// SynopticProvider implements the soaring.Provider interface for the Synoptic
// Data timeseries API.
type SynopticProvider struct {
	name    string
	token   string
	baseURL string
	httpCfg resilience.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewSynopticProvider(client *http.Client, token string) *SynopticProvider {
	return &SynopticProvider{
		name:    "synoptic",
		token:   token,
		baseURL: "https://api.synopticdata.com/v2/stations/timeseries",
		httpCfg: resilience.HTTPClientConfig{
			Client:  client,
			Backoff: resilience.DefaultBackoff,
		},
		circuit: resilience.NewBreaker("synoptic"),
	}
}

func (p *SynopticProvider) Name() string {
	return p.name
}

type synopticPayload struct {
	Summary struct {
		ResponseCode    int    `json:"RESPONSE_CODE"`
		ResponseMessage string `json:"RESPONSE_MESSAGE"`
	} `json:"SUMMARY"`
	Station []struct {
		STID         string `json:"STID"`
		Name         string `json:"NAME"`
		Observations struct {
			DateTime      []string   `json:"date_time"`
			WindSpeed     []*float64 `json:"wind_speed_set_1"`
			WindGust      []*float64 `json:"wind_gust_set_1"`
			WindDirection []*float64 `json:"wind_direction_set_1"`
			Precip        []*float64 `json:"precip_accum_five_minute_set_1"`
			Cardinal      []*string  `json:"wind_cardinal_direction_set_1d"`
		} `json:"OBSERVATIONS"`
	} `json:"STATION"`
}

func (p *SynopticProvider) Fetch(ctx context.Context, station soaring.StationConfig, lookback time.Duration) ([]soaring.Observation, error) {
	if p.token == "" {
		return nil, fmt.Errorf("synoptic token is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("token", p.token)
		values.Set("stid", station.ID)
		values.Set("recent", strconv.Itoa(int(lookback.Minutes())))
		values.Set("units", "english")
		values.Set("obtimezone", "UTC")
		values.Set("vars", "wind_speed,wind_gust,wind_direction,precip_accum_five_minute,wind_cardinal_direction")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := resilience.Do(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload synopticPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode synoptic response: %w", err)
	}
	if payload.Summary.ResponseCode != 1 {
		return nil, fmt.Errorf("synoptic: %s (code %d)", payload.Summary.ResponseMessage, payload.Summary.ResponseCode)
	}
	if len(payload.Station) == 0 {
		return nil, fmt.Errorf("synoptic: no station %s in response", station.ID)
	}

	raw := payload.Station[0].Observations
	out := make([]soaring.Observation, 0, len(raw.DateTime))
	for i, ts := range raw.DateTime {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("synoptic: bad date_time %q: %w", ts, err)
		}

		speed := at(raw.WindSpeed, i, math.NaN()) * KnotsToMPH
		gust := at(raw.WindGust, i, math.NaN()) * KnotsToMPH
		if math.IsNaN(gust) {
			// No gust reported: nothing above the sustained speed.
			gust = speed
		}
		cardinal := "-"
		if i < len(raw.Cardinal) && raw.Cardinal[i] != nil && *raw.Cardinal[i] != "" {
			cardinal = *raw.Cardinal[i]
		}

		out = append(out, soaring.Observation{
			Timestamp:     t.UTC(),
			WindSpeed:     speed,
			WindGust:      gust,
			WindDirection: at(raw.WindDirection, i, math.NaN()),
			Precipitation: at(raw.Precip, i, 0),
			Cardinal:      cardinal,
		})
	}
	return out, nil
}

// at returns vals[i], or def when the index is missing or null.
func at(vals []*float64, i int, def float64) float64 {
	if i >= len(vals) || vals[i] == nil {
		return def
	}
	return *vals[i]
}
