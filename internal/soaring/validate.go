package soaring

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStation rejects impossible station criteria, e.g. a minimum wind
// speed above the maximum.
func ValidateStation(s StationConfig) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: station %q: %v", ErrConfig, s.ID, err)
	}
	return nil
}

// ValidateSubscriber checks the subscriber, its preferences and every station.
func ValidateSubscriber(sub Subscriber) error {
	if err := validate.Struct(sub); err != nil {
		return fmt.Errorf("%w: subscriber %q: %v", ErrConfig, sub.ID, err)
	}
	seen := make(map[string]bool, len(sub.Stations))
	for _, st := range sub.Stations {
		if seen[st.ID] {
			return fmt.Errorf("%w: subscriber %q: duplicate station %q", ErrConfig, sub.ID, st.ID)
		}
		seen[st.ID] = true
	}
	return nil
}

// SortStations orders stations by priority (lower first), keeping input order on ties.
func SortStations(stations []StationConfig) []StationConfig {
	out := make([]StationConfig, len(stations))
	copy(out, stations)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
