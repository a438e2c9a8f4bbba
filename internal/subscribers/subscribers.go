package subscribers

import (
	"fmt"
	"time"

	"github.com/i474232898/soarbot/internal/soaring"
)

// DefaultCooldown applies when a subscriber does not set one.
const DefaultCooldown = 4 * time.Hour

// Defaults fills preferences a source leaves empty.
type Defaults struct {
	Timezone string
	Cooldown time.Duration
}

func (d Defaults) withFallbacks() Defaults {
	if d.Timezone == "" {
		d.Timezone = "America/Denver"
	}
	if d.Cooldown <= 0 {
		d.Cooldown = DefaultCooldown
	}
	return d
}

// finalize validates a loaded subscriber and orders its stations by priority.
func finalize(sub soaring.Subscriber) (soaring.Subscriber, error) {
	if sub.Preferences.MessageRows == 0 {
		sub.Preferences.MessageRows = soaring.DefaultMessageRows
	}
	if err := soaring.ValidateSubscriber(sub); err != nil {
		return soaring.Subscriber{}, fmt.Errorf("subscriber %s: %w", sub.ID, err)
	}
	sub.Stations = soaring.SortStations(sub.Stations)
	return sub, nil
}
