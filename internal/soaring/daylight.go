package soaring

import (
	"fmt"
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// DaylightMode selects how daytime and the midday band are derived.
type DaylightMode string

const (
	// DaylightClock uses fixed clock windows in the subscriber timezone.
	DaylightClock DaylightMode = "clock"
	// DaylightSolar uses sunrise and sunset at the station (or default) coordinates.
	DaylightSolar DaylightMode = "solar"
)

// Solar offsets applied around sunrise and sunset.
const (
	sunriseLead     = 10 * time.Minute
	sunsetLead      = 30 * time.Minute
	middayAfterRise = 2 * time.Hour
	middayBeforeSet = 3 * time.Hour
)

// Daylight configures the daytime and midday checks.
type Daylight struct {
	Mode DaylightMode

	// Clock mode windows.
	Day    TimeWindow
	Midday TimeWindow

	// Solar mode coordinates used when a station has none.
	Latitude  float64
	Longitude float64
}

// DefaultDaylight is the fixed 06:00-20:00 day with an 11:00-15:00 midday band.
func DefaultDaylight() Daylight {
	return Daylight{
		Mode:      DaylightClock,
		Day:       TimeWindow{Start: Clock(6, 0), End: Clock(20, 0)},
		Midday:    TimeWindow{Start: Clock(11, 0), End: Clock(15, 0)},
		Latitude:  40.5247,
		Longitude: -111.8638,
	}
}

// dayVerdict is the outcome of the time-of-day checks for one instant.
type dayVerdict struct {
	daytime         bool
	midday          bool
	daytimeCriteria string
	middayCriteria  string
}

func (d Daylight) verdict(local time.Time, station StationConfig) dayVerdict {
	if d.Mode != DaylightSolar {
		return dayVerdict{
			daytime:         d.Day.Contains(ClockOf(local)),
			midday:          d.Midday.Contains(ClockOf(local)),
			daytimeCriteria: d.Day.String(),
			middayCriteria:  "outside " + d.Midday.String(),
		}
	}

	lat, lon := d.Latitude, d.Longitude
	if station.Latitude != nil && station.Longitude != nil {
		lat, lon = *station.Latitude, *station.Longitude
	}
	rise, set := sunrise.SunriseSunset(lat, lon, local.Year(), local.Month(), local.Day())
	if rise.IsZero() || set.IsZero() {
		// Polar day or night: no usable solar window.
		return dayVerdict{daytimeCriteria: "no sunrise/sunset", middayCriteria: "no sunrise/sunset"}
	}

	dayStart, dayEnd := rise.Add(-sunriseLead), set.Add(-sunsetLead)
	midStart, midEnd := rise.Add(middayAfterRise), set.Add(-middayBeforeSet)
	loc := local.Location()
	dayCriteria := fmt.Sprintf("%s-%s", dayStart.In(loc).Format("15:04"), dayEnd.In(loc).Format("15:04"))
	midCriteria := fmt.Sprintf("outside %s-%s", midStart.In(loc).Format("15:04"), midEnd.In(loc).Format("15:04"))
	return dayVerdict{
		daytime:         local.After(dayStart) && local.Before(dayEnd),
		midday:          local.After(midStart) && local.Before(midEnd),
		daytimeCriteria: dayCriteria,
		middayCriteria:  midCriteria,
	}
}
