package soaring

import (
	"fmt"
	"html"
	"strings"
)

// DefaultMessageRows is used when a subscriber has no row preference.
const DefaultMessageRows = 6

// MessageFormatter renders alerts as Telegram HTML, or plain text when HTML is off.
type MessageFormatter struct {
	HTML bool
}

// Format builds the personalized alert for a station whose conditions are met.
func (f MessageFormatter) Format(sub Subscriber, station StationConfig, obs []Observation, res ConditionResult) (string, MessageFormat) {
	name := station.DisplayName()
	rows := sub.Preferences.MessageRows
	if rows <= 0 {
		rows = DefaultMessageRows
	}
	table := ObservationTable(obs, rows, sub.Preferences, f.HTML)

	if !f.HTML {
		var b strings.Builder
		fmt.Fprintf(&b, "%sGreat soaring conditions at %s!\n\n", greeting(sub, false), name)
		b.WriteString(table)
		return b.String(), FormatPlain
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s🌬️ <b>Great soaring conditions at %s!</b>\n\n", greeting(sub, true), html.EscapeString(name))
	b.WriteString("<b>Your criteria met:</b>\n")
	for _, line := range []struct {
		label string
		check CheckName
	}{
		{"Wind", CheckWindSpeed},
		{"Direction", CheckWindDirection},
		{"Gusts", CheckGusts},
		{"Weather", CheckPrecipitation},
	} {
		if c, ok := res.Check(line.check); ok {
			fmt.Fprintf(&b, "• %s: %s ✅\n", line.label, html.EscapeString(c.Criteria))
		}
	}
	b.WriteString("\n")
	b.WriteString(table)
	if station.CustomName != "" || station.Name != "" {
		fmt.Fprintf(&b, "\n📍 <i>Data from %s</i>", html.EscapeString(name))
	}
	return b.String(), FormatRich
}

func greeting(sub Subscriber, escape bool) string {
	esc := func(s string) string {
		if escape {
			return html.EscapeString(s)
		}
		return s
	}
	switch {
	case sub.FirstName != "":
		return "Hi " + esc(sub.FirstName) + "! "
	case sub.Username != "":
		return "Hi @" + esc(sub.Username) + "! "
	default:
		return "Hi! "
	}
}

// ObservationTable lists the last rows observations newest first as
// "HH:MM  SSgGG   DIR", in the subscriber timezone.
func ObservationTable(obs []Observation, rows int, prefs UserPreferences, pre bool) string {
	if rows > len(obs) {
		rows = len(obs)
	}
	loc := prefs.Location()

	var b strings.Builder
	if pre {
		b.WriteString("<pre>")
	} else {
		b.WriteString("       Speed   Dir \n")
	}
	for i := len(obs) - 1; i >= len(obs)-rows; i-- {
		o := obs[i]
		cardinal := o.Cardinal
		if cardinal == "" {
			cardinal = "-"
		}
		fmt.Fprintf(&b, "%s %3.0fg%-2.0f   %-5s \n",
			o.Timestamp.In(loc).Format("15:04"), o.WindSpeed, o.WindGust, cardinal)
	}
	if pre {
		b.WriteString("</pre>")
	}
	return b.String()
}
