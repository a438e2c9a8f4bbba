package soaring

import (
	"strings"
	"testing"
)

func TestMessageFormatterHTML(t *testing.T) {
	st := southSide()
	st.CustomName = "South Side <LZ>"
	obs := scenarioA(morning)
	res, _ := NewEvaluator(DefaultDaylight()).Evaluate(obs, st, prefs(), morning, false)

	sub := Subscriber{ID: "alice", ChatID: "1", FirstName: "Alice", Preferences: prefs()}
	text, format := MessageFormatter{HTML: true}.Format(sub, st, obs, res)

	if format != FormatRich {
		t.Fatalf("expected rich format, got %q", format)
	}
	for _, want := range []string{
		"Hi Alice!",
		"South Side &lt;LZ&gt;",
		"• Wind: 8.5-16 mph ✅",
		"• Direction: 130-180° ✅",
		"• Weather: no rain ✅",
		"<pre>",
		"Data from South Side &lt;LZ&gt;",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("message missing %q:\n%s", want, text)
		}
	}
}

func TestObservationTableNewestFirst(t *testing.T) {
	obs := scenarioA(morning)
	table := ObservationTable(obs, 2, prefs(), false)

	lines := strings.Split(strings.TrimRight(table, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", table)
	}
	if !strings.HasPrefix(lines[1], "09:00  12g13") {
		t.Fatalf("first row should be the newest reading in local time, got %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "08:55  11g13") {
		t.Fatalf("unexpected second row %q", lines[2])
	}
	if !strings.Contains(lines[1], "SSE") {
		t.Fatalf("expected cardinal in row %q", lines[1])
	}
}

func TestMessageFormatterPlainGreeting(t *testing.T) {
	obs := scenarioA(morning)
	sub := Subscriber{ID: "bob", ChatID: "2", Username: "bobflies", Preferences: prefs()}
	text, format := MessageFormatter{}.Format(sub, southSide(), obs, ConditionResult{})
	if format != FormatPlain {
		t.Fatalf("expected plain format, got %q", format)
	}
	if !strings.HasPrefix(text, "Hi @bobflies! Great soaring conditions at Flight Park South!") {
		t.Fatalf("unexpected greeting %q", text)
	}

	sub.Username = ""
	text, _ = MessageFormatter{}.Format(sub, southSide(), obs, ConditionResult{})
	if !strings.HasPrefix(text, "Hi! ") {
		t.Fatalf("expected anonymous greeting, got %q", text)
	}
}

func TestDisplayName(t *testing.T) {
	st := StationConfig{ID: "FPS"}
	if st.DisplayName() != "FPS" {
		t.Fatalf("expected id fallback")
	}
	st.Name = "Flight Park South"
	if st.DisplayName() != "Flight Park South" {
		t.Fatalf("expected name")
	}
	st.CustomName = "South"
	if st.DisplayName() != "South" {
		t.Fatalf("custom name wins")
	}
}
