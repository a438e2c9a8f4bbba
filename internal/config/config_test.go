package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/i474232898/soarbot/internal/soaring"
)

var keys = []string{
	"APP_ENV", "LOG_LEVEL", "PORT", "POLL_INTERVAL", "POLL_CRON", "CYCLE_TIMEOUT", "HTTP_TIMEOUT",
	"LOOKBACK_MINUTES", "SUBSCRIBERS_SOURCE", "DB_DRIVER", "STORE_MAX_HISTORY", "STORE_MAX_AGE", "DAYLIGHT_MODE", "DAY_START", "DAY_END",
	"MIDDAY_START", "MIDDAY_END", "SOLAR_LAT", "SOLAR_LON", "WINTER_START", "WINTER_END", "DEFAULT_TIMEZONE",
}

// isolate runs Load in an empty directory with no inherited overrides.
func isolate(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PollInterval != 5*time.Minute || cfg.CycleTimeout != 120*time.Second {
		t.Fatalf("unexpected intervals %v %v", cfg.PollInterval, cfg.CycleTimeout)
	}
	if cfg.Lookback != 120*time.Minute {
		t.Fatalf("unexpected lookback %v", cfg.Lookback)
	}
	if cfg.LogLevel != slog.LevelInfo || cfg.Port != "8080" {
		t.Fatalf("unexpected level/port %v %s", cfg.LogLevel, cfg.Port)
	}
	if cfg.Daylight != soaring.DefaultDaylight() {
		t.Fatalf("unexpected daylight %+v", cfg.Daylight)
	}
	if cfg.Season != soaring.DefaultSeason() {
		t.Fatalf("unexpected season %+v", cfg.Season)
	}
	if cfg.DBDriver != "sqlite3" || cfg.SubscribersSource != "file" {
		t.Fatalf("unexpected storage defaults %s %s", cfg.DBDriver, cfg.SubscribersSource)
	}
}

func TestLoadOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("POLL_INTERVAL", "10m")
	t.Setenv("DAYLIGHT_MODE", "solar")
	t.Setenv("DAY_START", "07:30")
	t.Setenv("SOLAR_LAT", "46.5")
	t.Setenv("WINTER_START", "12-01")
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("SUBSCRIBERS_SOURCE", "sql")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.PollInterval != 10*time.Minute {
		t.Fatalf("unexpected %v %v", cfg.LogLevel, cfg.PollInterval)
	}
	if cfg.Daylight.Mode != soaring.DaylightSolar || cfg.Daylight.Day.Start != soaring.Clock(7, 30) || cfg.Daylight.Latitude != 46.5 {
		t.Fatalf("unexpected daylight %+v", cfg.Daylight)
	}
	if cfg.Daylight.Day.End != soaring.Clock(20, 0) {
		t.Fatalf("day end should keep its default, got %v", cfg.Daylight.Day.End)
	}
	if cfg.Season.WinterStart.String() != "12-01" {
		t.Fatalf("unexpected winter start %v", cfg.Season.WinterStart)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"STORE_MAX_AGE":      "forever",
		"POLL_INTERVAL":      "often",
		"LOOKBACK_MINUTES":   "two hours",
		"DAYLIGHT_MODE":      "lunar",
		"MIDDAY_END":         "25:00",
		"DB_DRIVER":          "mysql",
		"SUBSCRIBERS_SOURCE": "ldap",
		"WINTER_END":         "March",
		"LOG_LEVEL":          "loud",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			isolate(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestLoadMemoryDriverNeedsFileSource(t *testing.T) {
	isolate(t)
	t.Setenv("DB_DRIVER", "memory")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StoreMaxHistory != 96 || cfg.StoreMaxAge != 168*time.Hour {
		t.Fatalf("unexpected retention %d %v", cfg.StoreMaxHistory, cfg.StoreMaxAge)
	}

	t.Setenv("SUBSCRIBERS_SOURCE", "sql")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for sql subscribers without a database")
	}
}
