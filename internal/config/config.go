package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/soarbot/internal/soaring"
)

type AppConfig struct {
	AppEnv   string
	LogLevel slog.Level
	Port     string

	// PollInterval controls how often a cycle runs. PollCron, when set, wins.
	PollInterval time.Duration
	PollCron     string
	CycleTimeout time.Duration
	HTTPTimeout  time.Duration
	Lookback     time.Duration

	TelegramToken  string
	TelegramAPIURL string
	AdminChatID    string
	SynopticToken  string

	// Subscribers come from SubscribersFile, or the database when SubscribersSource is "sql".
	SubscribersFile   string
	SubscribersSource string

	// DBDriver is sqlite3, pgx, or memory (no persistence).
	DBDriver   string
	DBDSN      string
	SQLitePath string

	// In-memory store retention.
	StoreMaxHistory int           // max records per subscriber/station pair (0 = unlimited)
	StoreMaxAge     time.Duration // max age of records (0 = unlimited)

	// Optional cooldown cache.
	RedisAddr     string
	RedisPassword string
	RedisTTL      time.Duration

	// Optional run metrics publishing.
	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	Daylight        soaring.Daylight
	Season          soaring.Season
	DefaultTimezone string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	if cfg.LogLevel, err = parseLevel(getenvDefault("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	if cfg.PollInterval, err = getenvDuration("POLL_INTERVAL", "5m"); err != nil {
		return nil, err
	}
	cfg.PollCron = os.Getenv("POLL_CRON")
	if cfg.CycleTimeout, err = getenvDuration("CYCLE_TIMEOUT", "120s"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	lookback, err := getenvInt("LOOKBACK_MINUTES", 120)
	if err != nil {
		return nil, err
	}
	cfg.Lookback = time.Duration(lookback) * time.Minute

	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramAPIURL = getenvDefault("TELEGRAM_API_URL", "https://api.telegram.org")
	cfg.AdminChatID = os.Getenv("ADMIN_TELEGRAM_CHAT_ID")
	cfg.SynopticToken = os.Getenv("SYNOPTIC_TOKEN")

	cfg.SubscribersFile = getenvDefault("SUBSCRIBERS_FILE", "subscribers.yaml")
	cfg.SubscribersSource = getenvDefault("SUBSCRIBERS_SOURCE", "file")
	if cfg.SubscribersSource != "file" && cfg.SubscribersSource != "sql" {
		return nil, fmt.Errorf("invalid SUBSCRIBERS_SOURCE %q: want file or sql", cfg.SubscribersSource)
	}

	cfg.DBDriver = getenvDefault("DB_DRIVER", "sqlite3")
	switch cfg.DBDriver {
	case "sqlite3", "pgx":
	case "memory":
		if cfg.SubscribersSource == "sql" {
			return nil, fmt.Errorf("SUBSCRIBERS_SOURCE=sql requires a database, DB_DRIVER is memory")
		}
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: want sqlite3, pgx or memory", cfg.DBDriver)
	}
	cfg.DBDSN = os.Getenv("DB_DSN")
	cfg.SQLitePath = getenvDefault("SQLITE_PATH", "data/soarbot.db")

	if cfg.StoreMaxHistory, err = getenvInt("STORE_MAX_HISTORY", 96); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "168h"); err != nil {
		return nil, err
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisTTL, err = getenvDuration("REDIS_TTL", "24h"); err != nil {
		return nil, err
	}

	cfg.MQTTBroker = os.Getenv("MQTT_BROKER")
	cfg.MQTTTopic = getenvDefault("MQTT_TOPIC", "soarbot")
	cfg.MQTTClientID = getenvDefault("MQTT_CLIENT_ID", "soarbot")

	if cfg.Daylight, err = loadDaylight(); err != nil {
		return nil, err
	}
	if cfg.Season, err = loadSeason(); err != nil {
		return nil, err
	}
	cfg.DefaultTimezone = getenvDefault("DEFAULT_TIMEZONE", "America/Denver")
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE %q: %w", cfg.DefaultTimezone, err)
	}

	return cfg, nil
}

func loadDaylight() (soaring.Daylight, error) {
	d := soaring.DefaultDaylight()

	switch mode := soaring.DaylightMode(getenvDefault("DAYLIGHT_MODE", string(soaring.DaylightClock))); mode {
	case soaring.DaylightClock, soaring.DaylightSolar:
		d.Mode = mode
	default:
		return d, fmt.Errorf("invalid DAYLIGHT_MODE %q: want clock or solar", mode)
	}

	var err error
	if d.Day, err = getenvWindow("DAY_START", "DAY_END", d.Day); err != nil {
		return d, err
	}
	if d.Midday, err = getenvWindow("MIDDAY_START", "MIDDAY_END", d.Midday); err != nil {
		return d, err
	}
	if d.Latitude, err = getenvFloat("SOLAR_LAT", d.Latitude); err != nil {
		return d, err
	}
	if d.Longitude, err = getenvFloat("SOLAR_LON", d.Longitude); err != nil {
		return d, err
	}
	return d, nil
}

func loadSeason() (soaring.Season, error) {
	s := soaring.DefaultSeason()
	if v := os.Getenv("WINTER_START"); v != "" {
		md, err := soaring.ParseMonthDay(v)
		if err != nil {
			return s, fmt.Errorf("invalid WINTER_START %q: %w", v, err)
		}
		s.WinterStart = md
	}
	if v := os.Getenv("WINTER_END"); v != "" {
		md, err := soaring.ParseMonthDay(v)
		if err != nil {
			return s, fmt.Errorf("invalid WINTER_END %q: %w", v, err)
		}
		s.WinterEnd = md
	}
	return s, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return level, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	v := getenvDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getenvWindow(startKey, endKey string, def soaring.TimeWindow) (soaring.TimeWindow, error) {
	w := def
	if v := os.Getenv(startKey); v != "" {
		c, err := soaring.ParseClock(v)
		if err != nil {
			return w, fmt.Errorf("invalid %s %q: %w", startKey, v, err)
		}
		w.Start = c
	}
	if v := os.Getenv(endKey); v != "" {
		c, err := soaring.ParseClock(v)
		if err != nil {
			return w, fmt.Errorf("invalid %s %q: %w", endKey, v, err)
		}
		w.End = c
	}
	return w, nil
}
