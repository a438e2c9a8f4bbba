package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/i474232898/soarbot/internal/config"
)

func TestNewLoggerJSONInProd(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.AppConfig{AppEnv: "prod", LogLevel: slog.LevelInfo}
	logger := newLogger(&buf, cfg, "1.2.3", "soarbot")

	logger.Debug("hidden")
	logger.Info("cycle completed", "run_id", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above debug level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if entry["app"] != "soarbot" || entry["version"] != "1.2.3" || entry["run_id"] != "abc" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewLoggerTextInDev(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.AppConfig{AppEnv: "dev", LogLevel: slog.LevelDebug}
	newLogger(&buf, cfg, "dev", "soarbot").Debug("scheduler: started")

	if !strings.Contains(buf.String(), "scheduler: started") {
		t.Fatalf("expected message in output, got %q", buf.String())
	}
	if json.Valid(buf.Bytes()) {
		t.Fatalf("dev output should not be JSON")
	}
}
