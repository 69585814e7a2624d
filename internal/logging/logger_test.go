package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_JSONLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	logger.Debug().Msg("hidden")
	logger.Info().Str("provider", "openai").Msg("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["message"] != "visible" || entry["provider"] != "openai" {
		t.Errorf("unexpected entry %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestNew_UnknownLevelFallsBackToWarn(t *testing.T) {
	for _, level := range []string{"", "loud"} {
		logger := New(&bytes.Buffer{}, level, "json")
		if logger.GetLevel() != zerolog.WarnLevel {
			t.Errorf("level %q: expected warn, got %s", level, logger.GetLevel())
		}
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "console")
	logger.Warn().Msg("careful")

	out := buf.String()
	if !strings.Contains(out, "careful") {
		t.Errorf("expected message in console output, got %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("console format should not be JSON, got %q", out)
	}
}

func TestNew_ConsoleWithoutTerminalHasNoColor(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "error", "console")
	logger.Error().Str("op", "stream").Msg("failed")

	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("expected no ANSI escapes for a non-terminal writer, got %q", buf.String())
	}
}
