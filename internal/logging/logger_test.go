package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestProdLogsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "prod", "")

	logger.Debug("hidden")
	logger.Info("timer started", "ticket", "t1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("Expected JSON output: %v", err)
	}
	if rec["msg"] != "timer started" || rec["ticket"] != "t1" {
		t.Errorf("Unexpected record %v", rec)
	}
}

func TestDevLogsText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "dev", "")
	logger.Debug("visible", "n", 1)

	if !strings.Contains(buf.String(), "msg=visible") {
		t.Errorf("Expected text output, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level, env string
		want       slog.Level
	}{
		{"debug", "prod", slog.LevelDebug},
		{"WARN", "dev", slog.LevelWarn},
		{"error", "", slog.LevelError},
		{"", "prod", slog.LevelInfo},
		{"bogus", "dev", slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.level, tt.env); got != tt.want {
			t.Errorf("ParseLevel(%q, %q) = %v, want %v", tt.level, tt.env, got, tt.want)
		}
	}
}
