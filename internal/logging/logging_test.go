package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_ErrorCarriesStackTrace(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "INFO", false)

	log.Debug("hidden")
	log.Error("boom", "id", "a")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the error line, got %d lines", len(lines))
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["msg"] != "boom" || rec["id"] != "a" {
		t.Errorf("unexpected record %v", rec)
	}
	if st, _ := rec["stacktrace"].(string); !strings.Contains(st, "goroutine") {
		t.Errorf("expected stack trace, got %q", st)
	}
}

func TestNew_WithAttrsKeepsStackHandler(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "INFO", true).With("component", "test")

	log.Error("boom")
	if out := buf.String(); !strings.Contains(out, "component=test") || !strings.Contains(out, "stacktrace=") {
		t.Errorf("unexpected output %q", out)
	}
}
