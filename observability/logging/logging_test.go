package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestHandlerRenamesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))
	logger.Debug("hidden")
	logger.Info("block produced", "height", 7)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["message"] != "block produced" {
		t.Fatalf("unexpected message: %v", line["message"])
	}
	if line["severity"] != "INFO" {
		t.Fatalf("unexpected severity: %v", line["severity"])
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("timestamp missing: %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestMaskField(t *testing.T) {
	if got := MaskField("jwtSecret", "hunter2"); got.Value.String() != RedactedValue {
		t.Fatalf("secret not redacted: %v", got)
	}
	if got := MaskField("module", "bridge"); got.Value.String() != "bridge" {
		t.Fatalf("allowlisted key redacted: %v", got)
	}
	if got := MaskField("jwtSecret", " "); got.Value.String() != " " {
		t.Fatalf("empty value should pass through: %v", got)
	}
}

func TestMaskDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://index:hunter2@db:5432/lanebridge":       "postgres://index:xxxxx@db:5432/lanebridge",
		"postgres://db:5432/lanebridge?password=hunter2":    "postgres://db:5432/lanebridge?password=xxxxx",
		"/var/lib/lanebridge/events.db":                     "/var/lib/lanebridge/events.db",
		"host=db user=index password=hunter2 dbname=bridge": RedactedValue,
	}
	for dsn, want := range cases {
		if got := MaskDSN("dsn", dsn).Value.String(); got != want {
			t.Fatalf("MaskDSN(%q) = %q, want %q", dsn, got, want)
		}
	}
}
