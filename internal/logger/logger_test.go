package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func decode(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("Invalid JSON log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: "warn", Output: &buf})

	l.Info("hidden").Send()
	l.Warn("shown").Send()

	lines := decode(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 log line, got %d", len(lines))
	}
	if lines[0]["service"] != "searchmeta" {
		t.Errorf("Expected service field, got %v", lines[0]["service"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARNING": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestComponentLoggers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: "debug", Output: &buf})

	p := l.ProviderLogger()
	p.Debug().Msg("built")
	c := l.CatalogLogger("sqlite")
	c.Info().Msg("opened")

	lines := decode(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d", len(lines))
	}
	if lines[0]["component"] != "provider" {
		t.Errorf("Expected provider component, got %v", lines[0]["component"])
	}
	if lines[1]["component"] != "catalog" || lines[1]["driver"] != "sqlite" {
		t.Errorf("Unexpected catalog fields: %v", lines[1])
	}
}

func TestLogGrpcRequest(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: "info", Output: &buf})

	l.LogGrpcRequest("/searchmeta.v1.MetadataService/ListTypes", 5*time.Millisecond, nil)
	l.LogGrpcRequest("/searchmeta.v1.MetadataService/GetTypeMetadata", time.Millisecond, errors.New("not found"))

	lines := decode(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d", len(lines))
	}
	if lines[0]["level"] != "info" || lines[1]["level"] != "error" {
		t.Errorf("Unexpected levels: %v, %v", lines[0]["level"], lines[1]["level"])
	}
	if lines[1]["error"] != "not found" {
		t.Errorf("Expected error field, got %v", lines[1]["error"])
	}
}
