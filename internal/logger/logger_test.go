package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("failed to decode log line %q: %v", line, err)
		}
		records = append(records, rec)
	}
	return records
}

func TestLoggerServiceAttribute(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	log := New(&buf, LevelInfo, "pricing", nil)
	log.Info(ctx, "feed connected", "venue", "uniswap-v2")

	records := decodeRecords(t, &buf)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec["service"] != "pricing" {
		t.Errorf("service = %v, want pricing", rec["service"])
	}
	if rec["msg"] != "feed connected" {
		t.Errorf("msg = %v, want feed connected", rec["msg"])
	}
	if rec["venue"] != "uniswap-v2" {
		t.Errorf("venue = %v, want uniswap-v2", rec["venue"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	log := New(&buf, LevelWarn, "scanner", nil)
	log.Debug(ctx, "dropped")
	log.Info(ctx, "dropped")
	log.Warn(ctx, "kept")
	log.Error(ctx, "kept")

	records := decodeRecords(t, &buf)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0]["level"] != "WARN" || records[1]["level"] != "ERROR" {
		t.Errorf("levels = %v, %v, want WARN, ERROR", records[0]["level"], records[1]["level"])
	}
}

func TestLoggerTraceID(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	log := New(&buf, LevelInfo, "analysis", func(ctx context.Context) string {
		return "trace-123"
	})
	log.Info(ctx, "scan started")

	records := decodeRecords(t, &buf)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0]["trace_id"] != "trace-123" {
		t.Errorf("trace_id = %v, want trace-123", records[0]["trace_id"])
	}
}

func TestLoggerWith(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	log := New(&buf, LevelInfo, "gasfee", nil)
	child := log.With("network", "ethereum")
	child.Info(ctx, "oracle ready")

	records := decodeRecords(t, &buf)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0]["network"] != "ethereum" {
		t.Errorf("network = %v, want ethereum", records[0]["network"])
	}
	if records[0]["service"] != "gasfee" {
		t.Errorf("service = %v, want gasfee", records[0]["service"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
