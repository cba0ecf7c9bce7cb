package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "info", Format: "json"}, &buf)
	logger = WithComponent(logger, "spin")
	logger = WithNetwork(logger, "base", 8453)
	logger = WithTxHash(logger, "0xabc")
	logger = WithPlayer(logger, "0xdef")
	logger.Info().Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log line %q: %v", buf.String(), err)
	}
	for k, want := range map[string]interface{}{
		"component": "spin",
		"network":   "base",
		"chain_id":  float64(8453),
		"tx_hash":   "0xabc",
		"player":    "0xdef",
		"message":   "hello",
	} {
		if entry[k] != want {
			t.Errorf("field %s = %v, want %v", k, entry[k], want)
		}
	}
	if _, ok := entry["caller"]; !ok {
		t.Errorf("expected caller field")
	}
}
