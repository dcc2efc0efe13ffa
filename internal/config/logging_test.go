package config_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/petasbytes/agent-core/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"trace", config.LevelTrace, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tc := range cases {
		got, err := config.ParseLogLevel(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseLogLevel(%q): want error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLogLevel(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewLogger_RendersTraceName(t *testing.T) {
	var buf bytes.Buffer
	logger, err := config.NewLogger(&buf, "trace")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Log(context.Background(), config.LevelTrace, "window sized", "groups", 3)
	out := buf.String()
	if !strings.Contains(out, "level=TRACE") {
		t.Errorf("output missing TRACE label: %s", out)
	}
	if strings.Contains(out, "DEBUG-4") {
		t.Errorf("raw level arithmetic leaked: %s", out)
	}
}

func TestNewLogger_FiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger, err := config.NewLogger(&buf, "warn")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info record should be filtered: %s", out)
	}
	if !strings.Contains(out, "loud") {
		t.Errorf("warn record missing: %s", out)
	}
}
