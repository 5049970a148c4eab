package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromContext_RunID(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupWriter(&buf, "info", "json")

	ctx := WithRunID(context.Background(), "run-123")
	if got := RunID(ctx); got != "run-123" {
		t.Fatalf("RunID() = %q, want run-123", got)
	}

	FromContext(ctx).Info("stage done", "stage", "mapping")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"run-123"`) {
		t.Errorf("log output missing run_id: %s", out)
	}
	if !strings.Contains(out, `"stage":"mapping"`) {
		t.Errorf("log output missing field: %s", out)
	}
}

func TestFromContext_NoIDs(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupWriter(&buf, "info", "text")

	WithFields(context.Background(), "table", "dbo.Clientes").Info("hello")

	out := buf.String()
	if strings.Contains(out, "run_id") || strings.Contains(out, "request_id") {
		t.Errorf("unexpected ids in output: %s", out)
	}
	if !strings.Contains(out, "table=dbo.Clientes") {
		t.Errorf("missing field in output: %s", out)
	}
}
