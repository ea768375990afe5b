package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONFormatCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentLedger, Output: &buf})
	logger.Info("entry saved", FieldEntryID, "e-1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if line[FieldComponent] != ComponentLedger || line[FieldEntryID] != "e-1" {
		t.Fatalf("unexpected line: %v", line)
	}
}

func TestDebugFilteredAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Component: ComponentApp, Output: &buf})
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", buf.String())
	}
}

func TestComponentWrittenOnce(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelInfo, Component: ComponentApp, Output: &buf})
	ctx := context.Background()

	cases := []struct {
		name string
		log  func()
		want string
	}{
		{"info", func() { base.WithComponent(ComponentAuth).WithComponent(ComponentLedger).InfoContext(ctx, "saved") }, ComponentLedger},
		{"error", func() { base.WithComponent(ComponentLedger).ErrorContext(ctx, "failed", FieldError, "boom") }, ComponentLedger},
		{"level", func() { base.WithComponent(ComponentHTTP).Log(ctx, slog.LevelWarn, "slow") }, ComponentHTTP},
		{"change", func() {
			NewStructuredLogger(base.WithComponent(ComponentLedger)).LogChange(ctx, "u-1", "entry", "created", "e-1")
		}, ComponentLedger},
		{"request", func() {
			r, _ := http.NewRequest(http.MethodGet, "/api/snapshot", nil)
			NewStructuredLogger(base).LogHTTPEnd(ctx, r, 200, 3, "10.0.0.1")
		}, ComponentHTTP},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf.Reset()
			tc.log()
			line := buf.String()
			if n := strings.Count(line, "component="); n != 1 {
				t.Fatalf("component written %d times: %q", n, line)
			}
			if !strings.Contains(line, "component="+tc.want) {
				t.Fatalf("expected component %s: %q", tc.want, line)
			}
		})
	}
}
