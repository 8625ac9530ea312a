package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithAttrsOverridesSameKey(t *testing.T) {
	ctx := WithAttrs(context.Background(), slog.String("component", "a"), slog.Int("incidence_id", 1))
	ctx = WithAttrs(ctx, slog.String("component", "b"))

	attrs := Attrs(ctx)
	if len(attrs) != 2 {
		t.Fatalf("len(attrs) = %d, want 2", len(attrs))
	}
	if attrs[0].Key != "component" || attrs[0].Value.String() != "b" {
		t.Fatalf("attrs[0] = %v", attrs[0])
	}
}

func TestLoggerFromContextWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "debug", "json"))
	ctx = WithAttrs(ctx, slog.String("component", "test"))

	Debug(ctx, "transition applied", slog.String("transition", "assign"))

	out := buf.String()
	if !strings.Contains(out, `"component":"test"`) || !strings.Contains(out, `"transition":"assign"`) {
		t.Fatalf("log output = %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("WARN") != slog.LevelWarn {
		t.Fatalf("ParseLevel(WARN) = %v", ParseLevel("WARN"))
	}
	if ParseLevel("bogus") != slog.LevelInfo {
		t.Fatalf("ParseLevel(bogus) = %v", ParseLevel("bogus"))
	}
}
