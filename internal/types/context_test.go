package types

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestWithRequestID_GetRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID = %q, want %q", got, "req-123")
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID on empty context = %q, want empty", got)
	}
}

func TestWithLocationID_GetLocationID(t *testing.T) {
	ctx := WithLocationID(context.Background(), "court-7")
	if got := GetLocationID(ctx); got != "court-7" {
		t.Errorf("GetLocationID = %q, want %q", got, "court-7")
	}
}

func TestLoggerFromContext(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))
	scoped := slog.New(slog.NewJSONHandler(io.Discard, nil))

	t.Run("returns scoped logger when set", func(t *testing.T) {
		ctx := WithLogger(context.Background(), scoped)
		if got := LoggerFromContext(ctx, fallback); got != scoped {
			t.Error("expected the scoped logger")
		}
	})

	t.Run("returns fallback when unset", func(t *testing.T) {
		if got := LoggerFromContext(context.Background(), fallback); got != fallback {
			t.Error("expected the fallback logger")
		}
	})

	t.Run("nil fallback resolves to default", func(t *testing.T) {
		if got := LoggerFromContext(context.Background(), nil); got != slog.Default() {
			t.Error("expected slog.Default()")
		}
	})
}
