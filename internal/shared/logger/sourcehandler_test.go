package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelSourceHandler(t *testing.T) {
	warnAndUp := []slog.Level{slog.LevelWarn, slog.LevelError}
	everything := []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}

	tests := []struct {
		name       string
		level      slog.Level
		levels     []slog.Level
		wantSource bool
	}{
		{"info is quiet in production", slog.LevelInfo, warnAndUp, false},
		{"debug is quiet in production", slog.LevelDebug, warnAndUp, false},
		{"warn carries source", slog.LevelWarn, warnAndUp, true},
		{"error carries source", slog.LevelError, warnAndUp, true},
		{"info carries source in debug mode", slog.LevelInfo, everything, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
			log := slog.New(NewLevelSourceHandler(base, tt.levels...))

			log.Log(context.Background(), tt.level, "resource created")

			assert.Equal(t, tt.wantSource, bytes.Contains(buf.Bytes(), []byte("source=")), buf.String())
		})
	}
}

func TestLevelSourceHandler_KeepsAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	log := slog.New(NewLevelSourceHandler(base, slog.LevelError)).
		With("merchant_id", "m1").
		WithGroup("funnel")

	log.Info("assigned", "resource_id", "res_abc")

	out := buf.String()
	assert.Contains(t, out, "merchant_id=m1")
	assert.Contains(t, out, "funnel.resource_id=res_abc")
	assert.NotContains(t, out, "source=")
}

func TestLevelSourceHandler_DelegatesEnabled(t *testing.T) {
	base := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
	h := NewLevelSourceHandler(base, slog.LevelError)

	ctx := context.Background()
	assert.True(t, h.Enabled(ctx, slog.LevelInfo))
	assert.True(t, h.Enabled(ctx, slog.LevelError))
	assert.False(t, h.Enabled(ctx, slog.LevelDebug))
}
