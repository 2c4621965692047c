package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/couchcryptid/storm-radar-loop/internal/config"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger_RespectsLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		level   string
		enabled slog.Level
		below   slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 1},
		{"warning", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"verbose", slog.LevelInfo, slog.LevelDebug},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewLogger(&config.Config{LogLevel: tt.level, LogFormat: "text"})
			assert.True(t, logger.Enabled(context.Background(), tt.enabled))
			assert.False(t, logger.Enabled(context.Background(), tt.below))
		})
	}
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.FramesAdvanced.Inc()
	a.PrefetchTiles.WithLabelValues("loaded").Add(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.FramesAdvanced))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FramesAdvanced))
	assert.Equal(t, 3.0, testutil.ToFloat64(a.PrefetchTiles.WithLabelValues("loaded")))
}
