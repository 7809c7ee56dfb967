package session

import (
	"context"

	"github.com/prperemyshlev/access-service/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/prperemyshlev/access-service/internal/session"

type metrics struct {
	resolutions   metric.Int64Counter
	watchdogFires metric.Int64Counter
}

func newMetrics() *metrics {
	resolutions := observability.Counter(meterName, "session.profile.resolutions",
		"Profile resolutions by the step that produced the profile")
	watchdogFires := observability.Counter(meterName, "session.loading.watchdog_fires",
		"Sessions forced out of loading by the ceiling")

	return &metrics{resolutions: resolutions, watchdogFires: watchdogFires}
}

func (m *metrics) recordResolution(ctx context.Context, source Source) {
	m.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(source))))
}

func (m *metrics) recordWatchdog(ctx context.Context) {
	m.watchdogFires.Add(ctx, 1)
}
