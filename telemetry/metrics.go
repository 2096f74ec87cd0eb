package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the lifecycle instruments.
type Metrics struct {
	LocksFired      metric.Int64Counter
	StaleWarnings   metric.Int64Counter
	AutoCloses      metric.Int64Counter
	GatewayFailures metric.Int64Counter
	RowsSkipped     metric.Int64Counter
	SweepDuration   metric.Float64Histogram
}

// NewMetrics creates all instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.LocksFired, err = meter.Int64Counter("forumkeeper.locks.fired",
		metric.WithDescription("Pending locks fired by the resolve sweep"),
	); err != nil {
		return nil, err
	}
	if m.StaleWarnings, err = meter.Int64Counter("forumkeeper.stale.warnings",
		metric.WithDescription("Stale warnings sent"),
	); err != nil {
		return nil, err
	}
	if m.AutoCloses, err = meter.Int64Counter("forumkeeper.stale.closes",
		metric.WithDescription("Threads auto-closed for inactivity"),
	); err != nil {
		return nil, err
	}
	if m.GatewayFailures, err = meter.Int64Counter("forumkeeper.gateway.failures",
		metric.WithDescription("Failed gateway calls"),
	); err != nil {
		return nil, err
	}
	if m.RowsSkipped, err = meter.Int64Counter("forumkeeper.sweep.skipped",
		metric.WithDescription("Registry rows skipped because the guild is unconfigured"),
	); err != nil {
		return nil, err
	}
	if m.SweepDuration, err = meter.Float64Histogram("forumkeeper.sweep.duration",
		metric.WithDescription("Sweep pass duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// Inc adds one to counter with an op attribute.
func Inc(ctx context.Context, counter metric.Int64Counter, op string) {
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
