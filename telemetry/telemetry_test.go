package telemetry

import (
	"context"
	"testing"

	"forum-keeper/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabledIsNoop(t *testing.T) {
	p, err := Init(context.Background(), models.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p.Metrics)

	ctx, span := StartSpan(context.Background(), p.Tracer, "test")
	Inc(ctx, p.Metrics.LocksFired, "test")
	span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInitNoneExporter(t *testing.T) {
	p, err := Init(context.Background(), models.TelemetryConfig{Enabled: true, Exporter: "none"})
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	_, span := StartSpan(context.Background(), p.Tracer, "sweep")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestInitUnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), models.TelemetryConfig{Enabled: true, Exporter: "carrier-pigeon"})
	assert.Error(t, err)
}
