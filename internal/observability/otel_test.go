package observability

import (
	"context"
	"testing"

	"rental-inventory-backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

func TestSetupTracingSDK_Disabled(t *testing.T) {
	tp, shutdown, err := SetupTracingSDK(context.Background(), config.TelemetryConfig{}, "test")
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.NoError(t, shutdown(context.Background()))
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestSetupTracingSDK_Enabled(t *testing.T) {
	cfg := config.TelemetryConfig{Enabled: true, Endpoint: "localhost:4318", Insecure: true, ServiceName: "rental-test"}
	tp, shutdown, err := SetupTracingSDK(context.Background(), cfg, "test")
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())

	assert.NoError(t, shutdown(context.Background()))
}

func TestNewResource(t *testing.T) {
	res, err := newResource("rental-test", "1.2.3")
	require.NoError(t, err)
	assert.Equal(t, resource.Default().SchemaURL(), res.SchemaURL())

	name, ok := res.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "rental-test", name.AsString())
	version, ok := res.Set().Value(semconv.ServiceVersionKey)
	require.True(t, ok)
	assert.Equal(t, "1.2.3", version.AsString())
}
