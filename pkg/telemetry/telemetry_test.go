package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/macropower/resc/pkg/telemetry"
)

// retainingExporter keeps spans after shutdown so they can be inspected.
type retainingExporter struct {
	*tracetest.InMemoryExporter
}

func (retainingExporter) Shutdown(context.Context) error {
	return nil
}

func TestSetup_Disabled(t *testing.T) {
	t.Parallel()

	noEnv := func(string) (string, bool) { return "", false }

	shutdown, err := telemetry.Setup(t.Context(), "resc", telemetry.WithLookupEnv(noEnv))
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(t.Context()))
}

//nolint:paralleltest // Replaces the global tracer provider.
func TestSetup_Exporter(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	exp := retainingExporter{tracetest.NewInMemoryExporter()}

	shutdown, err := telemetry.Setup(t.Context(), "resc",
		telemetry.WithExporter(exp),
		telemetry.WithVersion("v1.2.3"),
	)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "work")
	span.End()

	require.NoError(t, shutdown(t.Context()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "work", spans[0].Name)
	assert.Contains(t, spans[0].Resource.Attributes(), attribute.String("service.name", "resc"))
	assert.Contains(t, spans[0].Resource.Attributes(), attribute.String("service.version", "v1.2.3"))
}
