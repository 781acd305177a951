package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestRecorderFiltersSpans(t *testing.T) {
	recorder := NewTestSpanRecorder()
	tp := NewTestTracerProvider(recorder)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := tp.Tracer("test")

	_, create := tracer.Start(context.Background(), "subscriber.repository.create")
	create.SetAttributes(attribute.String("operation", "upstream.create"))
	create.End()

	_, update := tracer.Start(context.Background(), "subscriber.repository.update")
	update.SetAttributes(
		attribute.String("operation", "upstream.update"),
		attribute.Int("http.status_code", 200),
	)
	update.End()

	assert.Equal(t, 2, recorder.Count())
	assert.Len(t, recorder.GetSpansByOperation("upstream.create"), 1)
	assert.Len(t, recorder.GetSpansByName("subscriber.repository.update"), 1)
	assert.Len(t, recorder.GetSpansByAttribute("http.status_code", "200"), 1)

	recorder.Clear()
	assert.Equal(t, 0, recorder.Count())
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing("svc", "1.0.0", "zipkin")
	require.Error(t, err)
}

func TestInitTracingWithoutExporter(t *testing.T) {
	tp, err := InitTracing("svc", "1.0.0", ExporterNone)
	require.NoError(t, err)
	assert.NoError(t, ShutdownTracing(context.Background(), tp))
}
