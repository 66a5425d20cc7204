package observability

import (
	"context"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// ResourceFromConfig exposes newResource to the external test package.
func ResourceFromConfig(cfg Config) (*resource.Resource, error) {
	return newResource(cfg)
}

// SamplerProbe starts and ends one span under the sampler cfg resolves
// to and reports whether it was exported. Sampler selection is tested
// through this instead of exposing the Sampler itself.
func SamplerProbe(cfg Config) bool {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(selectSampler(cfg)),
	)

	_, span := tp.Tracer("test").Start(context.Background(), "probe")
	span.End()

	// Shutdown clears the exporter, read first.
	spans := exporter.GetSpans()

	if err := tp.Shutdown(context.Background()); err != nil {
		return false
	}

	return len(spans) > 0
}
