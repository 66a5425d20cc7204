package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// responseRecorder remembers the first status code a handler commits so
// the middleware can report it after ServeHTTP returns.
type responseRecorder struct {
	http.ResponseWriter

	code  int
	wrote bool
}

func (r *responseRecorder) WriteHeader(code int) {
	if !r.wrote {
		r.code = code
		r.wrote = true
	}

	r.ResponseWriter.WriteHeader(code)
}

// Write marks the response committed. A handler that writes without an
// explicit WriteHeader gets the implicit 200 from status.
func (r *responseRecorder) Write(buf []byte) (int, error) {
	r.wrote = true

	n, err := r.ResponseWriter.Write(buf)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}

	return n, nil
}

func (r *responseRecorder) status() int {
	if r.code == 0 {
		return http.StatusOK
	}

	return r.code
}

// HTTPMiddleware wraps next with a server span per request, continuing
// any trace carried in the incoming W3C headers, and logs the completed
// request. Span names follow the "METHOD /path" convention.
func HTTPMiddleware(tracer trace.Tracer, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		parentCtx := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))

		ctx, span := tracer.Start(parentCtx, hr.Method+" "+hr.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(hr.Method),
				attribute.String("http.target", hr.URL.Path),
			),
		)
		defer span.End()

		start := time.Now()
		rec := &responseRecorder{ResponseWriter: rw}

		next.ServeHTTP(rec, hr.WithContext(ctx))

		status := rec.status()

		span.SetAttributes(semconv.HTTPResponseStatusCode(status))

		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		if logger != nil {
			logger.InfoContext(ctx, "http request",
				"method", hr.Method,
				"path", hr.URL.Path,
				"status", status,
				"duration", time.Since(start).String(),
			)
		}
	})
}
