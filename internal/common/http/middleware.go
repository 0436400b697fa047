package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"legal-rag-functions/internal/common/logger"
	"legal-rag-functions/internal/common/metrics"
	"legal-rag-functions/internal/common/observability"
)

// InvocationIDHeader carries the per-request correlation id in both directions.
const InvocationIDHeader = "X-Invocation-Id"

type invocationIDKey struct{}

// InvocationID assigns every request an id, reusing a well-formed inbound one.
func InvocationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(InvocationIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(InvocationIDHeader, id)
		ctx := context.WithValue(r.Context(), invocationIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// InvocationIDFromContext returns the id set by InvocationID, or "".
func InvocationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(invocationIDKey{}).(string)
	return id
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Instrument wraps a function handler with a span, Prometheus and OTel metrics,
// and an invocation-scoped logger stored on the request context.
func Instrument(function string, obs *observability.Observability, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			invocationID := InvocationIDFromContext(r.Context())

			ctx, span := obs.Tracer().Start(r.Context(), "function."+function,
				trace.WithAttributes(
					attribute.String("function.name", function),
					attribute.String("function.invocation_id", invocationID),
					attribute.String("http.method", r.Method),
					attribute.String("http.path", r.URL.Path),
				),
			)
			defer span.End()

			scoped := log.With(map[string]interface{}{
				"functionName": function,
				"invocationId": invocationID,
			})
			ctx = logger.IntoContext(ctx, scoped)
			r = r.WithContext(ctx)

			metrics.FunctionsActive.WithLabelValues(function).Inc()
			defer metrics.FunctionsActive.WithLabelValues(function).Dec()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			duration := time.Since(startTime)

			span.SetAttributes(
				attribute.Int("http.status_code", wrapped.statusCode),
				attribute.Int("http.response_size", wrapped.size),
				attribute.Int64("http.duration_ms", duration.Milliseconds()),
			)
			if wrapped.statusCode >= 500 {
				span.SetStatus(codes.Error, http.StatusText(wrapped.statusCode))
			} else {
				span.SetStatus(codes.Ok, http.StatusText(wrapped.statusCode))
			}

			metrics.FunctionInvocations.WithLabelValues(function, strconv.Itoa(wrapped.statusCode)).Inc()
			metrics.FunctionDuration.WithLabelValues(function).Observe(duration.Seconds())
			obs.RecordInvocationDuration(ctx, function, duration, wrapped.statusCode)

			scoped.Info("invocation completed", map[string]interface{}{
				"route":      getRoutePattern(r),
				"status":     wrapped.statusCode,
				"durationMs": duration.Milliseconds(),
			})
		})
	}
}

// getRoutePattern extracts the route pattern from chi's RouteContext
// Falls back to the raw path if chi context is not available
func getRoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}
