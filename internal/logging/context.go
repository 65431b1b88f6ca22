package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
)

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the logger from context, falls back to global
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey).(*Logger); ok {
		return logger
	}
	return global
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID stored in ctx, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// extractContextFields collects request_id and, when a span is active, trace_id
func extractContextFields(ctx context.Context) []interface{} {
	var fields []interface{}

	if requestID := RequestID(ctx); requestID != "" {
		k, v := String("request_id", requestID)
		fields = append(fields, k, v)
	}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		k, v := String("trace_id", sc.TraceID().String())
		fields = append(fields, k, v)
	}

	return fields
}
