package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if p := ProjectFromContext(ctx); p != nil {
		fields = append(fields,
			zap.String("project.id", p.ID),
			zap.String("project.path", p.Path),
		)
	}

	if opID := OperationIDFromContext(ctx); opID != "" {
		fields = append(fields, zap.String("operation.id", opID))
	}

	return fields
}

type projectCtxKey struct{}
type operationCtxKey struct{}
type loggerCtxKey struct{}

// ProjectRef identifies the project a log line belongs to.
type ProjectRef struct {
	ID   string
	Path string
}

// WithProject adds project identity to context.
func WithProject(ctx context.Context, id, path string) context.Context {
	return context.WithValue(ctx, projectCtxKey{}, &ProjectRef{ID: id, Path: path})
}

// ProjectFromContext extracts project identity from context.
func ProjectFromContext(ctx context.Context) *ProjectRef {
	if p, ok := ctx.Value(projectCtxKey{}).(*ProjectRef); ok {
		return p
	}
	return nil
}

// WithOperationID tags context with the id of a scheduled library operation.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationCtxKey{}, id)
}

// OperationIDFromContext extracts the operation id from context.
func OperationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(operationCtxKey{}).(string); ok {
		return id
	}
	return ""
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
