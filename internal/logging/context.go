package logging

import (
	"context"
	"log/slog"

	"vidpipe/internal/services"
)

const (
	// FieldActor is the standardized structured logging key for pipeline actor names.
	FieldActor = "actor"
	// FieldUploadID is the standardized structured logging key for upload identifiers.
	FieldUploadID = "upload_id"
	// FieldStatus is the standardized structured logging key for upload statuses.
	FieldStatus = "status"
	// FieldProgress is the standardized structured logging key for progress percentages.
	FieldProgress = "progress"
	// FieldCorrelationID is the standardized structured logging key for attempt correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.UploadIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldUploadID, id))
	}
	if actor, ok := services.ActorFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldActor, actor))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
