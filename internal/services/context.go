package services

import "context"

type contextKey string

const (
	uploadIDKey  contextKey = "upload_id"
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "request_id"
)

// WithUploadID annotates context with the upload identifier.
func WithUploadID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, uploadIDKey, id)
}

// UploadIDFromContext extracts the upload identifier if present.
func UploadIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(uploadIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithActor annotates context with the pipeline actor name
// (sequencer, processor, transport, manager).
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor name if present.
func ActorFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(actorKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
