package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	roomKey ctxKey = iota
	sessionKey
)

// ContextWithRoom tags a context with the room a request concerns.
func ContextWithRoom(ctx context.Context, room string) context.Context {
	return context.WithValue(ctx, roomKey, room)
}

// ContextWithSession tags a context with the signaling session handling
// it.
func ContextWithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey, sessionID)
}

// WithCtx enriches a logger with whatever the context carries: room,
// session, and the active trace ID when tracing is on.
func WithCtx(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	var fields []interface{}

	if room, ok := ctx.Value(roomKey).(string); ok {
		fields = append(fields, zap.String("room", room))
	}
	if session, ok := ctx.Value(sessionKey).(string); ok {
		fields = append(fields, zap.String("session_id", session))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}

	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
