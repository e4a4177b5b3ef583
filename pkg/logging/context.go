package logging

import (
	"context"
)

const (
	TraceIDKey     = "trace_id"
	RequestIDKey   = "request_id"
	MessageIDKey   = "message_id"
	UserIDKey      = "user_id"
	ServiceNameKey = "service_name"
)

// Keys copied from the context into every *Ctx log line, in output order.
var contextKeys = []string{
	TraceIDKey,
	RequestIDKey,
	MessageIDKey,
	UserIDKey,
	ServiceNameKey,
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func value(ctx context.Context, key string) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func GetTraceID(ctx context.Context) string {
	return value(ctx, TraceIDKey)
}

func GetRequestID(ctx context.Context) string {
	return value(ctx, RequestIDKey)
}

func GetMessageID(ctx context.Context) string {
	return value(ctx, MessageIDKey)
}

func GetUserID(ctx context.Context) string {
	return value(ctx, UserIDKey)
}

func GetServiceName(ctx context.Context) string {
	return value(ctx, ServiceNameKey)
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 2*len(contextKeys))

	for _, key := range contextKeys {
		if v := value(ctx, key); v != "" {
			fields = append(fields, key, v)
		}
	}

	return fields
}
