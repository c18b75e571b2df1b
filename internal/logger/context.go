package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey    ctxKey = "request_id"
	restaurantIDKey ctxKey = "restaurant_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRestaurantID tags every log line of the request with the tenant.
func WithRestaurantID(ctx context.Context, restaurantID int64) context.Context {
	return context.WithValue(ctx, restaurantIDKey, restaurantID)
}

// FromCtx returns the global logger enriched with request_id and restaurant_id.
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}
	if rid, ok := ctx.Value(restaurantIDKey).(int64); ok {
		l = l.With(zap.Int64("restaurant_id", rid))
	}
	return l
}
