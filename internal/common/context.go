package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyPassID contextKey = "pass_id"
	ContextKeyUserID contextKey = "user_id"
)

// WithPassID tags the context with the id of the running sync pass
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, ContextKeyPassID, passID)
}

// PassIDFromContext extracts the sync pass ID from context
func PassIDFromContext(ctx context.Context) string {
	if passID, ok := ctx.Value(ContextKeyPassID).(string); ok {
		return passID
	}
	return ""
}

// WithUserID adds a user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// UserIDFromContext extracts the user ID from context
func UserIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(ContextKeyUserID).(string); ok {
		return userID
	}
	return ""
}

// LoggerFromContext adds the pass and user ids carried by ctx to logger.
func LoggerFromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := PassIDFromContext(ctx); id != "" {
		logger = logger.With("pass_id", id)
	}
	if id := UserIDFromContext(ctx); id != "" {
		logger = logger.With("user_id", id)
	}
	return logger
}
