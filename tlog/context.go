package tlog

import (
	"context"

	"go.uber.org/zap"
)

type loggerKey struct{}

// Get returns the logger carried by a context. A context without one yields
// a no-op logger.
func Get(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithLogger returns a context carrying logger
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// With returns a context carrying the context logger extended with fields
func With(ctx context.Context, fields ...zap.Field) context.Context {
	return WithLogger(ctx, Get(ctx).With(fields...))
}
