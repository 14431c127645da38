// Package observability provides logging helpers, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
)

// LogAsyncOperationStart logs the start of a background operation.
// It writes through slog.Default, which the application points at its request-aware logger.
func LogAsyncOperationStart(ctx context.Context, operation string, fields ...any) {
	attrs := append([]any{slog.String("operation", operation), slog.String("type", "async_start")}, fields...)
	slog.Default().InfoContext(ctx, "async operation started", attrs...)
}

// LogAsyncOperationEnd logs the completion of a background operation.
func LogAsyncOperationEnd(ctx context.Context, operation string, fields ...any) {
	attrs := append([]any{slog.String("operation", operation), slog.String("type", "async_end")}, fields...)
	slog.Default().InfoContext(ctx, "async operation completed", attrs...)
}

// LogAsyncOperationError logs a failed background operation.
func LogAsyncOperationError(ctx context.Context, operation string, err error, fields ...any) {
	attrs := append([]any{
		slog.String("operation", operation),
		slog.String("type", "async_error"),
		slog.String("error", err.Error()),
	}, fields...)
	slog.Default().ErrorContext(ctx, "async operation failed", attrs...)
}
