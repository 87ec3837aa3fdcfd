// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
	"sort"
)

// GlobalLogger is the logger used for repository and background events.
var GlobalLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// RepoLoggingEnabled toggles RepoLogger output. Tests switch it off to keep
// output quiet.
var RepoLoggingEnabled = true

type correlationKey struct{}

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// fieldAttrs renders fields in a stable order.
func fieldAttrs(fields map[string]any) []any {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return attrs
}

// RepoLogger records writes performed by a repository.
type RepoLogger struct {
	table string
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(table string) *RepoLogger {
	return &RepoLogger{table: table}
}

func (l *RepoLogger) log(ctx context.Context, level slog.Level, operation string, fields map[string]any) {
	if !RepoLoggingEnabled {
		return
	}
	attrs := append([]any{
		slog.String("table", l.table),
		slog.String("operation", operation),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}, fieldAttrs(fields)...)
	GlobalLogger.Log(ctx, level, "repository "+operation, attrs...)
}

func (l *RepoLogger) LogCreate(ctx context.Context, fields map[string]any) {
	l.log(ctx, slog.LevelInfo, "create", fields)
}

func (l *RepoLogger) LogUpdate(ctx context.Context, fields map[string]any) {
	l.log(ctx, slog.LevelInfo, "update", fields)
}

func (l *RepoLogger) LogDelete(ctx context.Context, fields map[string]any) {
	l.log(ctx, slog.LevelInfo, "delete", fields)
}

// LogError logs a failed repository operation.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	l.log(ctx, slog.LevelError, operation, map[string]any{"error": err.Error()})
}

// LogAsyncOperationError logs a failure in work that runs after the
// response, such as publishing a notification or sending an email.
func LogAsyncOperationError(ctx context.Context, operation string, err error, fields map[string]any) {
	attrs := append([]any{
		slog.String("operation", operation),
		slog.String("error", err.Error()),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}, fieldAttrs(fields)...)
	GlobalLogger.ErrorContext(ctx, "async operation failed", attrs...)
}
