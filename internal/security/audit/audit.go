package audit

import (
	"context"
	"log/slog"
	"time"
)

// Logger writes the audit trail of gate operations: who authorized what,
// for which visitor, with what outcome.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

type requestIDKey struct{}

// WithRequestID returns a context carrying the request id so audit entries
// correlate with access logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id, or "" when none was set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (al *Logger) LogAction(ctx context.Context, officerID, action, resource, resourceID, status, details string) {
	requestID := RequestIDFromContext(ctx)

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("officer_id", officerID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogCheckIn(ctx context.Context, officerID, visitID, status string) {
	al.LogAction(ctx, officerID, "check_in", "visit", visitID, status, "")
}

func (al *Logger) LogCheckOut(ctx context.Context, officerID, visitID, status string) {
	al.LogAction(ctx, officerID, "check_out", "visit", visitID, status, "")
}

func (al *Logger) LogBan(ctx context.Context, officerID, visitorID, status, reason string) {
	al.LogAction(ctx, officerID, "ban", "visitor", visitorID, status, reason)
}

func (al *Logger) LogUnban(ctx context.Context, officerID, visitorID, status string) {
	al.LogAction(ctx, officerID, "unban", "visitor", visitorID, status, "")
}

func (al *Logger) LogDenied(ctx context.Context, reason string) {
	al.LogAction(ctx, "", "access_denied", "gate", "", "denied", reason)
}
