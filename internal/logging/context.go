package logging

import (
	"context"
	"log/slog"

	"mediadrop/internal/services"
)

// Structured field keys shared by every component.
const (
	FieldComponent     = "component"
	FieldTaskID        = "task_id"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
	// FieldEventType names what happened, for grepping and journal correlation.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldImpact states what the failure means for the task or file.
	FieldImpact = "impact"
)

// ContextFields returns the task, stage and correlation attributes carried by ctx.
func ContextFields(ctx context.Context) []Attr {
	var fields []Attr
	for _, f := range []struct {
		key    string
		lookup func(context.Context) (string, bool)
	}{
		{FieldTaskID, services.TaskIDFromContext},
		{FieldStage, services.StageFromContext},
		{FieldCorrelationID, services.RequestIDFromContext},
	} {
		if ctx == nil {
			break
		}
		if value, ok := f.lookup(ctx); ok {
			fields = append(fields, slog.String(f.key, value))
		}
	}
	return fields
}

// WithContext returns logger tagged with the fields from ContextFields.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(Args(fields...)...)
	}
	return logger
}
