package logging

import (
	"context"
	"log/slog"

	"folio/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldDocument is the standardized key for the source document path.
	FieldDocument = "document"
	// FieldStage is the standardized key for pipeline stage names.
	FieldStage = "stage"
	// FieldPage is the standardized key for 0-based page indexes.
	FieldPage = "page"
	// FieldRunID is the standardized key for conversion run identifiers.
	FieldRunID = "run_id"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAttempt is the 1-based retry attempt number.
	FieldAttempt = "attempt"
	// FieldPercent is the completion percentage of a stage.
	FieldPercent = "percent"
	FieldError   = "error"
	// FieldErrorKind names the services marker an error carries.
	FieldErrorKind = "error_kind"
)

// contextFields extracts standardized slog attributes from the provided context.
func contextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if doc, ok := services.DocumentFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDocument, doc))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if page, ok := services.PageIndexFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldPage, page))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(args(fields...)...)
}
