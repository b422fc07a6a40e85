package services

import "context"

type contextKey string

const (
	documentKey  contextKey = "document"
	stageKey     contextKey = "stage"
	runIDKey     contextKey = "run_id"
	pageIndexKey contextKey = "page_index"
)

// WithDocument annotates context with the source document path.
func WithDocument(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	return context.WithValue(ctx, documentKey, path)
}

// DocumentFromContext extracts the document path if present.
func DocumentFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(documentKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRunID annotates context with the conversion run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPageIndex annotates context with the 0-based page index being processed.
func WithPageIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, pageIndexKey, index)
}

// PageIndexFromContext extracts the page index if present.
func PageIndexFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(pageIndexKey).(int)
	return v, ok
}
