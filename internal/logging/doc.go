// Package logging assembles structured slog loggers and formatting helpers used
// across folio.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with the document, stage, page and run identifiers carried on the
// context. When a log directory is configured every record is also appended
// as JSON to folio.log regardless of the console level.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape and routing as the rest of the system.
package logging
