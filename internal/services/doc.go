// Package services defines shared utilities consumed by the conversion core and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp document paths, stage names, page indexes and
//     run identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     transient (retried) or permanent (propagated), and map them to CLI exit
//     codes.
//
// Backend packages under services/ (poppler, mupdf, gdrive, tesseract) tag
// their errors with these markers so the retry policy never needs to know
// about a specific transport.
package services
