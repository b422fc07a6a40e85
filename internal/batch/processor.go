// Package batch converts many input files, each through the page pipeline
// (PDFs) or a single extraction (images), and writes their outputs.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"folio/internal/fileutil"
	"folio/internal/logging"
	"folio/internal/pipeline"
	"folio/internal/progress"
	"folio/internal/services"
	"folio/internal/writer"
)

// Converter turns a multi-page document into page texts.
type Converter interface {
	Convert(ctx context.Context, documentPath string, opts pipeline.Options) ([]string, error)
}

// Status is the outcome of one file.
type Status string

const (
	StatusConverted Status = "converted"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Result records what happened to one input file.
type Result struct {
	Path     string
	Status   Status
	Pages    int
	Outputs  []string
	Duration time.Duration
	Err      error
}

// Options controls where and how outputs are written.
type Options struct {
	OutputDir     string
	Formats       []string
	PageSeparator string
	DPI           int
	Concurrency   int
	SkipExisting  bool
}

// Processor handles a single input file.
type Processor struct {
	converter Converter
	extractor pipeline.Extractor
	opts      Options
	logger    *slog.Logger
}

// NewProcessor builds a Processor. PDFs go through converter; anything else
// is treated as a single page image and sent to extractor.
func NewProcessor(converter Converter, extractor pipeline.Extractor, opts Options, logger *slog.Logger) *Processor {
	if len(opts.Formats) == 0 {
		opts.Formats = []string{"txt"}
	}
	if opts.PageSeparator == "" {
		opts.PageSeparator = writer.DefaultPageSeparator
	}
	return &Processor{
		converter: converter,
		extractor: extractor,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "batch"),
	}
}

// OutputBase is the output path of path without a format extension.
func (p *Processor) OutputBase(path string) string {
	dir := p.opts.OutputDir
	if dir == "" {
		dir = "."
	}
	name := filepath.Base(path)
	return filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name)))
}

// Process converts path and writes every requested format. Conversion
// errors are reported in the Result, not returned.
func (p *Processor) Process(ctx context.Context, path string, sink progress.Sink) Result {
	start := time.Now()
	result := Result{Path: path}
	ctx = services.WithDocument(ctx, path)
	logger := logging.WithContext(ctx, p.logger)

	base := p.OutputBase(path)
	outputs := writer.OutputPaths(base, p.opts.Formats)
	if p.opts.SkipExisting && fileutil.AllExist(outputs...) {
		logger.Info("outputs already exist, skipping",
			logging.String(logging.FieldEventType, "file_skipped"),
			logging.String("output", base),
		)
		result.Status = StatusSkipped
		result.Outputs = outputs
		return result
	}

	pages, err := p.pages(ctx, path, sink)
	if err == nil {
		result.Pages = len(pages)
		result.Outputs, err = writer.WriteAll(base, pages, p.opts.Formats, p.opts.PageSeparator)
	}
	result.Duration = time.Since(start)

	switch {
	case err == nil:
		result.Status = StatusConverted
		logger.Info("file converted",
			logging.String(logging.FieldEventType, "file_converted"),
			logging.Int("pages", result.Pages),
			logging.Duration("duration", result.Duration),
		)
	case ctx.Err() != nil:
		result.Status = StatusCancelled
		result.Err = err
	default:
		result.Status = StatusFailed
		result.Err = err
		logging.ErrorWithContext(logger, "file conversion failed", "file_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no output written for this file"),
		)
	}
	return result
}

func (p *Processor) pages(ctx context.Context, path string, sink progress.Sink) ([]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, services.Wrap(services.ErrFileNotFound, "batch", "stat input", path, err)
	}
	if IsPDF(path) {
		return p.converter.Convert(ctx, path, pipeline.Options{
			DPI:         p.opts.DPI,
			Concurrency: p.opts.Concurrency,
			Progress:    sink,
		})
	}

	ctx = services.WithStage(ctx, string(progress.StageExtracting))
	text, err := p.extractor.Extract(services.WithPageIndex(ctx, 0), path)
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	progress.NewTracker(path, progress.StageExtracting, 1, sink).Complete(nil)
	return []string{text}, nil
}

// IsPDF reports whether path names a PDF by extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
