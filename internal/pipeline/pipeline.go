// Package pipeline converts a document into per-page text.
//
// Convert splits the document into page images, extracts every page through a
// bounded pool of workers and returns the texts in page order, whatever order
// the pages finished in. The scratch workspace is removed before Convert
// returns on every path. A failing page does not stop its siblings: all
// workers drain the queue and the first error is returned once they settle.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"folio/internal/logging"
	"folio/internal/progress"
	"folio/internal/raster"
	"folio/internal/services"
	"folio/internal/workqueue"
)

// DefaultConcurrency is the number of pages extracted at once when Options
// leaves it unset.
const DefaultConcurrency = 12

// Splitter turns a document into ordered page images.
type Splitter interface {
	Split(ctx context.Context, documentPath string, dpi int, sink progress.Sink) (raster.Result, error)
}

// Extractor turns one page image into text.
type Extractor interface {
	Extract(ctx context.Context, imagePath string) (string, error)
}

// Options tunes a single Convert call.
type Options struct {
	DPI         int
	Concurrency int
	Progress    progress.Sink
}

// Pipeline wires a Splitter to an Extractor.
type Pipeline struct {
	splitter  Splitter
	extractor Extractor
	logger    *slog.Logger
}

// New constructs a Pipeline. A nil logger discards output.
func New(splitter Splitter, extractor Extractor, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		splitter:  splitter,
		extractor: extractor,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}
}

type unit struct {
	index     int
	imagePath string
}

// ClampConcurrency resolves the worker count for units pages: requested (or
// DefaultConcurrency when requested <= 0) limited to [1, units].
func ClampConcurrency(requested, units int) int {
	if requested <= 0 {
		requested = DefaultConcurrency
	}
	return max(min(requested, units), 1)
}

// Convert returns the text of every rendered page of documentPath, in order.
func (p *Pipeline) Convert(ctx context.Context, documentPath string, opts Options) ([]string, error) {
	ctx = services.WithDocument(ctx, documentPath)
	logger := logging.WithContext(ctx, p.logger)

	split, err := p.splitter.Split(ctx, documentPath, opts.DPI, opts.Progress)
	if err != nil {
		return nil, err
	}
	defer p.release(logger, split.Workspace)

	units := make([]unit, len(split.Pages))
	for i, path := range split.Pages {
		units[i] = unit{index: i, imagePath: path}
	}
	results := make([]string, len(units))
	if len(units) == 0 {
		return results, nil
	}

	queue := workqueue.New(units)
	tracker := progress.NewTracker(documentPath, progress.StageExtracting, len(units), opts.Progress)
	extractCtx := services.WithStage(ctx, string(progress.StageExtracting))
	workers := ClampConcurrency(opts.Concurrency, len(units))

	logger.Debug("extracting pages",
		logging.Int("pages", len(units)),
		logging.Int("workers", workers),
	)

	var group errgroup.Group
	for range workers {
		group.Go(func() error {
			for {
				u, ok := queue.Pop()
				if !ok {
					return nil
				}
				text, err := p.extractor.Extract(services.WithPageIndex(extractCtx, u.index), u.imagePath)
				if err != nil {
					return fmt.Errorf("page %d: %w", u.index+1, err)
				}
				tracker.Complete(func() { results[u.index] = text })
			}
		})
	}
	if err := group.Wait(); err != nil {
		logging.ErrorWithContext(logger, "document conversion failed", "conversion_failed",
			logging.Error(err),
			logging.Int("completed_pages", tracker.Completed()),
			logging.Int("pages", len(units)),
		)
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) release(logger *slog.Logger, workspace *raster.Workspace) {
	if err := workspace.Remove(); err != nil {
		logging.WarnWithContext(logger, "workspace cleanup failed", "workspace_cleanup_failed",
			logging.String("workspace", workspace.Path()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the directory manually"),
			logging.String(logging.FieldImpact, "page images remain on disk"),
		)
	}
}
