package raster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"folio/internal/logging"
	"folio/internal/progress"
	"folio/internal/services"
	"folio/internal/workqueue"
)

const (
	// DefaultDPI is the render resolution used when none is configured.
	DefaultDPI = 150
	// DefaultReserveCPUs is how many CPUs the render pool leaves free.
	DefaultReserveCPUs = 2
	// PagePrefix is the file name prefix backends write page images under.
	PagePrefix = "page"

	minWorkers = 2
)

// MetadataProvider resolves how many pages a document has.
type MetadataProvider interface {
	PageCount(ctx context.Context, documentPath string) (int, error)
}

// Backend renders a single 0-based page to <outputPrefix>-<n>.png, where n is
// the 1-based page number zero-padded to the width of the page count.
type Backend interface {
	RenderPage(ctx context.Context, documentPath string, pageIndex, dpi int, outputPrefix string) error
}

// Result describes a completed split.
type Result struct {
	Workspace *Workspace
	// Pages lists rendered images sorted by file name, which is page order.
	Pages []string
	// PageCount is the count the MetadataProvider reported.
	PageCount int
}

// Rasterizer splits documents into page images.
type Rasterizer struct {
	metadata     MetadataProvider
	backend      Backend
	workspaceDir string
	reserveCPUs  int
	strictPages  bool
	numCPU       func() int
	logger       *slog.Logger
}

// Option customizes a Rasterizer.
type Option func(*Rasterizer)

// WithWorkspaceDir sets the parent directory for scratch workspaces.
func WithWorkspaceDir(dir string) Option {
	return func(r *Rasterizer) { r.workspaceDir = dir }
}

// WithReserveCPUs sets how many CPUs the worker pool leaves free.
func WithReserveCPUs(n int) Option {
	return func(r *Rasterizer) {
		if n >= 0 {
			r.reserveCPUs = n
		}
	}
}

// WithStrictPages makes Split fail when fewer pages render than were reported.
func WithStrictPages(strict bool) Option {
	return func(r *Rasterizer) { r.strictPages = strict }
}

// WithCPUCount overrides CPU detection (useful for tests).
func WithCPUCount(fn func() int) Option {
	return func(r *Rasterizer) {
		if fn != nil {
			r.numCPU = fn
		}
	}
}

// WithLogger sets the logger for render warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rasterizer) { r.logger = logger }
}

// New constructs a Rasterizer.
func New(metadata MetadataProvider, backend Backend, opts ...Option) *Rasterizer {
	r := &Rasterizer{
		metadata:    metadata,
		backend:     backend,
		reserveCPUs: DefaultReserveCPUs,
		numCPU:      runtime.NumCPU,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "raster")
	return r
}

// WorkerCount returns min(max(cpus-reserve, 2), pages), never below 1.
func WorkerCount(cpus, reserve, pages int) int {
	workers := max(cpus-reserve, minWorkers)
	return max(min(workers, pages), 1)
}

// Split renders every page of documentPath at dpi. sink, when non-nil,
// receives one splitting event per attempted page. On success the caller owns
// Result.Workspace and must remove it.
func (r *Rasterizer) Split(ctx context.Context, documentPath string, dpi int, sink progress.Sink) (Result, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	ctx = services.WithStage(services.WithDocument(ctx, documentPath), string(progress.StageSplitting))
	logger := logging.WithContext(ctx, r.logger)

	if info, err := os.Stat(documentPath); err != nil || info.IsDir() {
		if err == nil {
			err = errors.New("path is a directory")
		}
		return Result{}, services.Wrap(services.ErrDocumentNotFound, "rasterize", "stat document", documentPath, err)
	}

	total, err := r.metadata.PageCount(ctx, documentPath)
	if err != nil {
		if errors.Is(err, services.ErrMetadataUnavailable) {
			return Result{}, err
		}
		return Result{}, services.Wrap(services.ErrMetadataUnavailable, "rasterize", "page count", documentPath, err)
	}
	if total <= 0 {
		return Result{}, services.Wrap(services.ErrMetadataUnavailable, "rasterize", "page count", fmt.Sprintf("%s reports %d pages", documentPath, total), nil)
	}

	workspace, err := NewWorkspace(r.workspaceDir)
	if err != nil {
		return Result{}, err
	}
	pages, err := r.renderAll(ctx, logger, workspace, documentPath, dpi, total, sink)
	if err != nil {
		if cleanupErr := workspace.Remove(); cleanupErr != nil {
			logging.WarnWithContext(logger, "workspace cleanup failed", "workspace_cleanup_failed",
				logging.String("workspace", workspace.Path()),
				logging.Error(cleanupErr),
				logging.String(logging.FieldImpact, "page images remain on disk"),
			)
		}
		return Result{}, err
	}

	logger.Debug("document split",
		logging.Int("pages", len(pages)),
		logging.Int("page_count", total),
		logging.String("workspace", workspace.Path()),
	)
	return Result{Workspace: workspace, Pages: pages, PageCount: total}, nil
}

func (r *Rasterizer) renderAll(ctx context.Context, logger *slog.Logger, workspace *Workspace, documentPath string, dpi, total int, sink progress.Sink) ([]string, error) {
	indexes := make([]int, total)
	for i := range indexes {
		indexes[i] = i
	}
	queue := workqueue.New(indexes)
	tracker := progress.NewTracker(documentPath, progress.StageSplitting, total, sink)
	prefix := filepath.Join(workspace.Path(), PagePrefix)

	var (
		failedMu sync.Mutex
		failed   []int
	)
	var group errgroup.Group
	for range WorkerCount(r.numCPU(), r.reserveCPUs, total) {
		group.Go(func() error {
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				index, ok := queue.Pop()
				if !ok {
					return nil
				}
				if err := r.backend.RenderPage(services.WithPageIndex(ctx, index), documentPath, index, dpi, prefix); err != nil {
					if ctxErr := ctx.Err(); ctxErr != nil {
						return ctxErr
					}
					logging.WarnWithContext(logger, "page render failed", "page_render_failed",
						logging.Page(index),
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "check that the document is not corrupt"),
						logging.String(logging.FieldImpact, "page will be missing from the output"),
					)
					failedMu.Lock()
					failed = append(failed, index)
					failedMu.Unlock()
				}
				tracker.Complete(nil)
			}
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	pages, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, services.Wrap(services.ErrRasterization, "rasterize", "list pages", workspace.Path(), err)
	}
	sort.Strings(pages)

	if len(pages) == 0 {
		return nil, services.Wrap(services.ErrRasterization, "rasterize", "render", fmt.Sprintf("no pages rendered from %s", documentPath), nil)
	}
	if len(pages) != total {
		if r.strictPages {
			return nil, services.Wrap(services.ErrRasterization, "rasterize", "render",
				fmt.Sprintf("rendered %d of %d pages (failed: %v)", len(pages), total, failed), nil)
		}
		logging.WarnWithContext(logger, "some pages were not rendered", "pages_missing",
			logging.Int("rendered", len(pages)),
			logging.Int("page_count", total),
			logging.Any("failed_pages", failed),
			logging.String(logging.FieldErrorHint, "set raster.strict_pages to fail instead"),
			logging.String(logging.FieldImpact, "output will contain fewer pages than the document"),
		)
	}
	return pages, nil
}
