package batch

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"folio/internal/logging"
	"folio/internal/progress"
	"folio/internal/workqueue"
)

// Hooks lets a caller observe the run. Every hook is optional and may be
// called from several workers at once; worker is 0-based.
type Hooks struct {
	OnStart    func(worker int, path string)
	OnProgress func(worker int, event progress.Event)
	OnFinish   func(worker int, result Result)
}

// Runner processes files with a bounded pool of workers.
type Runner struct {
	processor   *Processor
	concurrency int
	logger      *slog.Logger
}

// NewRunner builds a Runner running at most concurrency files at once.
func NewRunner(processor *Processor, concurrency int, logger *slog.Logger) *Runner {
	return &Runner{
		processor:   processor,
		concurrency: max(concurrency, 1),
		logger:      logging.NewComponentLogger(logger, "batch"),
	}
}

// Workers returns how many workers a run over files files uses.
func (r *Runner) Workers(files int) int {
	return max(min(r.concurrency, files), 1)
}

type job struct {
	index int
	path  string
}

// Run processes every file and returns results in input order. One file
// failing never stops the others. Files not started before ctx is cancelled
// are reported as cancelled.
func (r *Runner) Run(ctx context.Context, files []string, hooks Hooks) []Result {
	results := make([]Result, len(files))
	jobs := make([]job, len(files))
	for i, path := range files {
		jobs[i] = job{index: i, path: path}
		results[i] = Result{Path: path, Status: StatusCancelled}
	}
	if len(files) == 0 {
		return results
	}

	queue := workqueue.New(jobs)
	workers := r.Workers(len(files))
	r.logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_started"),
		logging.Int("files", len(files)),
		logging.Int("workers", workers),
	)

	var group errgroup.Group
	for worker := range workers {
		group.Go(func() error {
			for ctx.Err() == nil {
				next, ok := queue.Pop()
				if !ok {
					return nil
				}
				if hooks.OnStart != nil {
					hooks.OnStart(worker, next.path)
				}
				var sink progress.Sink
				if hooks.OnProgress != nil {
					sink = func(event progress.Event) { hooks.OnProgress(worker, event) }
				}
				result := r.processor.Process(ctx, next.path, sink)
				results[next.index] = result
				if hooks.OnFinish != nil {
					hooks.OnFinish(worker, result)
				}
			}
			return nil
		})
	}
	_ = group.Wait()

	summary := Summarize(results)
	r.logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_finished"),
		logging.Int("converted", summary.Converted),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
		logging.Int("cancelled", summary.Cancelled),
	)
	return results
}

// Summary counts results by status.
type Summary struct {
	Converted int
	Skipped   int
	Failed    int
	Cancelled int
	Pages     int
}

// Summarize counts results by status.
func Summarize(results []Result) Summary {
	var s Summary
	for _, result := range results {
		switch result.Status {
		case StatusConverted:
			s.Converted++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		}
		s.Pages += result.Pages
	}
	return s
}

// FirstError returns the first failed result's error in input order.
func FirstError(results []Result) error {
	for _, result := range results {
		if result.Err != nil {
			return result.Err
		}
	}
	return nil
}
