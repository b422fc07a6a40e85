package main

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"folio/internal/batch"
	"folio/internal/logging"
	"folio/internal/progress"
)

const (
	fileBarTotal   = 200
	fileNameWidth  = 40
	progressBucket = 10
)

// progressDisplay turns batch hooks into user-visible progress.
type progressDisplay interface {
	hooks() batch.Hooks
	finish()
}

func newProgressDisplay(out io.Writer, files int, logger *slog.Logger) progressDisplay {
	if isTerminal(out) {
		return newBarDisplay(out, files)
	}
	return newLogDisplay(logger, files)
}

func stageLabel(stage progress.Stage) string {
	return cases.Title(language.English).String(string(stage))
}

// stageOffset places splitting in the first half of a file bar and
// extraction in the second.
func stageOffset(stage progress.Stage) float64 {
	if stage == progress.StageExtracting {
		return fileBarTotal / 2
	}
	return 0
}

func truncatePath(path string, width int) string {
	runes := []rune(path)
	if len(runes) <= width {
		return path
	}
	return "..." + string(runes[len(runes)-(width-3):])
}

type fileBar struct {
	bar   *mpb.Bar
	label atomic.Value
}

type barDisplay struct {
	progress *mpb.Progress
	total    *mpb.Bar

	mu   sync.Mutex
	bars map[int]*fileBar
}

func newBarDisplay(out io.Writer, files int) *barDisplay {
	p := mpb.New(
		mpb.WithOutput(out),
		mpb.WithWidth(48),
		mpb.WithRefreshRate(150*time.Millisecond),
	)
	total := p.AddBar(int64(files),
		mpb.PrependDecorators(
			decor.Name("Total", decor.WC{W: fileNameWidth + 1, C: decor.DindentRight}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
			decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncSpace),
		),
	)
	return &barDisplay{progress: p, total: total, bars: make(map[int]*fileBar)}
}

func (d *barDisplay) hooks() batch.Hooks {
	return batch.Hooks{
		OnStart:    d.start,
		OnProgress: d.update,
		OnFinish:   d.done,
	}
}

func (d *barDisplay) start(worker int, path string) {
	fb := &fileBar{}
	fb.label.Store("Starting")
	fb.bar = d.progress.AddBar(fileBarTotal,
		mpb.BarRemoveOnComplete(),
		mpb.PrependDecorators(
			decor.Name(truncatePath(path, fileNameWidth), decor.WC{W: fileNameWidth + 1, C: decor.DindentRight}),
			decor.Any(func(decor.Statistics) string { return fb.label.Load().(string) }, decor.WCSyncWidthR),
		),
		mpb.AppendDecorators(decor.Percentage(decor.WCSyncSpace)),
	)
	d.mu.Lock()
	d.bars[worker] = fb
	d.mu.Unlock()
}

func (d *barDisplay) update(worker int, event progress.Event) {
	d.mu.Lock()
	fb := d.bars[worker]
	d.mu.Unlock()
	if fb == nil {
		return
	}
	fb.label.Store(stageLabel(event.Stage) + " " + progressDetail(event))
	current := stageOffset(event.Stage) + event.Percentage/100*(fileBarTotal/2)
	fb.bar.SetCurrent(min(int64(current), fileBarTotal-1))
}

func (d *barDisplay) done(worker int, result batch.Result) {
	d.mu.Lock()
	fb := d.bars[worker]
	delete(d.bars, worker)
	d.mu.Unlock()
	if fb != nil {
		if result.Status == batch.StatusFailed || result.Status == batch.StatusCancelled {
			fb.bar.Abort(true)
		} else {
			fb.bar.SetTotal(-1, true)
		}
	}
	d.total.Increment()
}

func (d *barDisplay) finish() {
	d.mu.Lock()
	for worker, fb := range d.bars {
		fb.bar.Abort(true)
		delete(d.bars, worker)
	}
	d.mu.Unlock()
	d.total.SetTotal(-1, true)
	d.progress.Wait()
}

type logDisplay struct {
	logger *slog.Logger
	files  int
	done   atomic.Int32

	mu       sync.Mutex
	samplers map[int]*logging.ProgressSampler
}

func newLogDisplay(logger *slog.Logger, files int) *logDisplay {
	return &logDisplay{
		logger:   logging.NewComponentLogger(logger, "progress"),
		files:    files,
		samplers: make(map[int]*logging.ProgressSampler),
	}
}

func (d *logDisplay) hooks() batch.Hooks {
	return batch.Hooks{
		OnStart: func(worker int, path string) {
			d.mu.Lock()
			d.samplers[worker] = logging.NewProgressSampler(progressBucket)
			d.mu.Unlock()
			d.logger.Info("file started", logging.String(logging.FieldDocument, path))
		},
		OnProgress: func(worker int, event progress.Event) {
			d.mu.Lock()
			sampler := d.samplers[worker]
			d.mu.Unlock()
			if !sampler.ShouldLog(event) {
				return
			}
			d.logger.Info(stageLabel(event.Stage),
				logging.String(logging.FieldDocument, event.DocumentPath),
				logging.String(logging.FieldStage, string(event.Stage)),
				logging.Percent(event.Percentage),
				logging.Int("completed", event.Completed),
				logging.Int("total", event.Total),
			)
		},
		OnFinish: func(_ int, result batch.Result) {
			done := d.done.Add(1)
			d.logger.Info("file finished",
				logging.String(logging.FieldDocument, result.Path),
				logging.String("status", string(result.Status)),
				logging.Int("done", int(done)),
				logging.Int("files", d.files),
			)
		},
	}
}

func (d *logDisplay) finish() {}

func progressDetail(event progress.Event) string {
	return fmt.Sprintf("(%d/%d)", event.Completed, event.Total)
}
