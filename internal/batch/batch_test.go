package batch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"folio/internal/batch"
	"folio/internal/pipeline"
	"folio/internal/progress"
	"folio/internal/services"
	"folio/internal/testsupport"
)

type fakeConverter struct {
	mu    sync.Mutex
	calls []string
	pages map[string][]string
	err   map[string]error
	gate  chan struct{}
}

func (f *fakeConverter) Convert(ctx context.Context, path string, opts pipeline.Options) ([]string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.err[filepath.Base(path)]; err != nil {
		return nil, err
	}
	pages := f.pages[filepath.Base(path)]
	tracker := progress.NewTracker(path, progress.StageExtracting, len(pages), opts.Progress)
	for range pages {
		tracker.Complete(nil)
	}
	return pages, nil
}

type fakeExtractor struct {
	calls atomic.Int32
	text  string
	err   error
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) (string, error) {
	f.calls.Add(1)
	return f.text, f.err
}

func newProcessor(t *testing.T, conv batch.Converter, ext pipeline.Extractor, formats ...string) (*batch.Processor, string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out")
	if len(formats) == 0 {
		formats = []string{"txt"}
	}
	return batch.NewProcessor(conv, ext, batch.Options{
		OutputDir:     out,
		Formats:       formats,
		PageSeparator: "|",
		SkipExisting:  true,
	}, nil), out
}

func TestProcessPDFWritesOutputs(t *testing.T) {
	input := filepath.Join(t.TempDir(), "book.pdf")
	testsupport.WriteFile(t, input, 8)
	conv := &fakeConverter{pages: map[string][]string{"book.pdf": {" one ", "two"}}}
	proc, out := newProcessor(t, conv, &fakeExtractor{}, "txt", "json")

	var events []progress.Event
	result := proc.Process(context.Background(), input, func(e progress.Event) { events = append(events, e) })
	if result.Status != batch.StatusConverted || result.Err != nil {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Pages != 2 || len(result.Outputs) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	data, err := os.ReadFile(filepath.Join(out, "book.txt"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "one|two" {
		t.Fatalf("unexpected txt %q", data)
	}
	if len(events) != 2 || events[1].Percentage != 100 {
		t.Fatalf("expected progress forwarded, got %+v", events)
	}
}

func TestProcessImageExtractsSinglePage(t *testing.T) {
	input := filepath.Join(t.TempDir(), "scan.PNG")
	testsupport.WriteFile(t, input, 8)
	conv := &fakeConverter{}
	ext := &fakeExtractor{text: "image text"}
	proc, out := newProcessor(t, conv, ext)

	var last progress.Event
	result := proc.Process(context.Background(), input, func(e progress.Event) { last = e })
	if result.Status != batch.StatusConverted || result.Pages != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(conv.calls) != 0 || ext.calls.Load() != 1 {
		t.Fatalf("expected image to bypass the pipeline (convert=%d extract=%d)", len(conv.calls), ext.calls.Load())
	}
	if last.Stage != progress.StageExtracting || last.Percentage != 100 || last.Total != 1 {
		t.Fatalf("unexpected final event %+v", last)
	}
	data, err := os.ReadFile(filepath.Join(out, "scan.txt"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "image text" {
		t.Fatalf("unexpected output %q", data)
	}
}

func TestProcessSkipsWhenAllOutputsExist(t *testing.T) {
	input := filepath.Join(t.TempDir(), "book.pdf")
	testsupport.WriteFile(t, input, 8)
	conv := &fakeConverter{}
	proc, out := newProcessor(t, conv, &fakeExtractor{}, "txt", "json")

	testsupport.WriteFile(t, filepath.Join(out, "book.txt"), 4)
	result := proc.Process(context.Background(), input, nil)
	if result.Status == batch.StatusSkipped {
		t.Fatal("expected conversion while json output is missing")
	}

	conv.calls = nil
	testsupport.WriteFile(t, filepath.Join(out, "book.json"), 4)
	result = proc.Process(context.Background(), input, nil)
	if result.Status != batch.StatusSkipped {
		t.Fatalf("expected skip, got %+v", result)
	}
	if len(conv.calls) != 0 {
		t.Fatal("expected no conversion when outputs exist")
	}
}

func TestProcessFailureLeavesNoOutput(t *testing.T) {
	input := filepath.Join(t.TempDir(), "bad.pdf")
	testsupport.WriteFile(t, input, 8)
	boom := services.Wrap(services.ErrPermanent, "test", "extract", "", errors.New("boom"))
	conv := &fakeConverter{err: map[string]error{"bad.pdf": boom}}
	proc, out := newProcessor(t, conv, &fakeExtractor{})

	result := proc.Process(context.Background(), input, nil)
	if result.Status != batch.StatusFailed || !errors.Is(result.Err, services.ErrPermanent) {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := os.Stat(filepath.Join(out, "bad.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected no output, stat err=%v", err)
	}
}

func TestProcessMissingInput(t *testing.T) {
	proc, _ := newProcessor(t, &fakeConverter{}, &fakeExtractor{})
	result := proc.Process(context.Background(), filepath.Join(t.TempDir(), "gone.pdf"), nil)
	if result.Status != batch.StatusFailed || !errors.Is(result.Err, services.ErrFileNotFound) {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunnerProcessesAllFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	names := []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf"}
	var files []string
	pages := map[string][]string{}
	for _, name := range names {
		path := filepath.Join(dir, name)
		testsupport.WriteFile(t, path, 8)
		files = append(files, path)
		pages[name] = []string{strings.TrimSuffix(name, ".pdf")}
	}
	boom := errors.New("boom")
	conv := &fakeConverter{pages: pages, err: map[string]error{"c.pdf": boom}}
	proc, _ := newProcessor(t, conv, &fakeExtractor{})
	runner := batch.NewRunner(proc, 2, nil)

	var started, finished atomic.Int32
	var maxWorker atomic.Int32
	results := runner.Run(context.Background(), files, batch.Hooks{
		OnStart: func(worker int, _ string) {
			started.Add(1)
			for {
				cur := maxWorker.Load()
				if int32(worker) <= cur || maxWorker.CompareAndSwap(cur, int32(worker)) {
					break
				}
			}
		},
		OnFinish: func(int, batch.Result) { finished.Add(1) },
	})

	if len(results) != len(files) {
		t.Fatalf("expected %d results, got %d", len(files), len(results))
	}
	for i, result := range results {
		if result.Path != files[i] {
			t.Fatalf("result %d path %q, want %q", i, result.Path, files[i])
		}
	}
	if results[2].Status != batch.StatusFailed || !errors.Is(results[2].Err, boom) {
		t.Fatalf("expected c.pdf to fail, got %+v", results[2])
	}
	summary := batch.Summarize(results)
	if summary.Converted != 4 || summary.Failed != 1 || summary.Pages != 4 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !errors.Is(batch.FirstError(results), boom) {
		t.Fatal("expected FirstError to surface the failure")
	}
	if started.Load() != 5 || finished.Load() != 5 {
		t.Fatalf("hooks: started=%d finished=%d", started.Load(), finished.Load())
	}
	if maxWorker.Load() > 1 {
		t.Fatalf("worker index %d exceeds pool of 2", maxWorker.Load())
	}
}

func TestRunnerCancellationMarksUnstartedFiles(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		path := filepath.Join(dir, name)
		testsupport.WriteFile(t, path, 8)
		files = append(files, path)
	}
	conv := &fakeConverter{gate: make(chan struct{})}
	proc, _ := newProcessor(t, conv, &fakeExtractor{})
	runner := batch.NewRunner(proc, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	results := runner.Run(ctx, files, batch.Hooks{
		OnStart: func(int, string) { cancel() },
	})

	summary := batch.Summarize(results)
	if summary.Cancelled != 3 {
		t.Fatalf("expected every file cancelled, got %+v", summary)
	}
	if len(conv.calls) != 1 {
		t.Fatalf("expected only the first file started, got %v", conv.calls)
	}
}

func TestRunnerWorkers(t *testing.T) {
	runner := batch.NewRunner(nil, 4, nil)
	if got := runner.Workers(2); got != 2 {
		t.Fatalf("Workers(2) = %d", got)
	}
	if got := runner.Workers(10); got != 4 {
		t.Fatalf("Workers(10) = %d", got)
	}
	if got := batch.NewRunner(nil, 0, nil).Workers(3); got != 1 {
		t.Fatalf("zero concurrency should clamp to 1, got %d", got)
	}
}
