package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"folio/internal/extraction"
	"folio/internal/pipeline"
	"folio/internal/progress"
	"folio/internal/raster"
	"folio/internal/services"
)

type fakeSplitter struct {
	parent    string
	pages     int
	err       error
	workspace *raster.Workspace
}

func (f *fakeSplitter) Split(_ context.Context, documentPath string, _ int, sink progress.Sink) (raster.Result, error) {
	if f.err != nil {
		return raster.Result{}, f.err
	}
	ws, err := raster.NewWorkspace(f.parent)
	if err != nil {
		return raster.Result{}, err
	}
	f.workspace = ws
	tracker := progress.NewTracker(documentPath, progress.StageSplitting, f.pages, sink)
	width := len(strconv.Itoa(f.pages))
	paths := make([]string, f.pages)
	for i := range f.pages {
		paths[i] = filepath.Join(ws.Path(), fmt.Sprintf("page-%0*d.png", width, i+1))
		if err := os.WriteFile(paths[i], []byte(strconv.Itoa(i)), 0o644); err != nil {
			return raster.Result{}, err
		}
		tracker.Complete(nil)
	}
	return raster.Result{Workspace: ws, Pages: paths, PageCount: f.pages}, nil
}

// fakeExtractor returns "text-<page index>" after a delay that makes early
// pages finish last.
type fakeExtractor struct {
	pages    int
	failPage int
	failErr  error
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (f *fakeExtractor) Extract(_ context.Context, imagePath string) (string, error) {
	f.calls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if current <= peak || f.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", err
	}
	index, _ := strconv.Atoi(string(data))
	time.Sleep(time.Duration(f.pages-index) * time.Millisecond)
	if f.failErr != nil && index == f.failPage {
		return "", f.failErr
	}
	return "text-" + strconv.Itoa(index), nil
}

func writeDocument(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}
	return path
}

func assertRemoved(t *testing.T, ws *raster.Workspace) {
	t.Helper()
	if ws == nil {
		t.Fatal("workspace was never created")
	}
	if _, err := os.Stat(ws.Path()); !os.IsNotExist(err) {
		t.Fatalf("workspace %s still exists (stat err %v)", ws.Path(), err)
	}
}

func TestClampConcurrency(t *testing.T) {
	tests := []struct {
		requested, units, want int
	}{
		{0, 100, 12},
		{-3, 5, 5},
		{4, 100, 4},
		{20, 3, 3},
		{1, 1, 1},
		{5, 0, 1},
	}
	for _, tc := range tests {
		if got := pipeline.ClampConcurrency(tc.requested, tc.units); got != tc.want {
			t.Errorf("ClampConcurrency(%d, %d) = %d, want %d", tc.requested, tc.units, got, tc.want)
		}
	}
}

func TestConvertReturnsPagesInOrder(t *testing.T) {
	for _, concurrency := range []int{1, 3, 12, 50} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			const pages = 15
			splitter := &fakeSplitter{parent: t.TempDir(), pages: pages}
			extractor := &fakeExtractor{pages: pages}
			p := pipeline.New(splitter, extractor, nil)

			results, err := p.Convert(context.Background(), writeDocument(t), pipeline.Options{Concurrency: concurrency})
			if err != nil {
				t.Fatalf("Convert returned error: %v", err)
			}
			if len(results) != pages {
				t.Fatalf("got %d results, want %d", len(results), pages)
			}
			for i, text := range results {
				if text != "text-"+strconv.Itoa(i) {
					t.Fatalf("results[%d] = %q", i, text)
				}
			}
			limit := int32(min(concurrency, pages))
			if peak := extractor.peak.Load(); peak > limit {
				t.Fatalf("peak in-flight %d exceeds %d", peak, limit)
			}
			assertRemoved(t, splitter.workspace)
		})
	}
}

func TestConvertTwoPagesSequentialProgress(t *testing.T) {
	splitter := &fakeSplitter{parent: t.TempDir(), pages: 2}
	p := pipeline.New(splitter, &fakeExtractor{pages: 2}, nil)

	var (
		mu     sync.Mutex
		events []progress.Event
	)
	results, err := p.Convert(context.Background(), writeDocument(t), pipeline.Options{
		Concurrency: 1,
		Progress: func(e progress.Event) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if strings.Join(results, ",") != "text-0,text-1" {
		t.Fatalf("unexpected results %v", results)
	}

	var extracting []progress.Event
	for _, e := range events {
		if e.Stage == progress.StageExtracting {
			extracting = append(extracting, e)
		}
	}
	if len(extracting) != 2 {
		t.Fatalf("expected 2 extracting events, got %d (%+v)", len(extracting), events)
	}
	if extracting[0].Percentage != 50 || extracting[0].Remaining != 1 {
		t.Fatalf("unexpected first event %+v", extracting[0])
	}
	if extracting[1].Percentage != 100 || extracting[1].Remaining != 0 {
		t.Fatalf("unexpected second event %+v", extracting[1])
	}
	if len(events) != 4 || events[0].Stage != progress.StageSplitting {
		t.Fatalf("expected splitting events before extracting events, got %+v", events)
	}
	assertRemoved(t, splitter.workspace)
}

func TestConvertPermanentFailureStillDrainsAndCleansUp(t *testing.T) {
	perm := services.Wrap(services.ErrPermanent, "extraction", "upload", "403", nil)
	const pages = 6
	splitter := &fakeSplitter{parent: t.TempDir(), pages: pages}
	extractor := &fakeExtractor{pages: pages, failPage: 2, failErr: perm}
	p := pipeline.New(splitter, extractor, nil)

	results, err := p.Convert(context.Background(), writeDocument(t), pipeline.Options{Concurrency: 2})
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if !strings.Contains(err.Error(), "page 3") {
		t.Fatalf("expected page number in error, got %v", err)
	}
	if results != nil {
		t.Fatalf("expected no results on failure, got %v", results)
	}
	if calls := extractor.calls.Load(); calls != pages {
		t.Fatalf("siblings should drain the queue: %d extract calls, want %d", calls, pages)
	}
	assertRemoved(t, splitter.workspace)
}

func TestConvertSplitFailureIsReturned(t *testing.T) {
	splitErr := services.Wrap(services.ErrMetadataUnavailable, "rasterize", "page count", "doc.pdf", nil)
	extractor := &fakeExtractor{}
	p := pipeline.New(&fakeSplitter{err: splitErr}, extractor, nil)

	_, err := p.Convert(context.Background(), "doc.pdf", pipeline.Options{})
	if !errors.Is(err, services.ErrMetadataUnavailable) {
		t.Fatalf("expected metadata error, got %v", err)
	}
	if extractor.calls.Load() != 0 {
		t.Fatal("extractor should not run when split fails")
	}
}

type flakyBackend struct {
	mu        sync.Mutex
	failures  map[string]int
	attempts  map[string]int
	documents map[string]string
	next      int
}

func (f *flakyBackend) Upload(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	base := filepath.Base(path)
	f.attempts[base]++
	if f.failures[base] > 0 {
		f.failures[base]--
		return "", services.Wrap(services.ErrTransient, "test", "upload", "429 rate limited", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	f.next++
	id := strconv.Itoa(f.next)
	f.documents[id] = "\ufeff________________page " + string(data) + "\r\n"
	return id, nil
}

func (f *flakyBackend) ReadBack(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.documents[id], nil
}

func (f *flakyBackend) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.documents, id)
	return nil
}

type renderBackend struct{}

func (renderBackend) RenderPage(_ context.Context, _ string, pageIndex, _ int, prefix string) error {
	return os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, pageIndex+1), []byte(strconv.Itoa(pageIndex)), 0o644)
}

type staticMetadata int

func (m staticMetadata) PageCount(context.Context, string) (int, error) { return int(m), nil }

func TestConvertRetriesTransientFailuresEndToEnd(t *testing.T) {
	parent := t.TempDir()
	backend := &flakyBackend{
		failures:  map[string]int{"page-2.png": 2},
		attempts:  map[string]int{},
		documents: map[string]string{},
	}
	var sleeps atomic.Int32
	client := extraction.NewClient(backend, extraction.WithSleeper(func(time.Duration) { sleeps.Add(1) }))
	rasterizer := raster.New(staticMetadata(3), renderBackend{},
		raster.WithWorkspaceDir(parent),
		raster.WithCPUCount(func() int { return 4 }),
	)
	p := pipeline.New(rasterizer, client, nil)

	results, err := p.Convert(context.Background(), writeDocument(t), pipeline.Options{Concurrency: 3})
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if strings.Join(results, "|") != "page 0|page 1|page 2" {
		t.Fatalf("unexpected results %q", results)
	}
	if backend.attempts["page-2.png"] != 3 {
		t.Fatalf("expected 3 attempts for page 2, got %d", backend.attempts["page-2.png"])
	}
	if sleeps.Load() != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d", sleeps.Load())
	}
	if len(backend.documents) != 0 {
		t.Fatalf("remote documents left behind: %v", backend.documents)
	}
	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatalf("read workspace parent: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("workspace not removed, found %d entries", len(entries))
	}
}
