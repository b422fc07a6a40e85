package tesseract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"folio/internal/services"
)

func newTestBackend(fn recognizeFunc) *Backend {
	b := New([]string{"arabic", "en"})
	b.recognize = fn
	return b
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page-1.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func TestBackendLifecycle(t *testing.T) {
	var gotPath string
	var gotLangs []string
	backend := newTestBackend(func(path string, languages []string) (string, error) {
		gotPath = path
		gotLangs = languages
		return "recognized", nil
	})

	ctx := context.Background()
	image := writeImage(t)
	id, err := backend.Upload(ctx, image)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if backend.Staged() != 1 {
		t.Fatalf("expected one staged image, got %d", backend.Staged())
	}

	text, err := backend.ReadBack(ctx, id)
	if err != nil {
		t.Fatalf("ReadBack: %v", err)
	}
	if text != "recognized" {
		t.Fatalf("unexpected text %q", text)
	}
	if gotPath != image {
		t.Fatalf("recognized %q, want %q", gotPath, image)
	}
	if strings.Join(gotLangs, "+") != "ara+eng" {
		t.Fatalf("unexpected languages %v", gotLangs)
	}

	if err := backend.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if backend.Staged() != 0 {
		t.Fatalf("expected nothing staged after delete, got %d", backend.Staged())
	}
}

func TestUploadMissingImage(t *testing.T) {
	backend := newTestBackend(nil)
	_, err := backend.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.png"))
	if !errors.Is(err, services.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestReadBackFailuresArePermanent(t *testing.T) {
	backend := newTestBackend(func(string, []string) (string, error) {
		return "", errors.New("tessdata missing")
	})
	ctx := context.Background()

	if _, err := backend.ReadBack(ctx, "unknown"); !services.IsPermanent(err) {
		t.Fatalf("expected permanent error for unknown id, got %v", err)
	}

	id, err := backend.Upload(ctx, writeImage(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	_, err = backend.ReadBack(ctx, id)
	if !services.IsPermanent(err) || services.IsTransient(err) {
		t.Fatalf("expected permanent recognition error, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	backend := newTestBackend(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := backend.Upload(ctx, writeImage(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
