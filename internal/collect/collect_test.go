package collect_test

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"folio/internal/collect"
	"folio/internal/services"
	"folio/internal/testsupport"
)

func TestFilesWalksDirectory(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root,
		"b.pdf",
		"a.PNG",
		"notes.txt",
		"nested/c.jpeg",
		"nested/deep/d.JPG",
		".hidden/e.pdf",
		"nested/.f.pdf",
		"nested/archive.zip",
	)

	got, err := collect.Files(root, []string{"pdf", "jpg", "jpeg", "png"})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	want := []string{
		filepath.Join(root, "a.PNG"),
		filepath.Join(root, "b.pdf"),
		filepath.Join(root, "nested", "c.jpeg"),
		filepath.Join(root, "nested", "deep", "d.JPG"),
	}
	if !slices.Equal(got, want) {
		t.Fatalf("Files = %v, want %v", got, want)
	}
}

func TestFilesExtensionFilter(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "a.pdf", "b.png")

	got, err := collect.Files(root, []string{".PDF"})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if !slices.Equal(got, []string{filepath.Join(root, "a.pdf")}) {
		t.Fatalf("unexpected files %v", got)
	}
}

func TestFilesSingleFileIgnoresExtension(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "scan.tiff")
	testsupport.WriteFile(t, path, 16)

	got, err := collect.Files(path, []string{"pdf"})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if !slices.Equal(got, []string{path}) {
		t.Fatalf("expected explicit file returned as-is, got %v", got)
	}
}

func TestFilesMissingInput(t *testing.T) {
	_, err := collect.Files(filepath.Join(t.TempDir(), "missing"), nil)
	if !errors.Is(err, services.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestAllDeduplicates(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "a.pdf", "b.pdf")
	single := filepath.Join(root, "b.pdf")

	got, err := collect.All([]string{single, root}, []string{"pdf"})
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	want := []string{single, filepath.Join(root, "a.pdf")}
	if !slices.Equal(got, want) {
		t.Fatalf("All = %v, want %v", got, want)
	}
}
