package poppler_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"folio/internal/services"
	"folio/internal/services/poppler"
	"folio/internal/testsupport"
)

type stubExecutor struct {
	lines []string
	err   error
	calls int
	bins  []string
	args  [][]string
}

func (s *stubExecutor) Run(_ context.Context, binary string, args []string, onOutput func(string)) error {
	s.calls++
	s.bins = append(s.bins, binary)
	s.args = append(s.args, append([]string(nil), args...))
	for _, line := range s.lines {
		onOutput(line)
	}
	return s.err
}

func TestNewRequiresBinaries(t *testing.T) {
	if _, err := poppler.New("", "pdftoppm"); err == nil {
		t.Fatal("expected error for missing pdfinfo binary")
	}
}

func TestPageCountParsesPdfinfoOutput(t *testing.T) {
	exec := &stubExecutor{lines: []string{
		"Title:          Scan \xff\xfe of deed",
		"Producer:       scanner",
		"Pages:          42",
		"Encrypted:      no",
	}}
	client, err := poppler.New("pdfinfo", "pdftoppm", poppler.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	count, err := client.PageCount(context.Background(), "/docs/a.pdf")
	if err != nil {
		t.Fatalf("PageCount returned error: %v", err)
	}
	if count != 42 {
		t.Fatalf("count = %d, want 42", count)
	}
	if exec.bins[0] != "pdfinfo" || strings.Join(exec.args[0], " ") != "/docs/a.pdf" {
		t.Fatalf("unexpected invocation %s %v", exec.bins[0], exec.args[0])
	}
}

func TestPageCountFailures(t *testing.T) {
	tests := []struct {
		name string
		exec *stubExecutor
	}{
		{"missing pages line", &stubExecutor{lines: []string{"Title: x"}}},
		{"command failure", &stubExecutor{lines: []string{"Syntax Error: Couldn't read xref table"}, err: errors.New("exit status 1")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, err := poppler.New("pdfinfo", "pdftoppm", poppler.WithExecutor(tc.exec))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			_, err = client.PageCount(context.Background(), "a.pdf")
			if !errors.Is(err, services.ErrMetadataUnavailable) {
				t.Fatalf("expected ErrMetadataUnavailable, got %v", err)
			}
		})
	}
}

func TestParsePageCount(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"Pages: 3", 3, true},
		{"Pages:12", 12, true},
		{"Title: Pages\nPages:     7\n", 7, true},
		{"Pages: none", 0, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		got, ok := poppler.ParsePageCount(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("ParsePageCount(%q) = %d, %v; want %d, %v", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestRenderPageBuildsPdftoppmArgs(t *testing.T) {
	exec := &stubExecutor{}
	client, err := poppler.New("pdfinfo", "/opt/poppler/pdftoppm", poppler.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.RenderPage(context.Background(), "/docs/a.pdf", 4, 200, "/tmp/ws/page"); err != nil {
		t.Fatalf("RenderPage returned error: %v", err)
	}
	want := "-png -r 200 -f 5 -l 5 /docs/a.pdf /tmp/ws/page"
	if got := strings.Join(exec.args[0], " "); got != want {
		t.Fatalf("args = %q, want %q", got, want)
	}
	if exec.bins[0] != "/opt/poppler/pdftoppm" {
		t.Fatalf("binary = %q", exec.bins[0])
	}
}

func TestRenderPageFailureIsRasterizationError(t *testing.T) {
	exec := &stubExecutor{lines: []string{"Wrong page range given"}, err: errors.New("exit status 99")}
	client, err := poppler.New("pdfinfo", "pdftoppm", poppler.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = client.RenderPage(context.Background(), "a.pdf", 0, 150, "page")
	if !errors.Is(err, services.ErrRasterization) {
		t.Fatalf("expected ErrRasterization, got %v", err)
	}
	if !strings.Contains(err.Error(), "Wrong page range given") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestCommandExecutorRunsStubbedBinaries(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	binDir := filepath.Join(t.TempDir(), "bin")
	testsupport.StubBinary(t, binDir, "pdfinfo", `printf 'Title: stub\nPages:        3\n'`)
	testsupport.StubBinary(t, binDir, "pdftoppm", `for last; do :; done; : > "$last-1.png"`)

	client, err := poppler.New("pdfinfo", "pdftoppm")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	count, err := client.PageCount(context.Background(), "doc.pdf")
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	prefix := filepath.Join(t.TempDir(), "page")
	if err := client.RenderPage(context.Background(), "doc.pdf", 0, 150, prefix); err != nil {
		t.Fatalf("RenderPage: %v", err)
	}
	if _, err := os.Stat(prefix + "-1.png"); err != nil {
		t.Fatalf("expected rendered page: %v", err)
	}
}
