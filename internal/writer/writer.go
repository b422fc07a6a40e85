// Package writer renders extracted page texts into output files.
package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/fumiama/go-docx"

	"folio/internal/fileutil"
	"folio/internal/services"
)

// DefaultPageSeparator joins pages in text output.
const DefaultPageSeparator = "\n\nPAGE_SEPARATOR\n\n"

// Writer renders pages into one output format.
type Writer interface {
	Extension() string
	Write(w io.Writer, pages []string) error
}

// Text writes trimmed pages joined by Separator.
type Text struct {
	Separator string
}

// Extension implements Writer.
func (Text) Extension() string { return "txt" }

// Write implements Writer.
func (t Text) Write(w io.Writer, pages []string) error {
	separator := t.Separator
	if separator == "" {
		separator = DefaultPageSeparator
	}
	trimmed := make([]string, len(pages))
	for i, page := range pages {
		trimmed[i] = strings.TrimSpace(page)
	}
	_, err := io.WriteString(w, strings.Join(trimmed, separator))
	return err
}

// JSON writes an indented array of {"page", "content"} objects.
type JSON struct{}

type jsonPage struct {
	Page    int    `json:"page"`
	Content string `json:"content"`
}

// Extension implements Writer.
func (JSON) Extension() string { return "json" }

// Write implements Writer.
func (JSON) Write(w io.Writer, pages []string) error {
	records := make([]jsonPage, len(pages))
	for i, page := range pages {
		records[i] = jsonPage{Page: i + 1, Content: page}
	}
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}

// Docx writes one paragraph per page with a page break between pages.
type Docx struct{}

// Extension implements Writer.
func (Docx) Extension() string { return "docx" }

// Write implements Writer.
func (Docx) Write(w io.Writer, pages []string) error {
	doc := docx.New().WithDefaultTheme()
	for i, page := range pages {
		para := doc.AddParagraph()
		run := para.AddText(strings.TrimSpace(collapseWhitespace(page)))
		for _, child := range run.Children {
			if text, ok := child.(*docx.Text); ok {
				text.XMLSpace = "preserve"
			}
		}
		if i < len(pages)-1 {
			para.AddPageBreaks()
		}
	}
	_, err := doc.WriteTo(w)
	return err
}

// collapseWhitespace turns CRLF into LF and squeezes each run of one repeated
// whitespace character down to a single occurrence. Mixed runs such as
// "\n \n" are left alone.
func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var b strings.Builder
	b.Grow(len(s))
	var prev rune = -1
	for _, r := range s {
		if r == prev && unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// New returns the writer for format.
func New(format, separator string) (Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "txt":
		return Text{Separator: separator}, nil
	case "json":
		return JSON{}, nil
	case "docx":
		return Docx{}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "writer", "select format", fmt.Sprintf("unsupported format %q", format), nil)
	}
}

// OutputPath is where format's output for base lands.
func OutputPath(base, format string) string {
	return base + "." + strings.ToLower(strings.TrimSpace(format))
}

// OutputPaths lists OutputPath for every format.
func OutputPaths(base string, formats []string) []string {
	paths := make([]string, len(formats))
	for i, format := range formats {
		paths[i] = OutputPath(base, format)
	}
	return paths
}

// WriteAll writes pages in every format next to base and returns the written
// paths. Each file is replaced atomically.
func WriteAll(base string, pages []string, formats []string, separator string) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	written := make([]string, 0, len(formats))
	for _, format := range formats {
		w, err := New(format, separator)
		if err != nil {
			return written, err
		}
		dst := base + "." + w.Extension()
		if err := fileutil.WriteAtomic(dst, 0o644, func(out io.Writer) error {
			return w.Write(out, pages)
		}); err != nil {
			return written, fmt.Errorf("write %s: %w", dst, err)
		}
		written = append(written, dst)
	}
	return written, nil
}
