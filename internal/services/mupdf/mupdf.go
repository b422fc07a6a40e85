// Package mupdf renders PDF pages in-process with MuPDF through go-fitz. It
// needs no external binaries and names its output exactly like pdftoppm.
package mupdf

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"strconv"

	"github.com/gen2brain/go-fitz"

	"folio/internal/fileutil"
	"folio/internal/services"
)

// document is the subset of *fitz.Document the client uses.
type document interface {
	NumPage() int
	ImageDPI(pageNumber int, dpi float64) (*image.RGBA, error)
	Close() error
}

// Client satisfies raster.MetadataProvider and raster.Backend.
type Client struct {
	open func(path string) (document, error)
}

// New returns a client backed by go-fitz.
func New() *Client {
	return &Client{open: func(path string) (document, error) {
		return fitz.New(path)
	}}
}

// PageCount opens the document and reports its page count.
func (c *Client) PageCount(_ context.Context, documentPath string) (int, error) {
	doc, err := c.open(documentPath)
	if err != nil {
		return 0, services.Wrap(services.ErrMetadataUnavailable, "mupdf", "open document", documentPath, err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// RenderPage renders one 0-based page to <outputPrefix>-<n>.png. Each call
// opens its own document handle so workers never share MuPDF state.
func (c *Client) RenderPage(ctx context.Context, documentPath string, pageIndex, dpi int, outputPrefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := c.open(documentPath)
	if err != nil {
		return services.Wrap(services.ErrRasterization, "mupdf", "open document", documentPath, err)
	}
	defer doc.Close()

	total := doc.NumPage()
	if pageIndex < 0 || pageIndex >= total {
		return services.Wrap(services.ErrRasterization, "mupdf", "render page",
			fmt.Sprintf("page %d out of range (document has %d)", pageIndex+1, total), nil)
	}
	img, err := doc.ImageDPI(pageIndex, float64(dpi))
	if err != nil {
		return services.Wrap(services.ErrRasterization, "mupdf", "render page", fmt.Sprintf("page %d", pageIndex+1), err)
	}

	target := PageFileName(outputPrefix, pageIndex, total)
	if err := fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
		return png.Encode(w, img)
	}); err != nil {
		return services.Wrap(services.ErrRasterization, "mupdf", "write page", target, err)
	}
	return nil
}

// PageFileName mirrors pdftoppm naming: the 1-based page number padded to the
// number of digits in the page count.
func PageFileName(outputPrefix string, pageIndex, total int) string {
	width := len(strconv.Itoa(max(total, 1)))
	return fmt.Sprintf("%s-%0*d.png", outputPrefix, width, pageIndex+1)
}
