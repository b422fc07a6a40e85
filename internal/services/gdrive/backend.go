package gdrive

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"folio/internal/services"
)

const (
	// GoogleDocMimeType asks Drive to convert the upload into a Google Doc.
	GoogleDocMimeType = "application/vnd.google-apps.document"
	// ExportMimeType is the format the converted document is read back in.
	ExportMimeType = "text/plain"

	defaultRequestTimeout = 2 * time.Minute
)

// filesAPI is the slice of the Drive files resource the backend needs.
type filesAPI interface {
	Create(ctx context.Context, name, mimeType, contentType string, media io.Reader) (string, error)
	Export(ctx context.Context, id, mimeType string) (io.ReadCloser, error)
	Delete(ctx context.Context, id string) error
}

// Option configures the backend.
type Option func(*Backend)

// WithRequestTimeout bounds every Drive request.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(b *Backend) {
		if timeout > 0 {
			b.requestTimeout = timeout
		}
	}
}

// Backend satisfies extraction.Backend.
type Backend struct {
	files          filesAPI
	requestTimeout time.Duration
	newName        func() string
}

// New builds a Drive-backed extraction backend authorized by tokens.
func New(ctx context.Context, tokens oauth2.TokenSource, opts ...Option) (*Backend, error) {
	svc, err := drive.NewService(ctx, option.WithTokenSource(tokens))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "gdrive", "create service", "", err)
	}
	return newBackend(driveFiles{svc: svc}, opts...), nil
}

func newBackend(files filesAPI, opts ...Option) *Backend {
	b := &Backend{
		files:          files,
		requestTimeout: defaultRequestTimeout,
		newName:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Upload sends the image to Drive as a Google Doc named by a fresh UUID.
func (b *Backend) Upload(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrFileNotFound, "gdrive", "open image", path, err)
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(ctx, b.requestTimeout)
	defer cancel()

	id, err := b.files.Create(ctx, b.newName(), GoogleDocMimeType, contentTypeFor(path), file)
	if err != nil {
		return "", classify("upload", err)
	}
	return id, nil
}

// ReadBack exports the converted document as plain text.
func (b *Backend) ReadBack(ctx context.Context, remoteID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.requestTimeout)
	defer cancel()

	body, err := b.files.Export(ctx, remoteID, ExportMimeType)
	if err != nil {
		return "", classify("export", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", classify("export", err)
	}
	return string(data), nil
}

// Delete removes the converted document.
func (b *Backend) Delete(ctx context.Context, remoteID string) error {
	ctx, cancel := context.WithTimeout(ctx, b.requestTimeout)
	defer cancel()

	if err := b.files.Delete(ctx, remoteID); err != nil {
		return classify("delete", err)
	}
	return nil
}

func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

type driveFiles struct {
	svc *drive.Service
}

func (d driveFiles) Create(ctx context.Context, name, mimeType, contentType string, media io.Reader) (string, error) {
	created, err := d.svc.Files.Create(&drive.File{Name: name, MimeType: mimeType}).
		Media(media, googleapi.ContentType(contentType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if created.Id == "" {
		return "", fmt.Errorf("drive returned no file id")
	}
	return created.Id, nil
}

func (d driveFiles) Export(ctx context.Context, id, mimeType string) (io.ReadCloser, error) {
	resp, err := d.svc.Files.Export(id, mimeType).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (d driveFiles) Delete(ctx context.Context, id string) error {
	return d.svc.Files.Delete(id).Context(ctx).Do()
}
