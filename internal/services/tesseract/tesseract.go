// Package tesseract runs text recognition locally through libtesseract. It
// mirrors the remote backend contract: Upload stages an image under an opaque
// identifier, ReadBack recognizes it and Delete forgets it. Local failures are
// never transient.
package tesseract

import (
	"context"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/otiai10/gosseract/v2"

	"folio/internal/language"
	"folio/internal/services"
)

type recognizeFunc func(path string, languages []string) (string, error)

// Backend satisfies extraction.Backend.
type Backend struct {
	languages []string
	recognize recognizeFunc

	mu     sync.Mutex
	staged map[string]string
}

// New returns a backend that recognizes text in the given languages. Names
// are mapped to traineddata codes, so "arabic" and "ar" both load "ara".
func New(languages []string) *Backend {
	return &Backend{
		languages: language.NormalizeList(languages),
		recognize: recognize,
		staged:    make(map[string]string),
	}
}

// Upload stages path for recognition.
func (b *Backend) Upload(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", services.Wrap(services.ErrFileNotFound, "tesseract", "stage image", path, err)
	}
	id := uuid.NewString()
	b.mu.Lock()
	b.staged[id] = path
	b.mu.Unlock()
	return id, nil
}

// ReadBack recognizes the staged image.
func (b *Backend) ReadBack(ctx context.Context, remoteID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	path, ok := b.staged[remoteID]
	b.mu.Unlock()
	if !ok {
		return "", services.Wrap(services.ErrPermanent, "tesseract", "recognize", "unknown image "+remoteID, nil)
	}
	text, err := b.recognize(path, b.languages)
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, "tesseract", "recognize", path, err)
	}
	return text, nil
}

// Delete forgets the staged image. Unknown identifiers are ignored.
func (b *Backend) Delete(_ context.Context, remoteID string) error {
	b.mu.Lock()
	delete(b.staged, remoteID)
	b.mu.Unlock()
	return nil
}

// Staged reports how many images are awaiting deletion.
func (b *Backend) Staged() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.staged)
}

// recognize uses a fresh client per call; gosseract clients are not safe for
// concurrent use.
func recognize(path string, languages []string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			return "", err
		}
	}
	if err := client.SetImage(path); err != nil {
		return "", err
	}
	return client.Text()
}
