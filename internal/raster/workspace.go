package raster

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"folio/internal/services"
)

// WorkspacePrefix starts the name of every scratch directory folio creates.
const WorkspacePrefix = "folio_"

// Workspace is a scratch directory owned by one conversion run.
type Workspace struct {
	path string
	once sync.Once
	err  error
}

// NewWorkspace creates <parent>/folio_<uuid>. An empty parent uses the
// system temp directory.
func NewWorkspace(parent string) (*Workspace, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	path := filepath.Join(parent, WorkspacePrefix+uuid.NewString())
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, services.Wrap(services.ErrRasterization, "rasterize", "create workspace", path, err)
	}
	return &Workspace{path: path}, nil
}

// Path returns the workspace directory.
func (w *Workspace) Path() string {
	if w == nil {
		return ""
	}
	return w.path
}

// Remove deletes the workspace and its contents. Only the first call does
// any work; later calls return the first result.
func (w *Workspace) Remove() error {
	if w == nil {
		return nil
	}
	w.once.Do(func() {
		if err := os.RemoveAll(w.path); err != nil {
			w.err = services.Wrap(services.ErrWorkspaceCleanup, "rasterize", "remove workspace", w.path, err)
		}
	})
	return w.err
}
