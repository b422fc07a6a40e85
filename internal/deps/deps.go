// Package deps reports whether the external executables folio shells out to
// are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"folio/internal/config"
)

// Requirement is an executable folio may invoke.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a Requirement resolved on PATH.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ForConfig lists the executables the configured raster backend needs. The
// mupdf backend and the tesseract processor link their libraries into the
// binary and need nothing on PATH.
func ForConfig(cfg *config.Config) []Requirement {
	if cfg == nil || cfg.Raster.Backend != "poppler" {
		return nil
	}
	return []Requirement{
		{
			Name:        "pdfinfo",
			Command:     cfg.PdfinfoBinary(),
			Description: "Reads PDF page counts (poppler-utils)",
		},
		{
			Name:        "pdftoppm",
			Command:     cfg.PdftoppmBinary(),
			Description: "Renders PDF pages to PNG (poppler-utils)",
		},
	}
}

// CheckBinaries resolves every requirement.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch path, err := exec.LookPath(status.Command); {
		case status.Command == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		default:
			status.Available = true
			status.Path = path
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the required statuses that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
