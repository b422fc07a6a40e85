package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrFileNotFound        = errors.New("file not found")
	ErrMetadataUnavailable = errors.New("metadata unavailable")
	ErrRasterization       = errors.New("rasterization failure")
	ErrTransient           = errors.New("transient backend failure")
	ErrPermanent           = errors.New("permanent backend failure")
	ErrWorkspaceCleanup    = errors.New("workspace cleanup failure")
	ErrConfiguration       = errors.New("configuration error")
	ErrExternalTool        = errors.New("external tool error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrPermanent
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether err is expected to resolve on retry.
func IsTransient(err error) bool {
	return err != nil && errors.Is(err, ErrTransient)
}

// IsPermanent reports whether err carries the permanent backend marker.
func IsPermanent(err error) bool {
	return err != nil && errors.Is(err, ErrPermanent)
}

var kinds = []struct {
	marker error
	name   string
}{
	{ErrConfiguration, "configuration"},
	{ErrDocumentNotFound, "document_not_found"},
	{ErrFileNotFound, "file_not_found"},
	{ErrMetadataUnavailable, "metadata_unavailable"},
	{ErrRasterization, "rasterization"},
	{ErrWorkspaceCleanup, "workspace_cleanup"},
	{ErrExternalTool, "external_tool"},
	{ErrTransient, "transient"},
	{ErrPermanent, "permanent"},
}

// Kind names the marker err carries, or returns "" when it carries none.
// Specific markers win over the transient/permanent retry classes.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.name
		}
	}
	return ""
}

// Exit codes returned by the CLI for each error class.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitNotFound      = 2
	ExitMetadata      = 3
	ExitBackend       = 4
	ExitConfiguration = 5
)

// ExitCode maps an error to the process exit status the CLI reports.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConfiguration):
		return ExitConfiguration
	case errors.Is(err, ErrDocumentNotFound), errors.Is(err, ErrFileNotFound):
		return ExitNotFound
	case errors.Is(err, ErrMetadataUnavailable), errors.Is(err, ErrRasterization):
		return ExitMetadata
	case errors.Is(err, ErrPermanent):
		return ExitBackend
	default:
		return ExitFailure
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
