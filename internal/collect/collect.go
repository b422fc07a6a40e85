// Package collect discovers the input files a conversion run processes.
package collect

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"folio/internal/services"
)

// Files expands path into the files to convert. A regular file is returned
// as-is whatever its extension. A directory is walked recursively for files
// whose extension matches one of extensions, compared case-insensitively.
// Hidden files and directories are skipped. The result is sorted.
func Files(path string, extensions []string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrFileNotFound, "collect", "stat input", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	wanted := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			wanted[ext] = struct{}{}
		}
	}

	var files []string
	err = filepath.WalkDir(path, func(current string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if current != path && strings.HasPrefix(entry.Name(), ".") {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(entry.Name()), "."))
		if _, ok := wanted[ext]; ok {
			files = append(files, current)
		}
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrFileNotFound, "collect", "walk directory", path, err)
	}
	slices.Sort(files)
	return files, nil
}

// All collects every input in order, dropping duplicates.
func All(paths []string, extensions []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, path := range paths {
		found, err := Files(path, extensions)
		if err != nil {
			return nil, err
		}
		for _, file := range found {
			if _, dup := seen[file]; dup {
				continue
			}
			seen[file] = struct{}{}
			files = append(files, file)
		}
	}
	return files, nil
}
