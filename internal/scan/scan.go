// Package scan resolves measurement targets into concrete file lists and
// derives the cache keys files are stored under.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound marks a target path that does not exist.
var ErrNotFound = errors.New("target not found")

// Resolve expands target into the list of files to measure. A regular
// file is returned as-is regardless of extension; a directory yields its
// immediate children matching exts. Subdirectories are not descended.
func Resolve(target string, exts []string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
		}
		return nil, fmt.Errorf("stat target: %w", err)
	}
	if !info.IsDir() {
		return []string{target}, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", target, err)
	}

	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(entry.Name())), ".")
		if _, ok := allowed[ext]; !ok {
			continue
		}
		files = append(files, filepath.Join(target, entry.Name()))
	}
	return files, nil
}

// Key derives the cache key for a file: the base name without its
// extension. Dotfiles keep their full name so the key is never empty.
func Key(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return base
	}
	return stem
}
