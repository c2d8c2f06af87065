package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/checksum"
	"github.com/starford/orgsync/internal/coverage"
	"github.com/starford/orgsync/internal/models"
)

// FS implements Provider backed by the local file system. Paths are absolute.
type FS struct{}

// NewFS creates a new FS provider.
func NewFS() *FS { return &FS{} }

// List walks root and returns metadata for every visible .org file, skipping
// hidden directories. Results are ordered by path.
func (f *FS) List(root string) ([]models.FileMeta, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, unreadable(abs, err)
	}
	if !info.IsDir() {
		meta, err := f.meta(abs, info)
		if err != nil {
			return nil, err
		}
		return []models.FileMeta{meta}, nil
	}

	var out []models.FileMeta
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != abs && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !coverage.IsRelevantFile(p) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		meta, err := f.meta(p, info)
		if err != nil {
			return err
		}
		out = append(out, meta)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", abs, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *FS) meta(path string, info fs.FileInfo) (models.FileMeta, error) {
	data, err := f.Read(path)
	if err != nil {
		return models.FileMeta{}, err
	}
	return models.FileMeta{
		Path:      path,
		Checksum:  checksum.Sum(data),
		UpdatedAt: info.ModTime(),
	}, nil
}

// Read returns the raw bytes of a file. Errors wrap apperr.ErrPathUnreadable
// and keep os.ErrNotExist visible to errors.Is.
func (f *FS) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, unreadable(path, err)
	}
	return data, nil
}

type readError struct {
	path string
	err  error
}

func (e *readError) Error() string {
	return fmt.Sprintf("storage: read %s: %v", e.path, e.err)
}

func (e *readError) Unwrap() []error { return []error{apperr.ErrPathUnreadable, e.err} }

func unreadable(path string, err error) error {
	return &readError{path: path, err: err}
}

// IsNotExist reports whether err means the file is gone.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
