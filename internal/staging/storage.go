// Package staging holds uploaded and generated workbooks on disk for the
// lifetime of a single request.
//
// Every request gets its own Arena keyed by a fresh UUID, so two uploads
// that share an original file name, or two outputs produced at the same
// time, never land on the same path. Callers defer Arena.Cleanup right after
// Open so both files are removed on every exit path.
package staging

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "gradegrid/internal/errors"
)

// OutputExt is the extension of staged output workbooks.
const OutputExt = ".xlsx"

// StorageConfig holds configuration for the staging directories
type StorageConfig struct {
	UploadsDir   string
	DownloadsDir string
	ChunkSize    int // copy buffer size
}

// DefaultStorageConfig returns sensible defaults
func DefaultStorageConfig() *StorageConfig {
	return &StorageConfig{
		UploadsDir:   "uploads",
		DownloadsDir: "downloads",
		ChunkSize:    1024 * 1024,
	}
}

// Stager hands out per-request arenas
type Stager struct {
	config *StorageConfig
}

// NewStager creates a stager. The directories are created on first use.
func NewStager(config *StorageConfig) *Stager {
	if config == nil {
		config = DefaultStorageConfig()
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultStorageConfig().ChunkSize
	}
	return &Stager{config: config}
}

// Open allocates an arena with a unique key
func (s *Stager) Open(ctx context.Context) (*Arena, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, dir := range []string{s.config.UploadsDir, s.config.DownloadsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.IOError(fmt.Sprintf("failed to create staging directory %s", dir), err)
		}
	}

	key := uuid.New().String()
	return &Arena{
		key:        key,
		uploadsDir: s.config.UploadsDir,
		outputPath: filepath.Join(s.config.DownloadsDir, key+OutputExt),
		chunkSize:  s.config.ChunkSize,
	}, nil
}

// Arena is the pair of staged files belonging to one request
type Arena struct {
	key        string
	uploadsDir string
	uploadPath string
	outputPath string
	chunkSize  int

	mu      sync.Mutex
	cleaned bool
}

// Key returns the arena's unique identifier
func (a *Arena) Key() string { return a.key }

// UploadPath returns the staged upload path, empty until StageUpload succeeds
func (a *Arena) UploadPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.uploadPath
}

// OutputPath returns where the generated workbook should be written
func (a *Arena) OutputPath() string { return a.outputPath }

// StageUpload copies r into the uploads directory. Only the extension of
// originalName is kept.
func (a *Arena) StageUpload(r io.Reader, originalName string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cleaned {
		return "", apperrors.IOError("arena already cleaned up", nil)
	}
	if a.uploadPath != "" {
		return "", apperrors.IOError("upload already staged", nil)
	}

	path := filepath.Join(a.uploadsDir, a.key+safeExt(originalName))
	dest, err := os.Create(path)
	if err != nil {
		return "", apperrors.IOError("failed to create staged upload", err)
	}
	// recorded before the copy so a failed copy is still cleaned up
	a.uploadPath = path

	buf := make([]byte, a.chunkSize)
	if _, err := io.CopyBuffer(dest, r, buf); err != nil {
		_ = dest.Close()
		return "", apperrors.IOError("failed to copy upload contents", err)
	}
	if err := dest.Close(); err != nil {
		return "", apperrors.IOError("failed to close staged upload", err)
	}
	return path, nil
}

// Cleanup removes the staged upload, then the staged output. Missing files
// are ignored. Safe to call more than once.
func (a *Arena) Cleanup() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cleaned {
		return nil
	}
	a.cleaned = true

	var errs []error
	for _, path := range []string{a.uploadPath, a.outputPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("[Arena] FAILED - Could not delete %s: %v", path, err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return apperrors.IOError(fmt.Sprintf("failed to delete %d staged file(s) for %s", len(errs), a.key), errs[0])
	}
	return nil
}

// safeExt returns the lower-cased extension of a client-supplied name, or
// nothing when it looks unusual.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
