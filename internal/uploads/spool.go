// Package uploads spools call attachments to a scratch directory for the
// lifetime of one request.
//
// Audio is never kept: the handler discards every spooled file once the
// event has been counted, whatever the outcome.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/j-veylop/rdio-stats/internal/logger"
)

// Spool writes attachments under a single directory.
type Spool struct {
	dir string
}

// New creates the spool directory if needed.
func New(dir string) (*Spool, error) {
	if dir == "" {
		return nil, errors.New("spool directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	return &Spool{dir: dir}, nil
}

// Dir returns the spool directory.
func (s *Spool) Dir() string {
	return s.dir
}

// Save copies every attachment to a uniquely named file and returns the
// paths written so far, even on error, so the caller can discard them.
func (s *Spool) Save(files []*multipart.FileHeader) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, fh := range files {
		path, err := s.save(fh)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *Spool) save(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open attachment %q: %w", fh.Filename, err)
	}
	defer src.Close()

	path := filepath.Join(s.dir, uuid.NewString()+filepath.Ext(filepath.Base(fh.Filename)))
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create spool file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write spool file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to close spool file: %w", err)
	}

	return path, nil
}

// Discard removes spooled files. Failures are logged and otherwise ignored;
// a file that is already gone is not a failure.
func (s *Spool) Discard(paths []string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Debug("failed to discard spooled attachment", "path", path, "error", err)
		}
	}
}
