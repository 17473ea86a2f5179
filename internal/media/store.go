// Package media persists uploaded plant photos under a base directory and
// maps them to the public URL they are served from.
package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/example/plantid/internal/apperrors"
	"github.com/example/plantid/internal/logging"
)

// Subdir is the directory, relative to the media root, that uploads land in.
const Subdir = "plants"

// UploadedImage is a single file received from the upload form.
type UploadedImage struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// StoredImage describes an upload after it has been written to disk.
type StoredImage struct {
	Filename    string
	ContentType string
	Path        string
	URL         string
	Size        int64
}

// Store is the content store used by the identification flow.
type Store interface {
	Save(ctx context.Context, requestID string, img UploadedImage) (*StoredImage, error)
}

// LocalStore writes uploads to the local filesystem. Files are addressed by
// their original name only: a second upload with the same name replaces the
// first.
type LocalStore struct {
	root    string
	baseURL string
	logger  *zap.Logger
}

// NewLocalStore returns a store rooted at root whose files are served under
// baseURL (for example "/media/").
func NewLocalStore(root, baseURL string, logger *zap.Logger) *LocalStore {
	return &LocalStore{root: root, baseURL: baseURL, logger: logger.Named("media_store")}
}

// Save copies img.Body verbatim to <root>/plants/<filename>.
func (s *LocalStore) Save(ctx context.Context, requestID string, img UploadedImage) (*StoredImage, error) {
	opLogger := logging.WithOperation(s.logger, "media.save", requestID)
	if img.Body == nil || img.Filename == "" {
		return nil, apperrors.NewStorageError("no image file was provided", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError("upload cancelled", err)
	}

	rel := path.Join(Subdir, img.Filename)
	full := filepath.Join(s.root, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		wrapped := logging.NewOperationError("media.mkdir", requestID, err)
		opLogger.Error("failed to create media directory", zap.Error(wrapped))
		return nil, apperrors.NewStorageError("unable to prepare media directory", wrapped)
	}

	size, err := writeFile(full, img.Body)
	if err != nil {
		wrapped := logging.NewOperationError("media.write", requestID, err)
		opLogger.Error("failed to write upload", zap.Error(wrapped), zap.String("path", full))
		return nil, apperrors.NewStorageError("unable to save image", wrapped)
	}

	if _, err := os.Stat(full); err != nil {
		return nil, apperrors.NewStorageError("Image file not found", err)
	}

	opLogger.Debug("upload stored", zap.String("path", full), zap.Int64("bytes", size))
	return &StoredImage{
		Filename:    img.Filename,
		ContentType: img.ContentType,
		Path:        full,
		URL:         s.baseURL + rel,
		Size:        size,
	}, nil
}

func writeFile(name string, body io.Reader) (int64, error) {
	f, err := os.Create(name)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", name, err)
	}
	return n, nil
}
