package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage persists repasse documents and returns the URL they are served from
type Storage interface {
	Upload(ctx context.Context, r io.Reader, size int64, filename, contentType, subDir string) (string, error)
}

// LocalStorage handles file storage on the local filesystem
type LocalStorage struct {
	basePath  string
	publicURL string
}

// NewLocalStorage creates a new local storage instance. Files are served under publicURL.
func NewLocalStorage(basePath, publicURL string) (*LocalStorage, error) {
	// Ensure the base directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// BasePath returns the directory files are written to
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// Upload saves a file under subDir/YYYY/MM and returns its public URL
func (s *LocalStorage) Upload(ctx context.Context, r io.Reader, size int64, filename, contentType, subDir string) (string, error) {
	key := objectKey(subDir, filename, time.Now())
	filePath := filepath.Join(s.basePath, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	// Create destination file
	dst, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	// Copy content, never more than the declared size
	if _, err := io.Copy(dst, io.LimitReader(r, size)); err != nil {
		// Clean up on failure
		os.Remove(filePath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return s.publicURL + "/" + key, nil
}

// Delete removes a file by its key
func (s *LocalStorage) Delete(key string) error {
	return os.Remove(filepath.Join(s.basePath, filepath.FromSlash(key)))
}

// objectKey builds "declaracoes/2024/05/<uuid>.pdf"
func objectKey(subDir, filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(subDir, now.Format("2006/01"), uuid.NewString()+ext)
}

// ValidContentTypes returns allowed MIME types for uploads
func ValidContentTypes() map[string]bool {
	return map[string]bool{
		"application/pdf": true,
		"image/jpeg":      true,
		"image/jpg":       true,
		"image/png":       true,
	}
}

// MaxFileSize returns the maximum allowed file size (10MB)
func MaxFileSize() int64 {
	return 10 * 1024 * 1024 // 10 MB
}

// IsValidContentType checks if the content type is allowed
func IsValidContentType(contentType string) bool {
	return ValidContentTypes()[contentType]
}
