package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/chiranSam/job-application-form/internal/models"
)

// LocalStore keeps CV documents on disk and serves them under baseURL/files/
type LocalStore struct {
	uploadsDir string
	baseURL    string
}

// NewLocalStore creates a new local document store
func NewLocalStore(uploadsDir, baseURL string) *LocalStore {
	return &LocalStore{
		uploadsDir: uploadsDir,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Dir returns the root directory documents are written to
func (s *LocalStore) Dir() string {
	return s.uploadsDir
}

// Store saves the document under namespace and returns its reference
func (s *LocalStore) Store(ctx context.Context, data []byte, mediaType, namespace, filename string) (models.DocumentRef, error) {
	if err := ctx.Err(); err != nil {
		return models.DocumentRef{}, err
	}

	key := ObjectKey(namespace, filename)
	filePath := filepath.Join(s.uploadsDir, filepath.FromSlash(key))

	// Ensure namespace directory exists
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return models.DocumentRef{}, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return models.DocumentRef{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, bytes.NewReader(data)); err != nil {
		return models.DocumentRef{}, fmt.Errorf("failed to write file: %w", err)
	}

	return models.DocumentRef{
		Key:       key,
		URL:       s.baseURL + "/files/" + key,
		URI:       filePath,
		MediaType: mediaType,
	}, nil
}

// Open returns the stored bytes for key
func (s *LocalStore) Open(key string) ([]byte, error) {
	clean := path.Clean("/" + key)
	data, err := os.ReadFile(filepath.Join(s.uploadsDir, filepath.FromSlash(clean)))
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", key, err)
	}
	return data, nil
}
