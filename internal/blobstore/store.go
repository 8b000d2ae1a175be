package blobstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBlobNotFound is returned when no blob exists for the given reference.
var ErrBlobNotFound = errors.New("blob not found")

// metadata is stored next to each blob and carries the declared content type.
type metadata struct {
	ContentType string `json:"content_type"`
	FileName    string `json:"file_name"`
}

// Store persists uploaded payloads on disk behind opaque references.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates the backing directory if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob store directory must be configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob store directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Save writes the payload and its metadata, returning an opaque reference.
func (s *Store) Save(data []byte, contentType, fileName string) (string, error) {
	ref := uuid.New().String()

	if err := os.WriteFile(s.blobPath(ref), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}

	meta, err := json.Marshal(metadata{ContentType: contentType, FileName: fileName})
	if err != nil {
		return "", fmt.Errorf("failed to encode blob metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(ref), meta, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob metadata: %w", err)
	}

	s.logger.Debug("Blob stored", zap.String("ref", ref), zap.String("content_type", contentType), zap.Int("size", len(data)))
	return ref, nil
}

// Load returns the payload bytes and the declared content type for a reference.
func (s *Store) Load(ref string) ([]byte, string, error) {
	data, err := os.ReadFile(s.blobPath(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrBlobNotFound
		}
		return nil, "", fmt.Errorf("failed to read blob: %w", err)
	}

	metaBytes, err := os.ReadFile(s.metaPath(ref))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read blob metadata: %w", err)
	}
	var meta metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, "", fmt.Errorf("failed to decode blob metadata: %w", err)
	}

	return data, meta.ContentType, nil
}

func (s *Store) blobPath(ref string) string {
	return filepath.Join(s.dir, ref+".blob")
}

func (s *Store) metaPath(ref string) string {
	return filepath.Join(s.dir, ref+".meta.json")
}
