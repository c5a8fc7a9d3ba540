// Package blobstore persists artifacts as files under a root directory
// and maps them to public URLs.
//
// Keys are slash-separated relative paths ("services/svc_x/manuscript.v1.json").
// Writes are atomic (write .tmp then rename) so readers never observe a
// partial artifact.
package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when no blob exists under a key.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidKey is returned for keys that are empty, absolute, or
	// escape the store root.
	ErrInvalidKey = errors.New("invalid blob key")
)

// PutResult describes a stored blob.
type PutResult struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size_bytes"`
}

// Store is a filesystem-backed blob store.
type Store struct {
	root    string
	baseURL string
}

// New creates a Store rooted at dir. baseURL is the public prefix under
// which keys are served, e.g. "http://localhost:8080/v1/artifacts".
func New(dir, baseURL string) *Store {
	return &Store{
		root:    dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// URL returns the public URL for a key.
func (s *Store) URL(key string) string {
	return s.baseURL + "/" + key
}

// PutJSON marshals v as indented JSON and writes it under key, creating
// parent directories as needed.
func (s *Store) PutJSON(ctx context.Context, key string, v any) (*PutResult, error) {
	target, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("blobstore: marshal %s: %w", key, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: mkdir for %s: %w", key, err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("blobstore: write tmp: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("blobstore: rename: %w", err)
	}
	return &PutResult{
		Key:  key,
		URL:  s.URL(key),
		Size: int64(len(data)),
	}, nil
}

// Get returns the raw bytes stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	target, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", key, err)
	}
	return data, nil
}

// GetJSON reads the blob under key and unmarshals it into out.
func (s *Store) GetJSON(key string, out any) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("blobstore: unmarshal %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a blob is stored under key.
func (s *Store) Exists(key string) (bool, error) {
	target, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(target)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("blobstore: stat %s: %w", key, err)
	}
	return true, nil
}

// Delete removes the blob under key. Deleting a missing key returns
// ErrNotFound.
func (s *Store) Delete(key string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	err = os.Remove(target)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("blobstore: delete %s: %w", key, err)
	}
	return nil
}

// resolve maps a key to a path under the store root.
// Path traversal guard: keys are used in file paths, so anything that is
// absolute, contains "..", or is not already clean is rejected.
func (s *Store) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.Contains(key, `\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if path.Clean(key) != key || strings.HasPrefix(key, "/") ||
		key == ".." || strings.HasPrefix(key, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}
