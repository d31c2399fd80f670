// Package store implements the content-addressed local asset store. Raw
// media bytes are keyed by the hex SHA-256 of their content, so storing
// the same payload twice yields the same identifier and editing can work
// fully offline before any cloud sync.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

var ErrNotFound = errors.New("object not found in local store")

// ValidationResult reports whether a stored object's bytes still hash to
// its identifier.
type ValidationResult struct {
	Valid  bool
	Reason string
}

type Store struct {
	dir    string
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Store writes the payload and returns its content-addressed identifier.
// Storing identical bytes twice is a no-op returning the same id.
func (s *Store) Store(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	id := hex.EncodeToString(sum[:])

	path := s.objectPath(id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create shard directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to commit object: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("stored object", "object_id", id, "bytes", len(data))
	}
	return id, nil
}

// Retrieve reads the full payload for an object id.
func (s *Store) Retrieve(id string) ([]byte, error) {
	data, err := os.ReadFile(s.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read object %s: %w", id, err)
	}
	return data, nil
}

// Open returns a seekable handle to an object, for streaming playback.
func (s *Store) Open(id string) (*os.File, error) {
	f, err := os.Open(s.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open object %s: %w", id, err)
	}
	return f, nil
}

// Path returns the on-disk location of an object without checking existence.
func (s *Store) Path(id string) string {
	return s.objectPath(id)
}

func (s *Store) Delete(id string) error {
	err := os.Remove(s.objectPath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object %s: %w", id, err)
	}
	return nil
}

func (s *Store) Exists(id string) bool {
	_, err := os.Stat(s.objectPath(id))
	return err == nil
}

// Validate re-hashes the stored bytes and compares against the identifier.
func (s *Store) Validate(id string) (ValidationResult, error) {
	f, err := os.Open(s.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return ValidationResult{Valid: false, Reason: "object missing"}, ErrNotFound
		}
		return ValidationResult{}, fmt.Errorf("failed to open object %s: %w", id, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ValidationResult{}, fmt.Errorf("failed to hash object %s: %w", id, err)
	}

	if hex.EncodeToString(h.Sum(nil)) != id {
		return ValidationResult{Valid: false, Reason: "content hash mismatch"}, nil
	}
	return ValidationResult{Valid: true}, nil
}

// Objects are sharded by the first two hex digits to keep directories small.
func (s *Store) objectPath(id string) string {
	if len(id) < 2 {
		return filepath.Join(s.dir, id)
	}
	return filepath.Join(s.dir, id[:2], id)
}
