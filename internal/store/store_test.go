package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), slog.Default())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	payload := []byte("raw media bytes")

	id, err := s.Store(payload)
	if err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	sum := sha256.Sum256(payload)
	if want := hex.EncodeToString(sum[:]); id != want {
		t.Errorf("id = %s, want content hash %s", id, want)
	}

	got, err := s.Retrieve(id)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("retrieved bytes differ from stored payload")
	}
}

func TestStore_IdenticalPayloadDeduplicates(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.Store([]byte("same bytes"))
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.Store([]byte("same bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("identical payloads got different ids: %s, %s", id1, id2)
	}
}

func TestStore_Sharding(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Store([]byte("sharded"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := s.Path(id), filepath.Join(s.dir, id[:2], id); got != want {
		t.Errorf("Path() = %s, want %s", got, want)
	}
}

func TestStore_RetrieveMissing(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Retrieve("deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Retrieve() error = %v, want ErrNotFound", err)
	}
	if _, err := s.Open("deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Store([]byte("short lived"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(id); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if s.Exists(id) {
		t.Error("object still exists after delete")
	}

	// Deleting a missing object is not an error.
	if err := s.Delete(id); err != nil {
		t.Errorf("second Delete() error: %v", err)
	}
}

func TestStore_Validate(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Store([]byte("trusted content"))
	if err != nil {
		t.Fatal(err)
	}

	result, err := s.Validate(id)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if !result.Valid {
		t.Errorf("Validate() = %+v, want valid", result)
	}

	if err := os.WriteFile(s.Path(id), []byte("tampered"), 0644); err != nil {
		t.Fatal(err)
	}
	result, err = s.Validate(id)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if result.Valid {
		t.Error("tampered object validated")
	}
	if result.Reason == "" {
		t.Error("invalid result carries no reason")
	}
}

func TestStore_NoTempFilesLeftBehind(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Store([]byte("payload")); err != nil {
		t.Fatal(err)
	}

	var tmps []string
	filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && filepath.Ext(path) == ".tmp" {
			tmps = append(tmps, path)
		}
		return nil
	})
	if len(tmps) != 0 {
		t.Errorf("temp files left behind: %v", tmps)
	}
}
