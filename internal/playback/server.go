package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/cutroom/cutroom-engine/internal/store"
)

// BlobStore is the subset of the content store the playback server needs.
type BlobStore interface {
	Open(id string) (*os.File, error)
}

// Server streams stored media objects with byte-range support so that
// browser media elements can seek without downloading the whole blob.
type Server struct {
	blobs  BlobStore
	logger *slog.Logger
}

func NewServer(blobs BlobStore, logger *slog.Logger) *Server {
	return &Server{blobs: blobs, logger: logger}
}

// ServeBlob writes the object identified by id to the response, honoring
// a single Range header. Stored objects are addressed by content hash and
// carry no extension, so the content type is sniffed from the first bytes.
func (s *Server) ServeBlob(w http.ResponseWriter, r *http.Request, id string) error {
	file, err := s.blobs.Open(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "object not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open object: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat object: %w", err)
	}
	size := stat.Size()

	contentType, err := sniffContentType(file)
	if err != nil {
		return err
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")

	parsedRange, err := ParseRange(r.Header.Get("Range"), size)

	if err == ErrUnsatisfiable {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	// Malformed Range headers fall back to a full response.
	if err != nil && err != ErrInvalidRange {
		return err
	}

	if parsedRange == nil || err == ErrInvalidRange {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, file)
		return nil
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", parsedRange.ContentLength()))
	w.Header().Set("Content-Range", parsedRange.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(parsedRange.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	io.CopyN(w, file, parsedRange.ContentLength())
	return nil
}

func sniffContentType(file *os.File) (string, error) {
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read object: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to seek: %w", err)
	}
	return http.DetectContentType(buf[:n]), nil
}
