package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/cutroom/cutroom-engine/internal/media"
	"github.com/cutroom/cutroom-engine/internal/resolver"
	"github.com/cutroom/cutroom-engine/internal/store"
	"github.com/cutroom/cutroom-engine/internal/timeline"
)

type memorySaver struct {
	mu      sync.Mutex
	assets  []*timeline.MediaAsset
	objects map[string]int64
	err     error
}

func (s *memorySaver) SaveAsset(ctx context.Context, asset *timeline.MediaAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.assets = append(s.assets, asset)
	return nil
}

func (s *memorySaver) RecordObject(ctx context.Context, objectID string, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.objects == nil {
		s.objects = make(map[string]int64)
	}
	s.objects[objectID] = size
	return nil
}

func (s *memorySaver) recordedObject(objectID string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size, ok := s.objects[objectID]
	return size, ok
}

// failingProber always reports a metadata extraction failure.
type failingProber struct{}

func (failingProber) Probe(ctx context.Context, path string, mediaType media.MediaType) (*media.ProbeResult, error) {
	return nil, fmt.Errorf("%w: corrupt container", media.ErrMetadataExtraction)
}

func newTestService(t *testing.T, prober media.Prober, saver AssetSaver) (*Service, *timeline.Model, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir(), slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	model := timeline.NewModel(timeline.Project{Title: "test"}, slog.Default())
	return NewService(st, prober, model, saver, slog.Default()), model, st
}

func TestIngestBytes_RegistersAsset(t *testing.T) {
	saver := &memorySaver{}
	svc, model, st := newTestService(t, media.NewStubProber(slog.Default()), saver)

	asset, err := svc.IngestBytes(context.Background(), "vacation.mp4", "video/mp4", []byte("fake video bytes"))
	if err != nil {
		t.Fatalf("IngestBytes() error: %v", err)
	}

	if asset.Type != media.TypeVideo {
		t.Errorf("type = %v, want video", asset.Type)
	}
	if asset.Title != "vacation" {
		t.Errorf("title = %q, want filename stem", asset.Title)
	}
	if !strings.HasPrefix(asset.Locator, resolver.LocalScheme) {
		t.Errorf("locator = %q, want local scheme", asset.Locator)
	}
	objectID := strings.TrimPrefix(asset.Locator, resolver.LocalScheme)
	if !st.Exists(objectID) {
		t.Error("payload not in the content store")
	}

	if _, err := model.Asset(asset.ID); err != nil {
		t.Errorf("asset not registered in model: %v", err)
	}
	if len(saver.assets) != 1 {
		t.Errorf("persisted assets = %d, want 1", len(saver.assets))
	}
	if size, ok := saver.recordedObject(objectID); !ok || size != int64(len("fake video bytes")) {
		t.Errorf("object ledger entry = (%d, %v), want payload size", size, ok)
	}
}

func TestIngestBytes_RejectsUnknownType(t *testing.T) {
	svc, model, _ := newTestService(t, media.NewStubProber(slog.Default()), nil)

	_, err := svc.IngestBytes(context.Background(), "report.pdf", "application/pdf", []byte("%PDF"))
	if !errors.Is(err, media.ErrUnknownMediaType) {
		t.Fatalf("IngestBytes() error = %v, want ErrUnknownMediaType", err)
	}
	if len(model.Assets()) != 0 {
		t.Error("rejected upload registered an asset")
	}
}

func TestIngestBytes_ProbeFailureFallsBack(t *testing.T) {
	svc, _, _ := newTestService(t, failingProber{}, nil)

	video, err := svc.IngestBytes(context.Background(), "broken.mp4", "video/mp4", []byte("junk"))
	if err != nil {
		t.Fatalf("IngestBytes() error: %v", err)
	}
	if video.Duration != media.FallbackMediaDuration {
		t.Errorf("video fallback duration = %v, want %v", video.Duration, media.FallbackMediaDuration)
	}

	img, err := svc.IngestBytes(context.Background(), "broken.png", "image/png", []byte("junk!"))
	if err != nil {
		t.Fatalf("IngestBytes() error: %v", err)
	}
	if img.Duration != media.DefaultImageDuration {
		t.Errorf("image fallback duration = %v, want %v", img.Duration, media.DefaultImageDuration)
	}
}

func TestIngestBytes_SaverFailureIsNonFatal(t *testing.T) {
	saver := &memorySaver{err: errors.New("db locked")}
	svc, model, _ := newTestService(t, media.NewStubProber(slog.Default()), saver)

	asset, err := svc.IngestBytes(context.Background(), "clip.mp4", "video/mp4", []byte("bytes"))
	if err != nil {
		t.Fatalf("IngestBytes() error: %v", err)
	}
	if _, err := model.Asset(asset.ID); err != nil {
		t.Error("asset lost because persistence failed")
	}
}

func TestIngestBytes_DuplicateContentSharesObject(t *testing.T) {
	svc, _, _ := newTestService(t, media.NewStubProber(slog.Default()), nil)

	a, err := svc.IngestBytes(context.Background(), "one.mp4", "video/mp4", []byte("same bytes"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.IngestBytes(context.Background(), "two.mp4", "video/mp4", []byte("same bytes"))
	if err != nil {
		t.Fatal(err)
	}

	if a.ID == b.ID {
		t.Error("distinct uploads share an asset id")
	}
	if a.Locator != b.Locator {
		t.Errorf("identical payloads stored twice: %q vs %q", a.Locator, b.Locator)
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"vacation.mp4", "vacation"},
		{"a.b.c.mov", "a.b.c"},
		{"noext", "noext"},
		{".hidden", ".hidden"},
	}

	for _, tt := range tests {
		if got := titleFromFilename(tt.in); got != tt.want {
			t.Errorf("titleFromFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
