// Package ingest turns raw uploads and watch-folder files into registered
// media assets: classify, store in the content-addressed store, probe for
// metadata, and add to the project's asset pool.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cutroom/cutroom-engine/internal/media"
	"github.com/cutroom/cutroom-engine/internal/resolver"
	"github.com/cutroom/cutroom-engine/internal/store"
	"github.com/cutroom/cutroom-engine/internal/timeline"
)

type AssetSaver interface {
	SaveAsset(ctx context.Context, asset *timeline.MediaAsset) error
	RecordObject(ctx context.Context, objectID string, size int64) error
}

type Service struct {
	store  *store.Store
	prober media.Prober
	model  *timeline.Model
	saver  AssetSaver
	logger *slog.Logger
}

func NewService(st *store.Store, prober media.Prober, model *timeline.Model, saver AssetSaver, logger *slog.Logger) *Service {
	return &Service{store: st, prober: prober, model: model, saver: saver, logger: logger}
}

// IngestBytes classifies, stores, probes, and registers one media payload.
// Unknown media types are rejected outright; metadata extraction failures
// fall back to the documented default durations so the workflow never
// blocks on a stubborn file.
func (s *Service) IngestBytes(ctx context.Context, filename, contentType string, data []byte) (*timeline.MediaAsset, error) {
	mediaType, err := media.DetectType(contentType, filename)
	if err != nil {
		return nil, fmt.Errorf("cannot ingest %s: %w", filename, err)
	}

	objectID, err := s.store.Store(data)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", filename, err)
	}
	if s.saver != nil {
		if err := s.saver.RecordObject(ctx, objectID, int64(len(data))); err != nil && s.logger != nil {
			s.logger.Warn("failed to record stored object", "object_id", objectID, "error", err)
		}
	}

	asset := &timeline.MediaAsset{
		ID:          timeline.NewID(),
		Title:       titleFromFilename(filename),
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Type:        mediaType,
		Locator:     resolver.LocalScheme + objectID,
		CreatedAt:   time.Now(),
	}

	probe, err := s.prober.Probe(ctx, s.store.Path(objectID), mediaType)
	if err != nil {
		if !errors.Is(err, media.ErrMetadataExtraction) {
			return nil, err
		}
		if s.logger != nil {
			s.logger.Warn("metadata extraction failed, applying fallback duration",
				"filename", filename, "error", err)
		}
		asset.Duration = media.FallbackMediaDuration
		if mediaType == media.TypeImage {
			asset.Duration = media.DefaultImageDuration
		}
	} else {
		asset.Duration = probe.Duration
		asset.Width = probe.Width
		asset.Height = probe.Height
		if mediaType == media.TypeVideo {
			asset.Video = &timeline.VideoMeta{
				FPS:     probe.FPS,
				Codec:   probe.Codec,
				Bitrate: probe.Bitrate,
			}
		}
	}

	s.model.AddAsset(asset)
	if s.saver != nil {
		if err := s.saver.SaveAsset(ctx, asset); err != nil && s.logger != nil {
			s.logger.Warn("failed to persist asset", "asset_id", asset.ID, "error", err)
		}
	}

	if s.logger != nil {
		s.logger.Info("asset ingested",
			"asset_id", asset.ID,
			"type", mediaType,
			"duration", asset.Duration,
			"bytes", len(data),
		)
	}
	return asset, nil
}

// IngestFile ingests a file from disk, used by the watch folder.
func (s *Service) IngestFile(ctx context.Context, path string) (*timeline.MediaAsset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return s.IngestBytes(ctx, filepath.Base(path), "", data)
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	if ext != "" {
		base = base[:len(base)-len(ext)]
	}
	if base == "" {
		return filename
	}
	return base
}
