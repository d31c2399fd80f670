// Package persist is the persistence collaborator: project snapshots and
// the asset pool are written to the local SQLite database out-of-band from
// editing. Edits always apply to the in-memory model first.
package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cutroom/cutroom-engine/internal/media"
	"github.com/cutroom/cutroom-engine/internal/timeline"
)

type Repository interface {
	SaveSnapshot(ctx context.Context, snap *timeline.Snapshot) error
	LoadSnapshot(ctx context.Context, projectID string) (*timeline.Snapshot, error)
	ListProjects(ctx context.Context) ([]*timeline.Project, error)
	DeleteProject(ctx context.Context, projectID string) error

	SaveAsset(ctx context.Context, asset *timeline.MediaAsset) error
	DeleteAsset(ctx context.Context, assetID string) error
	ListAssets(ctx context.Context) ([]*timeline.MediaAsset, error)

	RecordObject(ctx context.Context, objectID string, size int64) error
	DeleteObject(ctx context.Context, objectID string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snap *timeline.Snapshot) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	p := snap.Project
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO projects (id, title, frame_rate, width, height, aspect_ratio, snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			frame_rate = excluded.frame_rate,
			width = excluded.width,
			height = excluded.height,
			aspect_ratio = excluded.aspect_ratio,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`, p.ID, p.Title, p.FrameRate, p.Width, p.Height, p.AspectRatio,
		string(blob), p.CreatedAt.Format(time.RFC3339), time.Now().Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) LoadSnapshot(ctx context.Context, projectID string) (*timeline.Snapshot, error) {
	var blob string
	err := r.db.QueryRowContext(ctx,
		"SELECT snapshot FROM projects WHERE id = ?", projectID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if blob == "" {
		return nil, nil
	}

	var snap timeline.Snapshot
	if err := json.Unmarshal([]byte(blob), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot for %s: %w", projectID, err)
	}
	return &snap, nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]*timeline.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, frame_rate, width, height, aspect_ratio, created_at
		FROM projects ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*timeline.Project
	for rows.Next() {
		var p timeline.Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Title, &p.FrameRate, &p.Width, &p.Height, &p.AspectRatio, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, projectID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", projectID)
	return err
}

func (r *SQLiteRepository) SaveAsset(ctx context.Context, a *timeline.MediaAsset) error {
	var fps float64
	var codec string
	var bitrate int64
	if a.Video != nil {
		fps = a.Video.FPS
		codec = a.Video.Codec
		bitrate = a.Video.Bitrate
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assets (id, title, filename, content_type, size, media_type, duration, width, height, fps, codec, bitrate, locator, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			duration = excluded.duration,
			locator = excluded.locator
	`, a.ID, a.Title, a.Filename, a.ContentType, a.Size, string(a.Type), a.Duration,
		a.Width, a.Height, fps, codec, bitrate, a.Locator, a.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) DeleteAsset(ctx context.Context, assetID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", assetID)
	return err
}

func (r *SQLiteRepository) ListAssets(ctx context.Context) ([]*timeline.MediaAsset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, filename, content_type, size, media_type, duration, width, height, fps, codec, bitrate, locator, created_at
		FROM assets ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*timeline.MediaAsset
	for rows.Next() {
		var a timeline.MediaAsset
		var mediaType, createdAt, codec string
		var fps float64
		var bitrate int64
		if err := rows.Scan(&a.ID, &a.Title, &a.Filename, &a.ContentType, &a.Size, &mediaType,
			&a.Duration, &a.Width, &a.Height, &fps, &codec, &bitrate, &a.Locator, &createdAt); err != nil {
			return nil, err
		}
		a.Type = mediaTypeFromString(mediaType)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if fps > 0 || codec != "" || bitrate > 0 {
			a.Video = &timeline.VideoMeta{FPS: fps, Codec: codec, Bitrate: bitrate}
		}
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

func mediaTypeFromString(s string) media.MediaType {
	switch t := media.MediaType(s); t {
	case media.TypeVideo, media.TypeAudio, media.TypeImage:
		return t
	}
	return media.TypeUnknown
}

// RecordObject tracks a content-addressed blob in the store ledger.
// Identical uploads share one object, so re-recording an id is a no-op.
func (r *SQLiteRepository) RecordObject(ctx context.Context, objectID string, size int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO store_objects (id, size, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, objectID, size, time.Now().Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) DeleteObject(ctx context.Context, objectID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM store_objects WHERE id = ?", objectID)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
