package audio

import (
	"log/slog"

	"github.com/cutroom/cutroom-engine/internal/timeline"
)

// ResolveFunc resolves an asset's locator to a playable URL. A false
// return skips the clip for now; it is retried on the next timeline
// change.
type ResolveFunc func(assetID, locator string) (string, bool)

// Binder keeps the engine's per-clip handles aligned with the timeline. A
// video or audio clip gains a handle once its asset resolves to a playable
// URL, keeps its window and gain current across edits, and loses the
// handle when the clip disappears. Image clips never mix.
type Binder struct {
	model   *timeline.Model
	engine  *Engine
	resolve ResolveFunc
	logger  *slog.Logger
}

func NewBinder(model *timeline.Model, engine *Engine, resolve ResolveFunc, logger *slog.Logger) *Binder {
	return &Binder{model: model, engine: engine, resolve: resolve, logger: logger}
}

// Bind subscribes to model changes and runs one initial reconcile so
// clips restored from a snapshot get handles before the first edit.
func (b *Binder) Bind() {
	b.model.OnChange(b.Reconcile)
	b.Reconcile()
}

// Reconcile diffs the timeline against the engine's handles.
func (b *Binder) Reconcile() {
	live := make(map[string]bool)

	for _, track := range b.model.Tracks() {
		for _, clip := range track.Clips {
			asset, err := b.model.Asset(clip.AssetID)
			if err != nil || asset.IsImage() {
				continue
			}
			live[clip.ID] = true

			if b.engine.HasTrack(clip.ID) {
				b.engine.UpdateTrackWindow(clip.ID, clip.StartTime, clip.EndTime, clip.TrimStart, clip.TrimEnd)
				b.engine.SetTrackVolume(clip.ID, clip.Volume)
				b.engine.SetTrackMuted(clip.ID, clip.Muted)
				continue
			}

			url, ok := b.resolve(clip.AssetID, asset.Locator)
			if !ok {
				continue
			}
			if err := b.engine.AddTrack(clip.ID, url, clip.StartTime, clip.EndTime, clip.TrimStart, clip.TrimEnd); err != nil {
				// AddTrack already logged the failure; other clips keep
				// mixing.
				continue
			}
			b.engine.SetTrackVolume(clip.ID, clip.Volume)
			b.engine.SetTrackMuted(clip.ID, clip.Muted)
		}
	}

	for _, clipID := range b.engine.TrackIDs() {
		if !live[clipID] {
			b.engine.RemoveTrack(clipID)
		}
	}
}
