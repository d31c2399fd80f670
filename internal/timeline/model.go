package timeline

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cutroom/cutroom-engine/internal/media"
)

// ResizeEdge selects which clip boundary a resize operation moves.
type ResizeEdge string

const (
	EdgeLeft  ResizeEdge = "left"
	EdgeRight ResizeEdge = "right"
)

// Model is the authoritative in-memory structure of tracks, clips, and
// assets for one project. It is the single source of truth: every mutation
// goes through its operation contract, never through direct field writes.
// All operations are synchronous and validated; persistence happens
// out-of-band through Snapshot.
type Model struct {
	mu      sync.Mutex
	project Project
	tracks  []*Track
	assets  map[string]*MediaAsset
	clips   map[string]*Clip
	byClip  map[string]*Track

	revision uint64

	transportTime    float64
	transportPlaying bool

	onChange       []func()
	onTransport    []func(now float64, playing bool)
	onAssetRemoved []func(asset *MediaAsset)

	logger *slog.Logger
}

func NewModel(project Project, logger *slog.Logger) *Model {
	if project.ID == "" {
		project.ID = NewID()
	}
	if project.FrameRate <= 0 {
		project.FrameRate = 30
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now()
	}
	return &Model{
		project: project,
		assets:  make(map[string]*MediaAsset),
		clips:   make(map[string]*Clip),
		byClip:  make(map[string]*Track),
		logger:  logger,
	}
}

// OnChange registers a callback invoked after every structural mutation.
// Callbacks run outside the model lock.
func (m *Model) OnChange(fn func()) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

// OnAssetRemoved registers a callback invoked when an asset is removed,
// after its clips have been cascaded away.
func (m *Model) OnAssetRemoved(fn func(asset *MediaAsset)) {
	m.mu.Lock()
	m.onAssetRemoved = append(m.onAssetRemoved, fn)
	m.mu.Unlock()
}

func (m *Model) Project() Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.project
}

// Revision increments on every structural mutation. The autosaver uses it
// to detect dirty state without diffing snapshots.
func (m *Model) Revision() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revision
}

func (m *Model) notifyChange() {
	for _, fn := range m.onChange {
		fn()
	}
}

// AddTrack appends a lane of the given type. Volume and opacity default to 1.
func (m *Model) AddTrack(trackType TrackType) *Track {
	m.mu.Lock()
	track := &Track{
		ID:       NewID(),
		Type:     trackType,
		Position: len(m.tracks),
		Volume:   1,
		Opacity:  1,
	}
	if trackType == TrackOverlay {
		track.Blend = BlendNormal
	}
	m.tracks = append(m.tracks, track)
	m.revision++
	m.mu.Unlock()

	m.notifyChange()
	return track
}

// RemoveTrack deletes a track and cascades removal of its clips.
func (m *Model) RemoveTrack(trackID string) error {
	m.mu.Lock()
	idx := -1
	for i, t := range m.tracks {
		if t.ID == trackID {
			idx = i
			break
		}
	}
	if idx == -1 {
		m.mu.Unlock()
		return ErrTrackNotFound
	}

	for _, c := range m.tracks[idx].Clips {
		delete(m.clips, c.ID)
		delete(m.byClip, c.ID)
	}
	m.tracks = append(m.tracks[:idx], m.tracks[idx+1:]...)
	for i, t := range m.tracks {
		t.Position = i
	}
	m.revision++
	m.mu.Unlock()

	m.notifyChange()
	return nil
}

// SetTrackVolume updates a track's volume multiplier, clamped to [0,1].
func (m *Model) SetTrackVolume(trackID string, volume float64) error {
	return m.updateTrack(trackID, func(t *Track) {
		t.Volume = clamp01(volume)
	})
}

// SetTrackOpacity updates a track's opacity multiplier, clamped to [0,1].
func (m *Model) SetTrackOpacity(trackID string, opacity float64) error {
	return m.updateTrack(trackID, func(t *Track) {
		t.Opacity = clamp01(opacity)
	})
}

// SetTrackBlend sets the blend mode on an overlay track.
func (m *Model) SetTrackBlend(trackID string, blend BlendMode) error {
	m.mu.Lock()
	track := m.findTrack(trackID)
	if track == nil {
		m.mu.Unlock()
		return ErrTrackNotFound
	}
	if track.Type != TrackOverlay {
		m.mu.Unlock()
		return fmt.Errorf("%w: blend mode applies to overlay tracks only", ErrInvalidEdit)
	}
	track.Blend = blend
	m.revision++
	m.mu.Unlock()

	m.notifyChange()
	return nil
}

func (m *Model) updateTrack(trackID string, fn func(*Track)) error {
	m.mu.Lock()
	track := m.findTrack(trackID)
	if track == nil {
		m.mu.Unlock()
		return ErrTrackNotFound
	}
	fn(track)
	m.revision++
	m.mu.Unlock()

	m.notifyChange()
	return nil
}

// Tracks returns the tracks in display order. The returned slices share
// clip pointers with the model; callers must treat them as read-only.
func (m *Model) Tracks() []*Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Track, len(m.tracks))
	copy(out, m.tracks)
	return out
}

func (m *Model) Track(trackID string) (*Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	track := m.findTrack(trackID)
	if track == nil {
		return nil, ErrTrackNotFound
	}
	return track, nil
}

func (m *Model) findTrack(trackID string) *Track {
	for _, t := range m.tracks {
		if t.ID == trackID {
			return t
		}
	}
	return nil
}

// AddAsset registers a media asset in the project's asset pool.
func (m *Model) AddAsset(asset *MediaAsset) {
	m.mu.Lock()
	if asset.ID == "" {
		asset.ID = NewID()
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now()
	}
	m.assets[asset.ID] = asset
	m.revision++
	m.mu.Unlock()

	m.notifyChange()
}

func (m *Model) Asset(assetID string) (*MediaAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	asset, ok := m.assets[assetID]
	if !ok {
		return nil, ErrAssetNotFound
	}
	return asset, nil
}

func (m *Model) Assets() []*MediaAsset {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MediaAsset, 0, len(m.assets))
	for _, a := range m.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// RemoveAsset deletes an asset and cascades removal of every clip that
// references it. Deletion never silently orphans clip asset references.
func (m *Model) RemoveAsset(assetID string) error {
	m.mu.Lock()
	asset, ok := m.assets[assetID]
	if !ok {
		m.mu.Unlock()
		return ErrAssetNotFound
	}
	delete(m.assets, assetID)

	removed := 0
	for _, track := range m.tracks {
		kept := track.Clips[:0]
		for _, c := range track.Clips {
			if c.AssetID == assetID {
				delete(m.clips, c.ID)
				delete(m.byClip, c.ID)
				removed++
				continue
			}
			kept = append(kept, c)
		}
		track.Clips = kept
	}
	m.revision++
	callbacks := make([]func(asset *MediaAsset), len(m.onAssetRemoved))
	copy(callbacks, m.onAssetRemoved)
	m.mu.Unlock()

	if m.logger != nil && removed > 0 {
		m.logger.Info("asset removal cascaded", "asset_id", assetID, "clips_removed", removed)
	}
	for _, fn := range callbacks {
		fn(asset)
	}
	m.notifyChange()
	return nil
}

// AddClip places an asset on a track at an explicit start time. It performs
// no collision resolution; use ComputeSmartDropPosition for collision-free
// placement. Duration <= 0 means the asset's full duration.
func (m *Model) AddClip(trackID, assetID string, startTime, duration float64) (*Clip, error) {
	m.mu.Lock()
	track := m.findTrack(trackID)
	if track == nil {
		m.mu.Unlock()
		return nil, ErrTrackNotFound
	}
	asset, ok := m.assets[assetID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrAssetNotFound
	}
	if !compatible(track.Type, asset.Type) {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s asset on %s track", ErrIncompatibleAsset, asset.Type, track.Type)
	}
	if startTime < 0 {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: negative start time", ErrInvalidEdit)
	}

	if duration <= 0 {
		duration = asset.Duration
	}
	// Video and audio cannot play past their source material.
	if !asset.IsImage() && duration > asset.Duration {
		duration = asset.Duration
	}
	if duration < MinClipDuration {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: duration below minimum", ErrInvalidEdit)
	}

	clip := &Clip{
		ID:        NewID(),
		TrackID:   trackID,
		AssetID:   assetID,
		StartTime: startTime,
		EndTime:   startTime + duration,
		TrimStart: 0,
		TrimEnd:   duration,
		Volume:    1,
		Layer:     len(track.Clips),
	}
	m.insertClip(track, clip)
	m.revision++
	m.mu.Unlock()

	m.notifyChange()
	return clip, nil
}

// ComputeSmartDropPosition returns a start time at or after the playhead
// where a clip of the given duration fits without overlapping any clip on
// the target track. When no gap is wide enough the position is pushed past
// the last conflicting clip's end.
func (m *Model) ComputeSmartDropPosition(trackID string, clipDuration, playhead float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	track := m.findTrack(trackID)
	if track == nil {
		return 0, ErrTrackNotFound
	}
	if playhead < 0 {
		playhead = 0
	}

	candidate := playhead
	for _, c := range track.Clips {
		if c.EndTime <= candidate {
			continue
		}
		if c.StartTime >= candidate && c.StartTime-candidate >= clipDuration {
			return candidate, nil
		}
		candidate = c.EndTime
	}
	return candidate, nil
}

// MoveClip shifts a clip to a new start time, preserving its duration and
// trim window. Start times clamp to zero. Manual moves may pass through
// user-directed overlaps; rendering resolves them top-most-layer-wins.
func (m *Model) MoveClip(clipID string, newStartTime float64) error {
	m.mu.Lock()
	clip, ok := m.clips[clipID]
	if !ok {
		m.mu.Unlock()
		return ErrClipNotFound
	}
	if newStartTime < 0 {
		newStartTime = 0
	}

	duration := clip.Duration()
	clip.StartTime = newStartTime
	clip.EndTime = newStartTime + duration

	track := m.byClip[clipID]
	sortClips(track)
	m.revision++
	m.mu.Unlock()

	m.notifyChange()
	return nil
}

// ResizeClip moves one boundary of a clip, trimming (not stretching) the
// source window for video and audio. The moved boundary clamps so the clip
// keeps its minimum duration. A resize that would trim beyond the source
// asset's actual duration is a silent no-op rather than a corrupted window;
// image clips extend freely.
func (m *Model) ResizeClip(clipID string, edge ResizeEdge, newBoundary float64) error {
	m.mu.Lock()
	clip, ok := m.clips[clipID]
	if !ok {
		m.mu.Unlock()
		return ErrClipNotFound
	}
	asset, ok := m.assets[clip.AssetID]
	if !ok {
		m.mu.Unlock()
		return ErrAssetMissing
	}

	changed := false
	switch edge {
	case EdgeLeft:
		if newBoundary < 0 {
			newBoundary = 0
		}
		if newBoundary > clip.EndTime-MinClipDuration {
			newBoundary = clip.EndTime - MinClipDuration
		}
		delta := newBoundary - clip.StartTime
		if delta != 0 {
			newTrimStart := clip.TrimStart + delta
			if asset.IsImage() {
				clip.StartTime = newBoundary
				clip.TrimStart = clip.TrimEnd - (clip.EndTime - newBoundary)
				changed = true
			} else if newTrimStart >= 0 && newTrimStart < clip.TrimEnd {
				clip.StartTime = newBoundary
				clip.TrimStart = newTrimStart
				changed = true
			}
		}

	case EdgeRight:
		if newBoundary < clip.StartTime+MinClipDuration {
			newBoundary = clip.StartTime + MinClipDuration
		}
		delta := newBoundary - clip.EndTime
		if delta != 0 {
			newTrimEnd := clip.TrimEnd + delta
			if asset.IsImage() {
				clip.EndTime = newBoundary
				clip.TrimEnd = clip.TrimStart + (newBoundary - clip.StartTime)
				changed = true
			} else if newTrimEnd <= asset.Duration && newTrimEnd > clip.TrimStart {
				clip.EndTime = newBoundary
				clip.TrimEnd = newTrimEnd
				changed = true
			}
		}

	default:
		m.mu.Unlock()
		return fmt.Errorf("%w: unknown edge %q", ErrInvalidEdit, edge)
	}

	if changed {
		sortClips(m.byClip[clipID])
		m.revision++
	}
	m.mu.Unlock()

	if changed {
		m.notifyChange()
	}
	return nil
}

// SplitClip divides a clip at a time strictly inside its span. The trim
// window splits proportionally at the same point, so both halves together
// play exactly the material of the original.
func (m *Model) SplitClip(clipID string, atTime float64) (*Clip, *Clip, error) {
	m.mu.Lock()
	clip, ok := m.clips[clipID]
	if !ok {
		m.mu.Unlock()
		return nil, nil, ErrClipNotFound
	}
	if atTime <= clip.StartTime || atTime >= clip.EndTime {
		m.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: split point %.3f outside clip (%.3f, %.3f)",
			ErrInvalidEdit, atTime, clip.StartTime, clip.EndTime)
	}

	frac := (atTime - clip.StartTime) / (clip.EndTime - clip.StartTime)
	trimSplit := clip.TrimStart + frac*(clip.TrimEnd-clip.TrimStart)

	left := &Clip{
		ID:        NewID(),
		TrackID:   clip.TrackID,
		AssetID:   clip.AssetID,
		StartTime: clip.StartTime,
		EndTime:   atTime,
		TrimStart: clip.TrimStart,
		TrimEnd:   trimSplit,
		Volume:    clip.Volume,
		Muted:     clip.Muted,
		Layer:     clip.Layer,
		Transform: clip.Transform,
	}
	right := &Clip{
		ID:        NewID(),
		TrackID:   clip.TrackID,
		AssetID:   clip.AssetID,
		StartTime: atTime,
		EndTime:   clip.EndTime,
		TrimStart: trimSplit,
		TrimEnd:   clip.TrimEnd,
		Volume:    clip.Volume,
		Muted:     clip.Muted,
		Layer:     clip.Layer,
		Transform: clip.Transform,
	}

	track := m.byClip[clipID]
	m.deleteClip(track, clipID)
	m.insertClip(track, left)
	m.insertClip(track, right)
	m.revision++
	m.mu.Unlock()

	m.notifyChange()
	return left, right, nil
}

// DuplicateClip copies a clip with an identical trim window, placed at the
// first open slot at or after the original's end on the same track.
func (m *Model) DuplicateClip(clipID string) (*Clip, error) {
	m.mu.Lock()
	clip, ok := m.clips[clipID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrClipNotFound
	}
	track := m.byClip[clipID]
	duration := clip.Duration()

	candidate := clip.EndTime
	for _, c := range track.Clips {
		if c.EndTime <= candidate {
			continue
		}
		if c.StartTime >= candidate && c.StartTime-candidate >= duration {
			break
		}
		candidate = c.EndTime
	}

	dup := &Clip{
		ID:        NewID(),
		TrackID:   clip.TrackID,
		AssetID:   clip.AssetID,
		StartTime: candidate,
		EndTime:   candidate + duration,
		TrimStart: clip.TrimStart,
		TrimEnd:   clip.TrimEnd,
		Volume:    clip.Volume,
		Muted:     clip.Muted,
		Layer:     clip.Layer,
		Transform: clip.Transform,
	}
	m.insertClip(track, dup)
	m.revision++
	m.mu.Unlock()

	m.notifyChange()
	return dup, nil
}

func (m *Model) RemoveClip(clipID string) error {
	m.mu.Lock()
	track, ok := m.byClip[clipID]
	if !ok {
		m.mu.Unlock()
		return ErrClipNotFound
	}
	m.deleteClip(track, clipID)
	m.revision++
	m.mu.Unlock()

	m.notifyChange()
	return nil
}

func (m *Model) Clip(clipID string) (*Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clip, ok := m.clips[clipID]
	if !ok {
		return nil, ErrClipNotFound
	}
	return clip, nil
}

// SetClipVolume updates a clip's volume, clamped to [0,1].
func (m *Model) SetClipVolume(clipID string, volume float64) error {
	return m.updateClip(clipID, func(c *Clip) {
		c.Volume = clamp01(volume)
	})
}

func (m *Model) SetClipMuted(clipID string, muted bool) error {
	return m.updateClip(clipID, func(c *Clip) {
		c.Muted = muted
	})
}

// SetClipTransform sets the 2D transform used by overlay clips.
func (m *Model) SetClipTransform(clipID string, transform *Transform) error {
	return m.updateClip(clipID, func(c *Clip) {
		c.Transform = transform
	})
}

func (m *Model) updateClip(clipID string, fn func(*Clip)) error {
	m.mu.Lock()
	clip, ok := m.clips[clipID]
	if !ok {
		m.mu.Unlock()
		return ErrClipNotFound
	}
	fn(clip)
	m.revision++
	m.mu.Unlock()

	m.notifyChange()
	return nil
}

// ClipAsset resolves the asset behind a clip, surfacing a missing asset as
// a detectable error state rather than a nil dereference.
func (m *Model) ClipAsset(clipID string) (*MediaAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clip, ok := m.clips[clipID]
	if !ok {
		return nil, ErrClipNotFound
	}
	asset, ok := m.assets[clip.AssetID]
	if !ok {
		return nil, ErrAssetMissing
	}
	return asset, nil
}

func (m *Model) insertClip(track *Track, clip *Clip) {
	track.Clips = append(track.Clips, clip)
	sortClips(track)
	m.clips[clip.ID] = clip
	m.byClip[clip.ID] = track
}

func (m *Model) deleteClip(track *Track, clipID string) {
	for i, c := range track.Clips {
		if c.ID == clipID {
			track.Clips = append(track.Clips[:i], track.Clips[i+1:]...)
			break
		}
	}
	delete(m.clips, clipID)
	delete(m.byClip, clipID)
}

func sortClips(track *Track) {
	sort.SliceStable(track.Clips, func(i, j int) bool {
		return track.Clips[i].StartTime < track.Clips[j].StartTime
	})
}

func compatible(trackType TrackType, assetType media.MediaType) bool {
	switch trackType {
	case TrackVideo:
		return assetType == media.TypeVideo || assetType == media.TypeImage
	case TrackAudio:
		return assetType == media.TypeAudio
	case TrackOverlay:
		return assetType == media.TypeVideo || assetType == media.TypeImage
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
