// Package audio keeps per-clip playback elements in sync with the timeline
// transport and applies hierarchical master and per-clip gain with a
// perceptual volume law. One engine instance is one mixing graph; it is
// constructed explicitly and passed to whichever component needs transport
// sync, never held as package state.
package audio

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// GainExponent approximates professional-mixer perceptual loudness curves:
// linear UI volume is raised to this power before hitting the graph.
const GainExponent = 2.5

// DriftTolerance is the seek threshold in seconds. Intentionally coarse so
// constant re-seeking does not cause stutter.
const DriftTolerance = 0.2

// Gain converts a linear UI volume [0,1] to a perceptual gain value.
func Gain(linear float64) float64 {
	if linear <= 0 {
		return 0
	}
	return math.Pow(linear, GainExponent)
}

// Linear recovers the UI volume from a logged gain value.
func Linear(gain float64) float64 {
	if gain <= 0 {
		return 0
	}
	return math.Pow(gain, 1/GainExponent)
}

// Element is a playable media element owned by the engine. Real output
// lives in the consuming front end; the engine drives any implementation.
type Element interface {
	Play() error
	Pause()
	Seek(seconds float64)
	Position() float64
	SetVolume(gain float64)
	Close()
}

// ElementFactory materializes an element for a resolved playable URL.
// A factory error marks the track as failed; other tracks keep mixing.
type ElementFactory func(url string) (Element, error)

type trackHandle struct {
	element   Element
	volume    float64
	muted     bool
	startTime float64
	endTime   float64
	trimStart float64
	trimEnd   float64
	playing   bool
}

type Engine struct {
	mu      sync.Mutex
	factory ElementFactory
	tracks  map[string]*trackHandle

	masterVolume float64
	masterMuted  bool
	resumed      bool

	logger *slog.Logger
}

func NewEngine(factory ElementFactory, logger *slog.Logger) *Engine {
	return &Engine{
		factory:      factory,
		tracks:       make(map[string]*trackHandle),
		masterVolume: 1,
		logger:       logger,
	}
}

// AddTrack registers a clip's audio under its clip id. Re-adding an
// existing clip id replaces the previous handle.
func (e *Engine) AddTrack(clipID, url string, startTime, endTime, trimStart, trimEnd float64) error {
	element, err := e.factory(url)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("audio track init failed, skipping", "clip_id", clipID, "error", err)
		}
		return fmt.Errorf("audio track init: %w", err)
	}

	e.mu.Lock()
	if old, ok := e.tracks[clipID]; ok {
		old.element.Close()
	}
	t := &trackHandle{
		element:   element,
		volume:    1,
		startTime: startTime,
		endTime:   endTime,
		trimStart: trimStart,
		trimEnd:   trimEnd,
	}
	e.tracks[clipID] = t
	e.applyGainLocked(t)
	e.mu.Unlock()
	return nil
}

// HasTrack reports whether a clip currently owns a handle.
func (e *Engine) HasTrack(clipID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.tracks[clipID]
	return ok
}

// TrackIDs lists the clips with live handles.
func (e *Engine) TrackIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.tracks))
	for id := range e.tracks {
		ids = append(ids, id)
	}
	return ids
}

// RemoveTrack tears down the clip's element and gain stage.
func (e *Engine) RemoveTrack(clipID string) {
	e.mu.Lock()
	t, ok := e.tracks[clipID]
	if ok {
		delete(e.tracks, clipID)
	}
	e.mu.Unlock()
	if ok {
		t.element.Close()
	}
}

// UpdateTrackWindow refreshes a clip's timeline placement and trim window
// after an edit without recreating the element.
func (e *Engine) UpdateTrackWindow(clipID string, startTime, endTime, trimStart, trimEnd float64) {
	e.mu.Lock()
	if t, ok := e.tracks[clipID]; ok {
		t.startTime = startTime
		t.endTime = endTime
		t.trimStart = trimStart
		t.trimEnd = trimEnd
	}
	e.mu.Unlock()
}

func (e *Engine) SetTrackVolume(clipID string, volume float64) {
	e.mu.Lock()
	if t, ok := e.tracks[clipID]; ok {
		t.volume = clamp01(volume)
		e.applyGainLocked(t)
	}
	e.mu.Unlock()
}

func (e *Engine) SetTrackMuted(clipID string, muted bool) {
	e.mu.Lock()
	if t, ok := e.tracks[clipID]; ok {
		t.muted = muted
		e.applyGainLocked(t)
	}
	e.mu.Unlock()
}

func (e *Engine) SetMasterVolume(volume float64) {
	e.mu.Lock()
	e.masterVolume = clamp01(volume)
	for _, t := range e.tracks {
		e.applyGainLocked(t)
	}
	e.mu.Unlock()
}

func (e *Engine) SetMasterMuted(muted bool) {
	e.mu.Lock()
	e.masterMuted = muted
	for _, t := range e.tracks {
		e.applyGainLocked(t)
	}
	e.mu.Unlock()
}

func (e *Engine) MasterVolume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.masterVolume
}

func (e *Engine) MasterMuted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.masterMuted
}

// EffectiveGain returns the gain currently applied to a clip's element:
// zero when the master or the clip is muted, otherwise the perceptual clip
// stage multiplied by the separate master stage.
func (e *Engine) EffectiveGain(clipID string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tracks[clipID]
	if !ok {
		return 0
	}
	return e.effectiveGainLocked(t)
}

func (e *Engine) effectiveGainLocked(t *trackHandle) float64 {
	if e.masterMuted || t.muted {
		return 0
	}
	return Gain(t.volume) * Gain(e.masterVolume)
}

func (e *Engine) applyGainLocked(t *trackHandle) {
	t.element.SetVolume(e.effectiveGainLocked(t))
}

// ResumeContext marks the mixing graph as user-activated. Autoplay policy
// keeps the underlying context suspended until a gesture; repeated calls
// are no-ops.
func (e *Engine) ResumeContext() {
	e.mu.Lock()
	e.resumed = true
	e.mu.Unlock()
}

// SyncToTimeline aligns every registered element with the transport. Called
// on every transport tick; it never blocks. Elements inside their clip's
// window seek only when drift exceeds the tolerance band, elements outside
// it are paused. Play attempts are best-effort: autoplay rejections are
// swallowed and logged.
func (e *Engine) SyncToTimeline(now float64, playing bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for clipID, t := range e.tracks {
		if playing && now >= t.startTime && now < t.endTime {
			offset := t.trimStart
			if span := t.endTime - t.startTime; span > 0 {
				offset = t.trimStart + (now-t.startTime)/span*(t.trimEnd-t.trimStart)
			}
			if math.Abs(t.element.Position()-offset) >= DriftTolerance {
				t.element.Seek(offset)
			}
			if !t.playing {
				if err := t.element.Play(); err != nil {
					if e.logger != nil {
						e.logger.Debug("audio element play rejected", "clip_id", clipID, "error", err)
					}
					continue
				}
				t.playing = true
			}
		} else if t.playing {
			t.element.Pause()
			t.playing = false
		}
	}
}

// Close tears down every element. The engine is not reusable afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	tracks := e.tracks
	e.tracks = make(map[string]*trackHandle)
	e.mu.Unlock()
	for _, t := range tracks {
		t.element.Close()
	}
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
