// Package interaction translates pointer and keyboard input into timeline
// model mutations: drag, resize, scrub, auto-scroll, and keyboard
// transport, with professional-editor snapping tiers. It owns no UI; the
// front end feeds it events and renders the model.
package interaction

import (
	"log/slog"
	"math"
	"sync"

	"github.com/cutroom/cutroom-engine/internal/audio"
	"github.com/cutroom/cutroom-engine/internal/timeline"
)

// DragThresholdPx must be exceeded before a pointer-down commits to a
// move, distinguishing click-select from drag-move.
const DragThresholdPx = 5.0

// DragDamping scales pointer deltas for controllability.
const DragDamping = 0.8

type dragGesture struct {
	clipID    string
	startX    float64
	origStart float64
	committed bool
}

type resizeGesture struct {
	clipID       string
	edge         timeline.ResizeEdge
	startX       float64
	origBoundary float64
	committed    bool
}

// Controller methods may be driven concurrently over the API, so gesture
// state lives behind one mutex.
type Controller struct {
	mu sync.Mutex

	model  *timeline.Model
	engine *audio.Engine
	logger *slog.Logger

	Mapper   Mapper
	Scroller AutoScroller

	selected    string
	focusInText bool

	drag   *dragGesture
	resize *resizeGesture
}

func NewController(model *timeline.Model, engine *audio.Engine, logger *slog.Logger) *Controller {
	return &Controller{
		model:  model,
		engine: engine,
		logger: logger,
		Mapper: NewMapper(),
	}
}

// Select marks a clip as the current selection. An empty id clears it.
func (c *Controller) Select(clipID string) {
	c.mu.Lock()
	c.selected = clipID
	c.mu.Unlock()
}

func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// SetTextInputFocus suppresses keyboard transport while the front end has
// focus inside a text input.
func (c *Controller) SetTextInputFocus(focused bool) {
	c.mu.Lock()
	c.focusInText = focused
	c.mu.Unlock()
}

// Viewport returns the mapper's current zoom and offset.
func (c *Controller) Viewport() (zoom, offset float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Mapper.Zoom, c.Mapper.Offset
}

// SetViewport applies front-end zoom and scroll state. Non-positive zoom
// and negative offsets are ignored.
func (c *Controller) SetViewport(zoom, offset float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if zoom > 0 {
		c.Mapper.Zoom = zoom
	}
	if offset >= 0 {
		c.Mapper.Offset = offset
	}
}

// BeginDrag starts a pending move gesture on a clip.
func (c *Controller) BeginDrag(clipID string, pointerX float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clip, err := c.model.Clip(clipID)
	if err != nil {
		return err
	}
	c.drag = &dragGesture{clipID: clipID, startX: pointerX, origStart: clip.StartTime}
	return nil
}

// DragTo updates an active drag. Movement below the pixel threshold keeps
// the gesture pending (a click-select); past it, each update commits a
// dampened, snapped move to the model.
func (c *Controller) DragTo(pointerX float64, tier SnapTier) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	g := c.drag
	if g == nil {
		return nil
	}
	dx := pointerX - g.startX
	if !g.committed {
		if math.Abs(dx) < DragThresholdPx {
			return nil
		}
		g.committed = true
		c.selected = g.clipID
	}

	deltaT := dx * DragDamping / c.Mapper.PixelsPerSecond()
	newStart := Snap(g.origStart+deltaT, tier)
	return c.model.MoveClip(g.clipID, newStart)
}

// EndDrag finishes the gesture. Intermediate moves are already committed
// to the model; only the visual follow helpers stop.
func (c *Controller) EndDrag() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drag != nil && !c.drag.committed {
		// Never crossed the threshold: plain click-select.
		c.selected = c.drag.clipID
	}
	c.drag = nil
	c.Scroller.Stop()
}

// BeginResize starts a pending resize gesture on one clip edge.
func (c *Controller) BeginResize(clipID string, edge timeline.ResizeEdge, pointerX float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clip, err := c.model.Clip(clipID)
	if err != nil {
		return err
	}
	boundary := clip.StartTime
	if edge == timeline.EdgeRight {
		boundary = clip.EndTime
	}
	c.resize = &resizeGesture{clipID: clipID, edge: edge, startX: pointerX, origBoundary: boundary}
	return nil
}

// ResizeTo updates an active resize with the same threshold-before-commit
// rule as dragging.
func (c *Controller) ResizeTo(pointerX float64, tier SnapTier) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	g := c.resize
	if g == nil {
		return nil
	}
	dx := pointerX - g.startX
	if !g.committed {
		if math.Abs(dx) < DragThresholdPx {
			return nil
		}
		g.committed = true
	}

	deltaT := dx * DragDamping / c.Mapper.PixelsPerSecond()
	newBoundary := Snap(g.origBoundary+deltaT, tier)
	return c.model.ResizeClip(g.clipID, g.edge, newBoundary)
}

func (c *Controller) EndResize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resize = nil
	c.Scroller.Stop()
}

// Scrub maps a pointer x directly to an absolute, snapped transport time.
// Absolute mapping avoids the cumulative drift of delta-based scrubbing.
func (c *Controller) Scrub(pointerX float64, tier SnapTier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, playing := c.model.Transport()
	t := Snap(c.Mapper.TimeAt(pointerX), tier)
	if t < 0 {
		t = 0
	}
	c.model.SetTransport(t, playing)
}

// AutoScrollTick advances edge auto-scroll for one animation tick while a
// gesture is active, shifting the viewport offset.
func (c *Controller) AutoScrollTick(pointerX, viewportWidth float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.drag == nil && c.resize == nil {
		return
	}
	delta := c.Scroller.Tick(pointerX, viewportWidth)
	if delta != 0 {
		c.Mapper.Offset += delta
		if c.Mapper.Offset < 0 {
			c.Mapper.Offset = 0
		}
	}
}

// DropAsset routes an asset drop onto the timeline. With an unambiguous
// track and time target the clip lands exactly there; otherwise placement
// goes through the model's smart drop so insertions never silently overlap.
func (c *Controller) DropAsset(assetID, trackID string, explicitTime float64, hasExplicitTarget bool) (*timeline.Clip, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	asset, err := c.model.Asset(assetID)
	if err != nil {
		return nil, err
	}

	if hasExplicitTarget {
		return c.model.AddClip(trackID, assetID, explicitTime, asset.Duration)
	}

	playhead, _ := c.model.Transport()
	at, err := c.model.ComputeSmartDropPosition(trackID, asset.Duration, playhead)
	if err != nil {
		return nil, err
	}
	return c.model.AddClip(trackID, assetID, at, asset.Duration)
}
