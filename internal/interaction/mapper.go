package interaction

import "math"

// BasePixelsPerSecond is the pixel density of the timeline at zoom 1.
const BasePixelsPerSecond = 100.0

// LeftPadding offsets the zero-time mark from the viewport's left edge.
const LeftPadding = 16.0

// SnapTier selects the snapping grid. Modifier keys move between tiers:
// the default grid gives predictable editor-like placement, fine and
// ultra-fine tighten it down to frame accuracy.
type SnapTier int

const (
	SnapDefault SnapTier = iota
	SnapFine
	SnapUltraFine
)

// Grid returns the tier's snap interval in seconds.
func (t SnapTier) Grid() float64 {
	switch t {
	case SnapFine:
		return 0.1
	case SnapUltraFine:
		return 1.0 / 30.0
	default:
		return 0.25
	}
}

// Snap rounds a time to the tier's grid.
func Snap(t float64, tier SnapTier) float64 {
	grid := tier.Grid()
	return math.Round(t/grid) * grid
}

// Mapper converts between screen pixels and timeline seconds. The playhead
// renders at a fixed screen position while the content scrolls underneath
// it: Offset, not the playhead, moves as time advances.
type Mapper struct {
	Zoom   float64
	Offset float64
}

func NewMapper() Mapper {
	return Mapper{Zoom: 1}
}

func (m Mapper) PixelsPerSecond() float64 {
	zoom := m.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	return BasePixelsPerSecond * zoom
}

// TimeAt maps an absolute viewport x coordinate to timeline seconds.
func (m Mapper) TimeAt(x float64) float64 {
	t := (x + m.Offset - LeftPadding) / m.PixelsPerSecond()
	if t < 0 {
		return 0
	}
	return t
}

// PixelAt maps timeline seconds to an absolute viewport x coordinate.
func (m Mapper) PixelAt(t float64) float64 {
	return t*m.PixelsPerSecond() + LeftPadding - m.Offset
}

// FollowPlayhead computes the content offset that keeps the playhead
// anchored at the given screen x while the transport advances.
func (m *Mapper) FollowPlayhead(now, anchorX float64) {
	offset := now*m.PixelsPerSecond() + LeftPadding - anchorX
	if offset < 0 {
		offset = 0
	}
	m.Offset = offset
}
