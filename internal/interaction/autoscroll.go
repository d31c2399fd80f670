package interaction

// Auto-scroll engages while a drag or resize holds the pointer near a
// viewport edge. Speed ramps up gently to a cap instead of jumping, and
// stops immediately on release.
const (
	// autoScrollMargin is the engagement distance from the viewport edge.
	autoScrollMargin = 40.0
	// Speeds are px per tick.
	autoScrollBase     = 4.0
	autoScrollAccel    = 0.6
	autoScrollMaxSpeed = 24.0
)

type AutoScroller struct {
	speed  float64
	active bool
}

// Tick advances the scroller for one animation tick and returns the pixel
// delta to apply to the viewport offset. A pointer outside both margins
// resets the acceleration.
func (s *AutoScroller) Tick(pointerX, viewportWidth float64) float64 {
	var direction float64
	switch {
	case pointerX < autoScrollMargin:
		direction = -1
	case pointerX > viewportWidth-autoScrollMargin:
		direction = 1
	default:
		s.speed = 0
		s.active = false
		return 0
	}

	if !s.active {
		s.active = true
		s.speed = autoScrollBase
	} else {
		s.speed += autoScrollAccel
		if s.speed > autoScrollMaxSpeed {
			s.speed = autoScrollMaxSpeed
		}
	}
	return direction * s.speed
}

// Stop halts scrolling, called on pointer release.
func (s *AutoScroller) Stop() {
	s.speed = 0
	s.active = false
}

// Active reports whether the scroller is currently moving the viewport.
func (s *AutoScroller) Active() bool {
	return s.active
}
