package timeline

// SetTransport updates the global playback position and playing state and
// notifies transport subscribers (the audio engine among them). Transport
// updates do not bump the model revision; they are not persisted state.
func (m *Model) SetTransport(now float64, playing bool) {
	if now < 0 {
		now = 0
	}
	m.mu.Lock()
	m.transportTime = now
	m.transportPlaying = playing
	subs := make([]func(float64, bool), len(m.onTransport))
	copy(subs, m.onTransport)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(now, playing)
	}
}

// Transport returns the current playback position and playing state.
func (m *Model) Transport() (now float64, playing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transportTime, m.transportPlaying
}

// OnTransport registers a callback invoked on every transport update.
// Callbacks run outside the model lock and must not block.
func (m *Model) OnTransport(fn func(now float64, playing bool)) {
	m.mu.Lock()
	m.onTransport = append(m.onTransport, fn)
	m.mu.Unlock()
}

// NextClipEdge returns the nearest clip boundary strictly after t across
// all tracks, or t when none exists.
func (m *Model) NextClipEdge(t float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	best := t
	found := false
	for _, track := range m.tracks {
		for _, c := range track.Clips {
			for _, edge := range [2]float64{c.StartTime, c.EndTime} {
				if edge > t && (!found || edge < best) {
					best = edge
					found = true
				}
			}
		}
	}
	return best
}

// PrevClipEdge returns the nearest clip boundary strictly before t across
// all tracks, or 0 when none exists.
func (m *Model) PrevClipEdge(t float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	best := 0.0
	for _, track := range m.tracks {
		for _, c := range track.Clips {
			for _, edge := range [2]float64{c.StartTime, c.EndTime} {
				if edge < t && edge > best {
					best = edge
				}
			}
		}
	}
	return best
}
