package audio

import (
	"sync"
	"time"
)

// ClockElement is a silent element that advances its position against the
// wall clock. It stands in for real media output when the engine runs
// headless, and gives transport sync something honest to measure drift on.
type ClockElement struct {
	mu      sync.Mutex
	base    float64
	started time.Time
	playing bool
	gain    float64
}

func NewClockElement() *ClockElement {
	return &ClockElement{gain: 1}
}

// ClockFactory builds ClockElements regardless of URL.
func ClockFactory(url string) (Element, error) {
	return NewClockElement(), nil
}

func (c *ClockElement) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		c.playing = true
		c.started = time.Now()
	}
	return nil
}

func (c *ClockElement) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		c.base += time.Since(c.started).Seconds()
		c.playing = false
	}
}

func (c *ClockElement) Seek(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = seconds
	c.started = time.Now()
}

func (c *ClockElement) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return c.base + time.Since(c.started).Seconds()
	}
	return c.base
}

func (c *ClockElement) SetVolume(gain float64) {
	c.mu.Lock()
	c.gain = gain
	c.mu.Unlock()
}

// Gain reports the last applied gain value.
func (c *ClockElement) Gain() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gain
}

func (c *ClockElement) Close() {
	c.Pause()
}
