package interaction

import (
	"errors"

	"github.com/cutroom/cutroom-engine/internal/timeline"
)

// Command is a keyboard transport action.
type Command int

const (
	CmdPlayPause Command = iota
	CmdStepForward
	CmdStepBack
	CmdStepForwardMulti
	CmdStepBackMulti
	CmdJumpNextEdge
	CmdJumpPrevEdge
	CmdMuteToggle
	CmdSplitAtPlayhead
	CmdDuplicate
	CmdDelete
)

// multiFrameStep is the frame count for the coarse step commands.
const multiFrameStep = 10

// HandleKey executes a keyboard transport command against the model. All
// keyboard handling is suppressed while focus is inside a text input.
func (c *Controller) HandleKey(cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.focusInText {
		return nil
	}

	now, playing := c.model.Transport()
	frameRate := c.model.Project().FrameRate
	if frameRate <= 0 {
		frameRate = 30
	}
	frame := 1 / frameRate

	switch cmd {
	case CmdPlayPause:
		if !playing && c.engine != nil {
			c.engine.ResumeContext()
		}
		c.model.SetTransport(now, !playing)

	case CmdStepForward:
		c.model.SetTransport(now+frame, false)
	case CmdStepBack:
		c.model.SetTransport(now-frame, false)
	case CmdStepForwardMulti:
		c.model.SetTransport(now+multiFrameStep*frame, false)
	case CmdStepBackMulti:
		c.model.SetTransport(now-multiFrameStep*frame, false)

	case CmdJumpNextEdge:
		c.model.SetTransport(c.model.NextClipEdge(now), playing)
	case CmdJumpPrevEdge:
		c.model.SetTransport(c.model.PrevClipEdge(now), playing)

	case CmdMuteToggle:
		return c.toggleMute()

	case CmdSplitAtPlayhead:
		return c.splitAtPlayhead(now)

	case CmdDuplicate:
		if c.selected == "" {
			return nil
		}
		dup, err := c.model.DuplicateClip(c.selected)
		if err != nil {
			return err
		}
		c.selected = dup.ID

	case CmdDelete:
		if c.selected == "" {
			return nil
		}
		if err := c.model.RemoveClip(c.selected); err != nil {
			return err
		}
		if c.engine != nil {
			c.engine.RemoveTrack(c.selected)
		}
		c.selected = ""
	}
	return nil
}

// toggleMute is clip-scoped when a clip is selected, master-scoped
// otherwise.
func (c *Controller) toggleMute() error {
	if c.selected != "" {
		clip, err := c.model.Clip(c.selected)
		if err != nil {
			return err
		}
		if err := c.model.SetClipMuted(c.selected, !clip.Muted); err != nil {
			return err
		}
		if c.engine != nil {
			c.engine.SetTrackMuted(c.selected, !clip.Muted)
		}
		return nil
	}
	if c.engine != nil {
		c.engine.SetMasterMuted(!c.engine.MasterMuted())
	}
	return nil
}

// splitAtPlayhead splits the selected clip, enabled only when the playhead
// sits strictly inside its span.
func (c *Controller) splitAtPlayhead(now float64) error {
	if c.selected == "" {
		return nil
	}
	clip, err := c.model.Clip(c.selected)
	if err != nil {
		return err
	}
	if now <= clip.StartTime || now >= clip.EndTime {
		return nil
	}
	left, _, err := c.model.SplitClip(c.selected, now)
	if err != nil {
		if errors.Is(err, timeline.ErrInvalidEdit) {
			return nil
		}
		return err
	}
	c.selected = left.ID
	return nil
}
