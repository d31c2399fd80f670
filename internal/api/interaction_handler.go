package api

import (
	"net/http"

	"github.com/cutroom/cutroom-engine/internal/interaction"
	"github.com/cutroom/cutroom-engine/internal/timeline"
)

// The interaction endpoints drive the gesture controller over the loopback
// API: the front end forwards pointer and keyboard events, the engine owns
// selection, gesture state, and the resulting model edits.

func interactionStateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeInteractionState(w, cfg)
	}
}

func selectClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SelectRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		cfg.Interaction.Select(req.ClipID)
		writeInteractionState(w, cfg)
	}
}

func dragGestureHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DragGestureRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		var err error
		switch req.Phase {
		case "begin":
			err = cfg.Interaction.BeginDrag(req.ClipID, req.PointerX)
		case "move":
			err = cfg.Interaction.DragTo(req.PointerX, parseSnapTier(req.Snap))
		case "end":
			cfg.Interaction.EndDrag()
		default:
			WriteError(w, http.StatusBadRequest, "phase must be begin, move, or end", "BAD_REQUEST")
			return
		}
		if err != nil {
			writeTimelineError(w, err)
			return
		}
		writeInteractionState(w, cfg)
	}
}

func resizeGestureHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResizeGestureRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		var err error
		switch req.Phase {
		case "begin":
			edge := timeline.EdgeLeft
			switch req.Edge {
			case "left":
			case "right":
				edge = timeline.EdgeRight
			default:
				WriteError(w, http.StatusBadRequest, "edge must be left or right", "BAD_REQUEST")
				return
			}
			err = cfg.Interaction.BeginResize(req.ClipID, edge, req.PointerX)
		case "move":
			err = cfg.Interaction.ResizeTo(req.PointerX, parseSnapTier(req.Snap))
		case "end":
			cfg.Interaction.EndResize()
		default:
			WriteError(w, http.StatusBadRequest, "phase must be begin, move, or end", "BAD_REQUEST")
			return
		}
		if err != nil {
			writeTimelineError(w, err)
			return
		}
		writeInteractionState(w, cfg)
	}
}

func scrubHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScrubRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		cfg.Interaction.Scrub(req.PointerX, parseSnapTier(req.Snap))
		now, playing := cfg.Model.Transport()
		WriteJSON(w, http.StatusOK, TransportResponse{Time: now, Playing: playing})
	}
}

func scrollTickHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScrollTickRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		cfg.Interaction.AutoScrollTick(req.PointerX, req.ViewportWidth)
		writeInteractionState(w, cfg)
	}
}

func viewportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ViewportRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		cfg.Interaction.SetViewport(req.Zoom, req.Offset)
		writeInteractionState(w, cfg)
	}
}

func dropAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DropAssetRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		explicitTime := 0.0
		if req.Time != nil {
			explicitTime = *req.Time
		}
		clip, err := cfg.Interaction.DropAsset(req.AssetID, req.TrackID, explicitTime, req.Time != nil)
		if err != nil {
			writeTimelineError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, ClipToResponse(clip))
	}
}

func keyCommandHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req KeyRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		cmd, ok := parseKeyCommand(req.Command)
		if !ok {
			WriteError(w, http.StatusBadRequest, "unknown command", "BAD_REQUEST")
			return
		}
		if err := cfg.Interaction.HandleKey(cmd); err != nil {
			writeTimelineError(w, err)
			return
		}
		writeInteractionState(w, cfg)
	}
}

func focusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FocusRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		cfg.Interaction.SetTextInputFocus(req.TextInput)
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeInteractionState(w http.ResponseWriter, cfg ServerConfig) {
	zoom, offset := cfg.Interaction.Viewport()
	WriteJSON(w, http.StatusOK, InteractionStateResponse{
		Selected: cfg.Interaction.Selected(),
		Zoom:     zoom,
		Offset:   offset,
	})
}

func parseSnapTier(s string) interaction.SnapTier {
	switch s {
	case "fine":
		return interaction.SnapFine
	case "ultrafine":
		return interaction.SnapUltraFine
	default:
		return interaction.SnapDefault
	}
}

func parseKeyCommand(s string) (interaction.Command, bool) {
	switch s {
	case "play_pause":
		return interaction.CmdPlayPause, true
	case "step_forward":
		return interaction.CmdStepForward, true
	case "step_back":
		return interaction.CmdStepBack, true
	case "step_forward_multi":
		return interaction.CmdStepForwardMulti, true
	case "step_back_multi":
		return interaction.CmdStepBackMulti, true
	case "next_edge":
		return interaction.CmdJumpNextEdge, true
	case "prev_edge":
		return interaction.CmdJumpPrevEdge, true
	case "mute":
		return interaction.CmdMuteToggle, true
	case "split":
		return interaction.CmdSplitAtPlayhead, true
	case "duplicate":
		return interaction.CmdDuplicate, true
	case "delete":
		return interaction.CmdDelete, true
	}
	return 0, false
}
