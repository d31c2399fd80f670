package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cutroom/cutroom-engine/internal/timeline"
)

func addClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddClipRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		asset, err := cfg.Model.Asset(req.AssetID)
		if err != nil {
			writeTimelineError(w, err)
			return
		}

		duration := asset.Duration
		if req.Duration != nil {
			duration = *req.Duration
		}

		startTime := 0.0
		if req.StartTime != nil {
			startTime = *req.StartTime
		} else {
			startTime, err = cfg.Model.ComputeSmartDropPosition(req.TrackID, duration, req.Playhead)
			if err != nil {
				writeTimelineError(w, err)
				return
			}
		}

		clip, err := cfg.Model.AddClip(req.TrackID, req.AssetID, startTime, duration)
		if err != nil {
			writeTimelineError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, ClipToResponse(clip))
	}
}

func moveClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "id")

		var req MoveClipRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Model.MoveClip(clipID, req.StartTime); err != nil {
			writeTimelineError(w, err)
			return
		}
		respondWithClip(w, cfg, clipID)
	}
}

func resizeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "id")

		var req ResizeClipRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		var edge timeline.ResizeEdge
		switch req.Edge {
		case "left":
			edge = timeline.EdgeLeft
		case "right":
			edge = timeline.EdgeRight
		default:
			WriteError(w, http.StatusBadRequest, "edge must be left or right", "BAD_REQUEST")
			return
		}

		if err := cfg.Model.ResizeClip(clipID, edge, req.Boundary); err != nil {
			writeTimelineError(w, err)
			return
		}

		// Trim bounds changed; any cached filmstrip covers the wrong window.
		cfg.Filmstrips.Cancel(clipID)
		respondWithClip(w, cfg, clipID)
	}
}

func splitClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "id")

		var req SplitClipRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		left, right, err := cfg.Model.SplitClip(clipID, req.AtTime)
		if err != nil {
			writeTimelineError(w, err)
			return
		}

		cfg.Audio.RemoveTrack(clipID)
		cfg.Filmstrips.Cancel(clipID)

		WriteJSON(w, http.StatusCreated, SplitClipResponse{
			Left:  ClipToResponse(left),
			Right: ClipToResponse(right),
		})
	}
}

func duplicateClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "id")

		clip, err := cfg.Model.DuplicateClip(clipID)
		if err != nil {
			writeTimelineError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, ClipToResponse(clip))
	}
}

func updateClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "id")

		var req UpdateClipRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.Volume != nil {
			if err := cfg.Model.SetClipVolume(clipID, *req.Volume); err != nil {
				writeTimelineError(w, err)
				return
			}
			cfg.Audio.SetTrackVolume(clipID, *req.Volume)
		}
		if req.Muted != nil {
			if err := cfg.Model.SetClipMuted(clipID, *req.Muted); err != nil {
				writeTimelineError(w, err)
				return
			}
			cfg.Audio.SetTrackMuted(clipID, *req.Muted)
		}
		respondWithClip(w, cfg, clipID)
	}
}

func removeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "id")

		if err := cfg.Model.RemoveClip(clipID); err != nil {
			writeTimelineError(w, err)
			return
		}

		cfg.Audio.RemoveTrack(clipID)
		cfg.Filmstrips.Cancel(clipID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func respondWithClip(w http.ResponseWriter, cfg ServerConfig, clipID string) {
	clip, err := cfg.Model.Clip(clipID)
	if err != nil {
		writeTimelineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ClipToResponse(clip))
}
