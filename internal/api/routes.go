package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cutroom/cutroom-engine/internal/timeline"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSMiddleware(cfg.AllowedOrigins))

	r.Get("/health", healthHandler(cfg))

	// Blob streaming sits outside the auth group: browser media elements
	// cannot attach Authorization headers to <video> sources. The ids are
	// unguessable content hashes and the listener is loopback-bound.
	r.Get("/v1/blobs/{id}", blobHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/v1/timeline", timelineHandler(cfg))

		r.Get("/v1/projects", listProjectsHandler(cfg))
		r.Post("/v1/projects/save", saveProjectHandler(cfg))
		r.Post("/v1/projects/{id}/load", loadProjectHandler(cfg))
		r.Delete("/v1/projects/{id}", deleteProjectHandler(cfg))

		r.Post("/v1/tracks", addTrackHandler(cfg))
		r.Patch("/v1/tracks/{id}", updateTrackHandler(cfg))
		r.Delete("/v1/tracks/{id}", removeTrackHandler(cfg))

		r.Post("/v1/clips", addClipHandler(cfg))
		r.Post("/v1/clips/{id}/move", moveClipHandler(cfg))
		r.Post("/v1/clips/{id}/resize", resizeClipHandler(cfg))
		r.Post("/v1/clips/{id}/split", splitClipHandler(cfg))
		r.Post("/v1/clips/{id}/duplicate", duplicateClipHandler(cfg))
		r.Patch("/v1/clips/{id}", updateClipHandler(cfg))
		r.Delete("/v1/clips/{id}", removeClipHandler(cfg))

		r.Post("/v1/assets", uploadAssetHandler(cfg))
		r.Get("/v1/assets", listAssetsHandler(cfg))
		r.Get("/v1/assets/{id}/url", assetURLHandler(cfg))
		r.Delete("/v1/assets/{id}", deleteAssetHandler(cfg))

		r.Post("/v1/filmstrips", requestFilmstripHandler(cfg))
		r.Get("/v1/filmstrips/{clipID}", getFilmstripHandler(cfg))
		r.Delete("/v1/filmstrips/{clipID}", cancelFilmstripHandler(cfg))

		r.Get("/v1/transport", getTransportHandler(cfg))
		r.Post("/v1/transport", setTransportHandler(cfg))

		r.Get("/v1/audio/master", getMasterAudioHandler(cfg))
		r.Post("/v1/audio/master", setMasterAudioHandler(cfg))

		r.Get("/v1/interaction", interactionStateHandler(cfg))
		r.Post("/v1/interaction/select", selectClipHandler(cfg))
		r.Post("/v1/interaction/drag", dragGestureHandler(cfg))
		r.Post("/v1/interaction/resize", resizeGestureHandler(cfg))
		r.Post("/v1/interaction/scrub", scrubHandler(cfg))
		r.Post("/v1/interaction/scroll", scrollTickHandler(cfg))
		r.Post("/v1/interaction/viewport", viewportHandler(cfg))
		r.Post("/v1/interaction/drop", dropAssetHandler(cfg))
		r.Post("/v1/interaction/key", keyCommandHandler(cfg))
		r.Post("/v1/interaction/focus", focusHandler(cfg))

		r.Post("/v1/export/edl", exportEDLHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Version:   Version,
			UptimeS:   uptime,
			ProjectID: cfg.Model.Project().ID,
		})
	}
}

func timelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracks := cfg.Model.Tracks()
		assets := cfg.Model.Assets()

		resp := TimelineResponse{
			Project: ProjectToResponse(cfg.Model.Project()),
			Tracks:  make([]TrackResponse, len(tracks)),
			Assets:  make([]AssetResponse, len(assets)),
		}
		for i, t := range tracks {
			resp.Tracks[i] = TrackToResponse(t)
		}
		for i, a := range assets {
			resp.Assets[i] = AssetToResponse(a)
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Repository.ListProjects(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list projects", "INTERNAL_ERROR")
			return
		}

		resp := ProjectsResponse{Projects: make([]ProjectResponse, len(projects))}
		for i, p := range projects {
			resp.Projects[i] = ProjectToResponse(*p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func saveProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := cfg.Model.Snapshot()
		if err := cfg.Repository.SaveSnapshot(r.Context(), snap); err != nil {
			cfg.Logger.Error("failed to save snapshot", "error", err, "project_id", snap.Project.ID)
			WriteError(w, http.StatusInternalServerError, "failed to save project", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(snap.Project))
	}
}

func loadProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "id")

		snap, err := cfg.Repository.LoadSnapshot(r.Context(), projectID)
		if err != nil {
			WriteError(w, http.StatusNotFound, "project not found", "NOT_FOUND")
			return
		}

		cfg.Model.Restore(snap)
		WriteJSON(w, http.StatusOK, ProjectToResponse(snap.Project))
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "id")

		if err := cfg.Repository.DeleteProject(r.Context(), projectID); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to delete project", "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddTrackRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		trackType := timeline.TrackType(req.Type)
		switch trackType {
		case timeline.TrackVideo, timeline.TrackAudio, timeline.TrackOverlay:
		default:
			WriteError(w, http.StatusBadRequest, "unknown track type", "BAD_REQUEST")
			return
		}

		track := cfg.Model.AddTrack(trackType)
		WriteJSON(w, http.StatusCreated, TrackToResponse(track))
	}
}

func updateTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trackID := chi.URLParam(r, "id")

		var req UpdateTrackRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.Volume != nil {
			if err := cfg.Model.SetTrackVolume(trackID, *req.Volume); err != nil {
				writeTimelineError(w, err)
				return
			}
		}
		if req.Opacity != nil {
			if err := cfg.Model.SetTrackOpacity(trackID, *req.Opacity); err != nil {
				writeTimelineError(w, err)
				return
			}
		}
		if req.Blend != nil {
			if err := cfg.Model.SetTrackBlend(trackID, timeline.BlendMode(*req.Blend)); err != nil {
				writeTimelineError(w, err)
				return
			}
		}

		track, err := cfg.Model.Track(trackID)
		if err != nil {
			writeTimelineError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TrackToResponse(track))
	}
}

func removeTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trackID := chi.URLParam(r, "id")

		track, err := cfg.Model.Track(trackID)
		if err != nil {
			writeTimelineError(w, err)
			return
		}

		// Drop audio handles for clips that disappear with the track.
		for _, clip := range track.Clips {
			cfg.Audio.RemoveTrack(clip.ID)
			cfg.Filmstrips.Cancel(clip.ID)
		}

		if err := cfg.Model.RemoveTrack(trackID); err != nil {
			writeTimelineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getTransportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now, playing := cfg.Model.Transport()
		WriteJSON(w, http.StatusOK, TransportResponse{Time: now, Playing: playing})
	}
}

func setTransportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TransportRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.Playing {
			cfg.Audio.ResumeContext()
		}
		cfg.Model.SetTransport(req.Time, req.Playing)
		WriteJSON(w, http.StatusOK, TransportResponse{Time: req.Time, Playing: req.Playing})
	}
}

func getMasterAudioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, MasterAudioResponse{
			Volume: cfg.Audio.MasterVolume(),
			Muted:  cfg.Audio.MasterMuted(),
		})
	}
}

func setMasterAudioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MasterAudioRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.Volume != nil {
			cfg.Audio.SetMasterVolume(*req.Volume)
		}
		if req.Muted != nil {
			cfg.Audio.SetMasterMuted(*req.Muted)
		}

		WriteJSON(w, http.StatusOK, MasterAudioResponse{
			Volume: cfg.Audio.MasterVolume(),
			Muted:  cfg.Audio.MasterMuted(),
		})
	}
}

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := cfg.Export.Export()
		WriteJSON(w, http.StatusOK, result)
	}
}

func blobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.Playback.ServeBlob(w, r, id); err != nil {
			cfg.Logger.Error("blob serving failed", "error", err, "object_id", id)
			WriteError(w, http.StatusInternalServerError, "failed to serve object", "INTERNAL_ERROR")
		}
	}
}
