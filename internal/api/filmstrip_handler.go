package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cutroom/cutroom-engine/internal/filmstrip"
	"github.com/cutroom/cutroom-engine/internal/resolver"
)

func requestFilmstripHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FilmstripRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		clip, err := cfg.Model.Clip(req.ClipID)
		if err != nil {
			writeTimelineError(w, err)
			return
		}

		asset, err := cfg.Model.ClipAsset(clip.ID)
		if err != nil {
			writeTimelineError(w, err)
			return
		}

		source, err := extractionSource(cfg, r, asset.ID, asset.Locator)
		if err != nil {
			if errors.Is(err, resolver.ErrSecurityBlocked) {
				WriteError(w, http.StatusForbidden, "locator blocked by security policy", "SECURITY_BLOCKED")
				return
			}
			WriteError(w, http.StatusBadGateway, "failed to resolve extraction source", "RESOLUTION_FAILED")
			return
		}

		segStart := req.SegmentStart
		segDuration := req.SegmentDuration
		if segDuration <= 0 {
			segStart = clip.TrimStart
			segDuration = clip.TrimEnd - clip.TrimStart
		}

		cfg.Filmstrips.Request(filmstrip.Request{
			ClipID:          clip.ID,
			Source:          source,
			SegmentStart:    segStart,
			SegmentDuration: segDuration,
			DisplayWidth:    req.DisplayWidth,
			Priority:        parsePriority(req.Priority),
		})

		w.WriteHeader(http.StatusAccepted)
	}
}

func getFilmstripHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "clipID")

		if strip := cfg.Filmstrips.Strip(clipID); strip != nil {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusOK)
			w.Write(strip)
			return
		}

		if cfg.Filmstrips.IsLoading(clipID) {
			w.WriteHeader(http.StatusAccepted)
			return
		}

		if err := cfg.Filmstrips.Err(clipID); err != nil {
			writeFilmstripError(w, err)
			return
		}

		WriteError(w, http.StatusNotFound, "no filmstrip for clip", "NOT_FOUND")
	}
}

func cancelFilmstripHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Filmstrips.Cancel(chi.URLParam(r, "clipID"))
		w.WriteHeader(http.StatusNoContent)
	}
}

// extractionSource maps an asset locator to something ffmpeg can read:
// the on-disk object path for local assets, the resolved URL otherwise.
func extractionSource(cfg ServerConfig, r *http.Request, assetID, locator string) (string, error) {
	if strings.HasPrefix(locator, resolver.LocalScheme) {
		return cfg.Store.Path(strings.TrimPrefix(locator, resolver.LocalScheme)), nil
	}
	res, err := cfg.Resolver.Resolve(r.Context(), assetID, locator)
	if err != nil {
		return "", err
	}
	return res.URL, nil
}

func parsePriority(s string) filmstrip.Priority {
	switch s {
	case "high":
		return filmstrip.PriorityHigh
	case "low":
		return filmstrip.PriorityLow
	default:
		return filmstrip.PriorityNormal
	}
}

func writeFilmstripError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, filmstrip.ErrSecurityBlocked):
		WriteError(w, http.StatusForbidden, "extraction blocked by security policy", "SECURITY_BLOCKED")
	case errors.Is(err, filmstrip.ErrUnsupported):
		WriteError(w, http.StatusUnsupportedMediaType, "source format not supported", "UNSUPPORTED_MEDIA")
	case errors.Is(err, filmstrip.ErrTimeout):
		WriteError(w, http.StatusGatewayTimeout, "frame extraction timed out", "TIMEOUT")
	case errors.Is(err, filmstrip.ErrNetwork):
		WriteError(w, http.StatusBadGateway, "source fetch failed", "NETWORK_ERROR")
	default:
		WriteError(w, http.StatusUnprocessableEntity, "frame extraction failed", "EXTRACTION_FAILED")
	}
}
