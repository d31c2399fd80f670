package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cutroom/cutroom-engine/internal/media"
	"github.com/cutroom/cutroom-engine/internal/resolver"
)

// maxUploadBytes caps a single asset upload at 2 GiB.
const maxUploadBytes = 2 << 30

func uploadAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

		file, header, err := r.FormFile("file")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "multipart field 'file' is required", "BAD_REQUEST")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "failed to read upload", "BAD_REQUEST")
			return
		}

		asset, err := cfg.Ingest.IngestBytes(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
		if err != nil {
			if errors.Is(err, media.ErrUnknownMediaType) {
				WriteError(w, http.StatusUnsupportedMediaType, "unsupported media type", "UNSUPPORTED_MEDIA")
				return
			}
			cfg.Logger.Error("asset ingest failed", "error", err, "filename", header.Filename)
			WriteError(w, http.StatusInternalServerError, "failed to ingest asset", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusCreated, AssetToResponse(asset))
	}
}

func listAssetsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assets := cfg.Model.Assets()
		resp := AssetsResponse{Assets: make([]AssetResponse, len(assets))}
		for i, a := range assets {
			resp.Assets[i] = AssetToResponse(a)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func assetURLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assetID := chi.URLParam(r, "id")

		asset, err := cfg.Model.Asset(assetID)
		if err != nil {
			writeTimelineError(w, err)
			return
		}

		res, err := cfg.Resolver.Resolve(r.Context(), asset.ID, asset.Locator)
		if err != nil {
			if errors.Is(err, resolver.ErrSecurityBlocked) {
				WriteError(w, http.StatusForbidden, "locator blocked by security policy", "SECURITY_BLOCKED")
				return
			}
			WriteError(w, http.StatusBadGateway, "failed to resolve asset", "RESOLUTION_FAILED")
			return
		}

		WriteJSON(w, http.StatusOK, AssetURLResponse{URL: res.URL, Anonymous: res.Anonymous})
	}
}

func deleteAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assetID := chi.URLParam(r, "id")

		asset, err := cfg.Model.Asset(assetID)
		if err != nil {
			writeTimelineError(w, err)
			return
		}

		// Cascades clip removal and fires asset-removed callbacks.
		if err := cfg.Model.RemoveAsset(assetID); err != nil {
			writeTimelineError(w, err)
			return
		}

		cfg.Resolver.Invalidate(assetID)

		if err := cfg.Repository.DeleteAsset(r.Context(), assetID); err != nil {
			cfg.Logger.Warn("failed to delete persisted asset", "error", err, "asset_id", assetID)
		}

		if strings.HasPrefix(asset.Locator, resolver.LocalScheme) {
			objectID := strings.TrimPrefix(asset.Locator, resolver.LocalScheme)
			if !objectInUse(cfg, objectID, assetID) {
				if err := cfg.Store.Delete(objectID); err != nil {
					cfg.Logger.Warn("failed to delete stored object", "error", err, "object_id", objectID)
				}
				if err := cfg.Repository.DeleteObject(r.Context(), objectID); err != nil {
					cfg.Logger.Warn("failed to delete object record", "error", err, "object_id", objectID)
				}
			}
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// objectInUse reports whether another asset still references the stored
// object. Content addressing de-duplicates identical uploads, so two assets
// can legitimately share one blob.
func objectInUse(cfg ServerConfig, objectID, exceptAssetID string) bool {
	locator := resolver.LocalScheme + objectID
	for _, a := range cfg.Model.Assets() {
		if a.ID != exceptAssetID && a.Locator == locator {
			return true
		}
	}
	return false
}
