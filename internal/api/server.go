package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cutroom/cutroom-engine/internal/audio"
	"github.com/cutroom/cutroom-engine/internal/export"
	"github.com/cutroom/cutroom-engine/internal/filmstrip"
	"github.com/cutroom/cutroom-engine/internal/ingest"
	"github.com/cutroom/cutroom-engine/internal/interaction"
	"github.com/cutroom/cutroom-engine/internal/persist"
	"github.com/cutroom/cutroom-engine/internal/playback"
	"github.com/cutroom/cutroom-engine/internal/resolver"
	"github.com/cutroom/cutroom-engine/internal/store"
	"github.com/cutroom/cutroom-engine/internal/timeline"
)

const Version = "0.1.0"

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	Model          *timeline.Model
	Repository     persist.Repository
	Store          *store.Store
	Ingest         *ingest.Service
	Resolver       *resolver.Resolver
	Filmstrips     *filmstrip.Engine
	Audio          *audio.Engine
	Interaction    *interaction.Controller
	Playback       *playback.Server
	Export         *export.Service
	Logger         *slog.Logger
	StartTime      time.Time
	AllowedOrigins []string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeTimelineError maps model sentinel errors onto HTTP statuses.
func writeTimelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, timeline.ErrTrackNotFound),
		errors.Is(err, timeline.ErrClipNotFound),
		errors.Is(err, timeline.ErrAssetNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, timeline.ErrAssetMissing):
		WriteError(w, http.StatusConflict, err.Error(), "ASSET_MISSING")
	case errors.Is(err, timeline.ErrIncompatibleAsset):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "INCOMPATIBLE_ASSET")
	case errors.Is(err, timeline.ErrInvalidEdit):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_EDIT")
	default:
		WriteError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
	}
}
