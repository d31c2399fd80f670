package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cutroom/cutroom-engine/internal/api"
	"github.com/cutroom/cutroom-engine/internal/audio"
	"github.com/cutroom/cutroom-engine/internal/config"
	"github.com/cutroom/cutroom-engine/internal/db"
	"github.com/cutroom/cutroom-engine/internal/export"
	"github.com/cutroom/cutroom-engine/internal/filmstrip"
	"github.com/cutroom/cutroom-engine/internal/ingest"
	"github.com/cutroom/cutroom-engine/internal/interaction"
	"github.com/cutroom/cutroom-engine/internal/logging"
	"github.com/cutroom/cutroom-engine/internal/media"
	"github.com/cutroom/cutroom-engine/internal/persist"
	"github.com/cutroom/cutroom-engine/internal/playback"
	"github.com/cutroom/cutroom-engine/internal/resolver"
	"github.com/cutroom/cutroom-engine/internal/store"
	"github.com/cutroom/cutroom-engine/internal/timeline"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	// Optional; developers keep overrides in a local .env.
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.CacheDir(), 0755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting cutroom engine", "version", api.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := persist.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                   CUTROOM ENGINE v0.1.0                   ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	blobStore, err := store.New(cfg.StoreDir(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	model, err := loadOrCreateModel(repo, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize timeline: %w", err)
	}

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Port())
	urlResolver := resolver.New(blobStore, resolver.Options{
		BaseURL:            baseURL,
		GatewayURLTemplate: cfg.GatewayURLTemplate(),
		Policy:             cfg.URLPolicy(),
		AllowedOrigins:     cfg.AllowedOrigins(),
	}, logger)

	model.OnAssetRemoved(func(asset *timeline.MediaAsset) {
		urlResolver.Invalidate(asset.ID)
	})

	filmstrips := filmstrip.NewEngine(
		filmstrip.NewFFmpegExtractor(cfg.FFmpegPath(), logger),
		filmstrip.Options{
			CacheEntries:      cfg.StripCacheEntries(),
			FailureTTL:        cfg.FailureTTL(),
			ExtractionTimeout: cfg.ExtractionTimeout(),
			DefaultFrame: filmstrip.FrameConfig{
				Width:  cfg.FrameWidth(),
				Height: cfg.FrameHeight(),
			},
		},
		logger,
	)
	defer filmstrips.Close()

	mixer := audio.NewEngine(audio.ClockFactory, logger)
	defer mixer.Close()
	model.OnTransport(mixer.SyncToTimeline)

	prober := media.NewFFprobe(cfg.FFprobePath(), logger)
	ingestSvc := ingest.NewService(blobStore, prober, model, repo, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	binder := audio.NewBinder(model, mixer, func(assetID, locator string) (string, bool) {
		res, err := urlResolver.Resolve(ctx, assetID, locator)
		if err != nil {
			return "", false
		}
		return res.URL, true
	}, logger)
	binder.Bind()

	if dir := cfg.WatchDir(); dir != "" {
		watcher, err := ingest.NewWatcher(ingestSvc, dir, logger)
		if err != nil {
			logger.Warn("watch folder unavailable", "error", err, "dir", logging.SanitizePath(dir))
		} else {
			go func() {
				if err := watcher.Start(ctx); err != nil {
					logger.Error("watch folder stopped", "error", err)
				}
			}()
		}
	}

	gestures := interaction.NewController(model, mixer, logger)

	autosaver := persist.NewAutosaver(model, repo, cfg.AutosaveInterval(), logger)
	go autosaver.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Model:          model,
		Repository:     repo,
		Store:          blobStore,
		Ingest:         ingestSvc,
		Resolver:       urlResolver,
		Filmstrips:     filmstrips,
		Audio:          mixer,
		Interaction:    gestures,
		Playback:       playback.NewServer(blobStore, logger),
		Export:         export.NewService(model, blobStore),
		Logger:         logger,
		StartTime:      startTime,
		AllowedOrigins: cfg.AllowedOrigins(),
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	// Final snapshot so edits made since the last autosave tick survive.
	if err := repo.SaveSnapshot(shutdownCtx, model.Snapshot()); err != nil {
		logger.Error("failed to save final snapshot", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// loadOrCreateModel restores the most recently saved project, or starts a
// fresh one with the default track layout.
func loadOrCreateModel(repo persist.Repository, logger *slog.Logger) (*timeline.Model, error) {
	ctx := context.Background()

	if lastID, err := repo.GetConfig(ctx, "last_project_id"); err == nil && lastID != "" {
		snap, err := repo.LoadSnapshot(ctx, lastID)
		if err == nil {
			model := timeline.NewModel(snap.Project, logger)
			model.Restore(snap)
			logger.Info("restored project", "project_id", lastID, "title", snap.Project.Title)
			return model, nil
		}
		logger.Warn("failed to restore last project, starting fresh", "error", err, "project_id", lastID)
	}

	model := timeline.NewModel(timeline.Project{
		Title:       "Untitled Project",
		FrameRate:   30,
		Width:       1920,
		Height:      1080,
		AspectRatio: "16:9",
	}, logger)
	model.AddTrack(timeline.TrackVideo)
	model.AddTrack(timeline.TrackAudio)

	if err := repo.SetConfig(ctx, "last_project_id", model.Project().ID); err != nil {
		return nil, err
	}
	return model, nil
}

func ensureAuthToken(repo persist.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
