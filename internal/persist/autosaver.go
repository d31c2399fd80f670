package persist

import (
	"context"
	"log/slog"
	"time"

	"github.com/cutroom/cutroom-engine/internal/timeline"
)

// Autosaver writes model snapshots to the repository whenever the model's
// revision advances, debounced by the save interval. Saving is
// fire-and-forget: a failed save is logged and retried on the next tick.
type Autosaver struct {
	model    *timeline.Model
	repo     Repository
	interval time.Duration
	logger   *slog.Logger

	lastSaved uint64
}

func NewAutosaver(model *timeline.Model, repo Repository, interval time.Duration, logger *slog.Logger) *Autosaver {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Autosaver{model: model, repo: repo, interval: interval, logger: logger}
}

// Start runs the autosave loop until the context is cancelled, flushing
// one final save on shutdown.
func (a *Autosaver) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.save(context.Background())
			return
		case <-ticker.C:
			a.save(ctx)
		}
	}
}

func (a *Autosaver) save(ctx context.Context) {
	rev := a.model.Revision()
	if rev == a.lastSaved {
		return
	}

	snap := a.model.Snapshot()
	if err := a.repo.SaveSnapshot(ctx, snap); err != nil {
		if a.logger != nil {
			a.logger.Warn("autosave failed", "project_id", snap.Project.ID, "error", err)
		}
		return
	}

	a.lastSaved = rev
	if a.logger != nil {
		a.logger.Debug("project autosaved", "project_id", snap.Project.ID, "revision", rev)
	}
}
