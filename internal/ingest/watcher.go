package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cutroom/cutroom-engine/internal/media"
)

// debounceDelay lets a file finish copying before ingestion starts.
const debounceDelay = 500 * time.Millisecond

// Watcher auto-ingests media files dropped into a watch folder.
type Watcher struct {
	service *Service
	dir     string
	logger  *slog.Logger

	fs *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewWatcher(service *Service, dir string, logger *slog.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		service: service,
		dir:     dir,
		logger:  logger,
		fs:      fs,
		timers:  make(map[string]*time.Timer),
	}, nil
}

// Start watches the folder tree until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.dir); err != nil {
		w.fs.Close()
		return err
	}
	if w.logger != nil {
		w.logger.Info("watch folder active", "dir", w.dir)
	}

	go func() {
		defer w.fs.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.fs.Events:
				if !ok {
					return
				}
				w.handleEvent(ctx, event)
			case err, ok := <-w.fs.Errors:
				if !ok {
					return
				}
				if w.logger != nil {
					w.logger.Error("watch folder error", "error", err)
				}
			}
		}
	}()
	return nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return w.fs.Add(path)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".part") {
		return
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.fs.Add(event.Name)
			return
		}
	}

	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}
	if !media.IsMediaFile(event.Name) {
		return
	}

	// Debounce: writes arrive in bursts while the file is still copying.
	w.mu.Lock()
	if t, ok := w.timers[event.Name]; ok {
		t.Stop()
	}
	path := event.Name
	w.timers[path] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if _, err := w.service.IngestFile(ctx, path); err != nil && w.logger != nil {
			w.logger.Warn("watch folder ingest failed", "path", path, "error", err)
		}
	})
	w.mu.Unlock()
}
