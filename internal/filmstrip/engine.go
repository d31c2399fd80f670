// Package filmstrip generates the composited scrubbing thumbnails shown on
// timeline clips. A single worker drains a priority queue so at most one
// extraction is in flight at a time; successful strips live in a bounded
// LRU and failures are cached with a cooldown before retry.
package filmstrip

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"
)

// Priority orders queued requests. Selected clips preempt background work.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// FrameConfig controls the dimensions, encoding, and layout of one strip.
type FrameConfig struct {
	Width   int
	Height  int
	Quality int
	Layout  Layout
}

// Request asks for a filmstrip covering the visible (trimmed) segment of a
// clip's source. Fire-and-forget; observe results via Strip and IsLoading.
type Request struct {
	ClipID          string
	Source          string
	SegmentStart    float64
	SegmentDuration float64
	DisplayWidth    int
	Priority        Priority
	Config          FrameConfig
}

type job struct {
	req   Request
	key   string
	count int
}

// Options configures the engine.
type Options struct {
	CacheEntries      int
	FailureTTL        time.Duration
	ExtractionTimeout time.Duration
	DefaultFrame      FrameConfig
}

type Engine struct {
	extractor Extractor
	logger    *slog.Logger
	timeout   time.Duration
	defaults  FrameConfig

	cache    *stripCache
	failures *failureCache

	mu       sync.Mutex
	queues   [3][]*job
	queued   map[string]string // clip id -> queued cache key
	inflight string            // clip id currently extracting, "" if idle
	byClip   map[string]string // clip id -> cache key of last success
	lastErr  map[string]error  // clip id -> last failure

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewEngine(extractor Extractor, opts Options, logger *slog.Logger) *Engine {
	if opts.ExtractionTimeout <= 0 {
		opts.ExtractionTimeout = 20 * time.Second
	}
	if opts.DefaultFrame.Width <= 0 {
		opts.DefaultFrame.Width = 48
	}
	if opts.DefaultFrame.Height <= 0 {
		opts.DefaultFrame.Height = 27
	}
	if opts.DefaultFrame.Layout == "" {
		opts.DefaultFrame.Layout = LayoutHorizontal
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		extractor: extractor,
		logger:    logger,
		timeout:   opts.ExtractionTimeout,
		defaults:  opts.DefaultFrame,
		cache:     newStripCache(opts.CacheEntries),
		failures:  newFailureCache(opts.FailureTTL),
		queued:    make(map[string]string),
		byClip:    make(map[string]string),
		lastErr:   make(map[string]error),
		wake:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go e.worker()
	return e
}

// Close stops the worker. Queued requests are dropped.
func (e *Engine) Close() {
	e.cancel()
	<-e.done
}

// Request enqueues filmstrip generation. Duplicate requests for a clip
// already queued, in flight, or cached under the same config are no-ops.
func (e *Engine) Request(req Request) {
	if req.Config.Width <= 0 {
		req.Config.Width = e.defaults.Width
	}
	if req.Config.Height <= 0 {
		req.Config.Height = e.defaults.Height
	}
	if req.Config.Layout == "" {
		req.Config.Layout = e.defaults.Layout
	}

	count := frameCount(req.DisplayWidth, req.Config.Width)
	key := cacheKey(req, count)

	if err, ok := e.failures.active(key); ok {
		e.mu.Lock()
		e.lastErr[req.ClipID] = err
		e.mu.Unlock()
		return
	}

	e.mu.Lock()
	if _, ok := e.cache.get(key); ok {
		e.byClip[req.ClipID] = key
		delete(e.lastErr, req.ClipID)
		e.mu.Unlock()
		return
	}
	if e.inflight == req.ClipID || e.queued[req.ClipID] == key {
		e.mu.Unlock()
		return
	}
	// byClip may still point at a strip the LRU has evicted, so it is not
	// consulted here; the cache lookup above is the only delivered check.

	e.queued[req.ClipID] = key
	e.queues[req.Priority] = append(e.queues[req.Priority], &job{req: req, key: key, count: count})
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Strip returns the latest composited strip for a clip, or nil.
func (e *Engine) Strip(clipID string) []byte {
	e.mu.Lock()
	key, ok := e.byClip[clipID]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	data, ok := e.cache.get(key)
	if !ok {
		return nil
	}
	return data
}

// IsLoading reports whether a request for the clip is queued or in flight.
func (e *Engine) IsLoading(clipID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight == clipID {
		return true
	}
	_, queued := e.queued[clipID]
	return queued
}

// Err returns the clip's last extraction failure, if any.
func (e *Engine) Err(clipID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr[clipID]
}

// Cancel drops any queued request for a clip, typically because the clip
// was removed before processing. An in-flight extraction is left to finish.
func (e *Engine) Cancel(clipID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.queued, clipID)
	delete(e.byClip, clipID)
	delete(e.lastErr, clipID)
	for p := range e.queues {
		kept := e.queues[p][:0]
		for _, j := range e.queues[p] {
			if j.req.ClipID != clipID {
				kept = append(kept, j)
			}
		}
		e.queues[p] = kept
	}
}

func (e *Engine) worker() {
	defer close(e.done)
	for {
		j := e.next()
		if j == nil {
			select {
			case <-e.ctx.Done():
				return
			case <-e.wake:
				continue
			}
		}
		e.process(j)
	}
}

// next pops the highest-priority queued job, FIFO within a level.
func (e *Engine) next() *job {
	e.mu.Lock()
	defer e.mu.Unlock()
	for p := int(PriorityHigh); p >= int(PriorityLow); p-- {
		for len(e.queues[p]) > 0 {
			j := e.queues[p][0]
			e.queues[p] = e.queues[p][1:]
			// Dropped by Cancel or superseded by a newer request while
			// queued. Keep draining this level so stale entries never
			// shadow a live job behind them.
			if e.queued[j.req.ClipID] != j.key {
				continue
			}
			delete(e.queued, j.req.ClipID)
			e.inflight = j.req.ClipID
			return j
		}
	}
	return nil
}

func (e *Engine) process(j *job) {
	defer func() {
		e.mu.Lock()
		e.inflight = ""
		e.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(e.ctx, e.timeout)
	defer cancel()

	frames, err := e.extractSegment(ctx, j)
	if len(frames) == 0 {
		if err == nil {
			err = ErrDecode
		}
		e.failures.put(j.key, err)
		e.mu.Lock()
		e.lastErr[j.req.ClipID] = err
		e.mu.Unlock()
		if e.logger != nil {
			e.logger.Warn("filmstrip extraction failed",
				"clip_id", j.req.ClipID, "source", j.req.Source, "error", err)
		}
		return
	}

	// Partial frame sets still composite; progress is never discarded as
	// long as at least one frame succeeded.
	data, cerr := composite(frames, j.req.Config.Width, j.req.Config.Height, j.req.Config.Quality, j.req.Config.Layout)
	if cerr != nil {
		e.failures.put(j.key, cerr)
		e.mu.Lock()
		e.lastErr[j.req.ClipID] = cerr
		e.mu.Unlock()
		return
	}

	e.cache.put(j.key, data)
	e.mu.Lock()
	e.byClip[j.req.ClipID] = j.key
	delete(e.lastErr, j.req.ClipID)
	e.mu.Unlock()

	if e.logger != nil {
		e.logger.Debug("filmstrip generated",
			"clip_id", j.req.ClipID, "frames", len(frames), "bytes", len(data))
	}
}

// extractSegment samples evenly spaced timestamps across the visible
// segment of the source, keeping whatever frames succeed. The first sample
// sits at a small positive offset to dodge black first frames.
func (e *Engine) extractSegment(ctx context.Context, j *job) ([]image.Image, error) {
	var (
		frames  []image.Image
		lastErr error
	)
	step := j.req.SegmentDuration / float64(j.count)
	for i := 0; i < j.count; i++ {
		at := j.req.SegmentStart + float64(i)*step
		if i == 0 {
			at += firstFrameOffset
			if j.req.SegmentDuration > 0 && at >= j.req.SegmentStart+j.req.SegmentDuration {
				at = j.req.SegmentStart
			}
		}

		frame, err := e.extractor.ExtractFrame(ctx, j.req.Source, at, j.req.Config.Width, j.req.Config.Height)
		if err != nil {
			lastErr = err
			if errors.Is(err, ErrTimeout) || errors.Is(err, ErrAborted) || errors.Is(err, ErrSecurityBlocked) {
				break
			}
			continue
		}
		frames = append(frames, frame)
	}
	return frames, lastErr
}

// Thumbnail extracts a single representative frame, the fallback when full
// filmstrip generation fails outright.
func (e *Engine) Thumbnail(ctx context.Context, source string, at float64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	frame, err := e.extractor.ExtractFrame(ctx, source, at, e.defaults.Width*4, e.defaults.Height*4)
	if err != nil {
		return nil, err
	}
	return composite([]image.Image{frame}, e.defaults.Width*4, e.defaults.Height*4, 80, LayoutHorizontal)
}

func frameCount(displayWidth, frameWidth int) int {
	if frameWidth <= 0 {
		frameWidth = 48
	}
	count := displayWidth / frameWidth
	if count < 3 {
		count = 3
	}
	if count > 60 {
		count = 60
	}
	return count
}

func cacheKey(req Request, count int) string {
	return fmt.Sprintf("%s|%dx%d|n%d|q%d|%s|s%.3f|d%.3f",
		req.Source, req.Config.Width, req.Config.Height, count,
		req.Config.Quality, req.Config.Layout,
		req.SegmentStart, req.SegmentDuration)
}
