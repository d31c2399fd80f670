package filmstrip

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"
)

// fakeExtractor serves solid-color frames, failing at timestamps listed in
// failAt and counting how many extractions actually ran.
type fakeExtractor struct {
	mu     sync.Mutex
	calls  int
	failAt map[float64]error
	err    error
}

func (f *fakeExtractor) ExtractFrame(ctx context.Context, source string, at float64, w, h int) (image.Image, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	for t, err := range f.failAt {
		if at >= t && at < t+0.5 {
			return nil, err
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return img, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testOptions() Options {
	return Options{
		CacheEntries:      10,
		FailureTTL:        time.Minute,
		ExtractionTimeout: time.Second,
		DefaultFrame:      FrameConfig{Width: 8, Height: 4, Quality: 70, Layout: LayoutHorizontal},
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestEngine_GeneratesStrip(t *testing.T) {
	ex := &fakeExtractor{}
	e := NewEngine(ex, testOptions(), nil)
	defer e.Close()

	e.Request(Request{
		ClipID:          "clip1",
		Source:          "/store/ab/abcd",
		SegmentStart:    0,
		SegmentDuration: 10,
		DisplayWidth:    40,
	})

	waitFor(t, func() bool { return e.Strip("clip1") != nil }, "strip never generated")

	if err := e.Err("clip1"); err != nil {
		t.Errorf("Err() = %v after success", err)
	}
	if e.IsLoading("clip1") {
		t.Error("still loading after completion")
	}

	data := e.Strip("clip1")
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("strip is not a JPEG")
	}
}

func TestEngine_DuplicateRequestsCoalesce(t *testing.T) {
	ex := &fakeExtractor{}
	e := NewEngine(ex, testOptions(), nil)
	defer e.Close()

	req := Request{
		ClipID:          "clip1",
		Source:          "/store/ab/abcd",
		SegmentStart:    0,
		SegmentDuration: 10,
		DisplayWidth:    40,
	}

	e.Request(req)
	waitFor(t, func() bool { return e.Strip("clip1") != nil }, "strip never generated")
	calls := ex.callCount()

	// The same request again is served from cache without new extractions.
	e.Request(req)
	time.Sleep(30 * time.Millisecond)
	if got := ex.callCount(); got != calls {
		t.Errorf("cached request re-extracted: %d -> %d calls", calls, got)
	}
}

func TestEngine_ChangedSegmentRegenerates(t *testing.T) {
	ex := &fakeExtractor{}
	e := NewEngine(ex, testOptions(), nil)
	defer e.Close()

	req := Request{
		ClipID:          "clip1",
		Source:          "/store/ab/abcd",
		SegmentStart:    0,
		SegmentDuration: 10,
		DisplayWidth:    40,
	}
	e.Request(req)
	waitFor(t, func() bool { return e.Strip("clip1") != nil }, "strip never generated")
	calls := ex.callCount()

	// Resizing the clip shifts its trim window; a new strip is required.
	req.SegmentStart = 2
	req.SegmentDuration = 8
	e.Request(req)
	waitFor(t, func() bool { return ex.callCount() > calls }, "trim change did not trigger regeneration")
}

func TestEngine_FailureCachedWithCooldown(t *testing.T) {
	ex := &fakeExtractor{err: fmt.Errorf("%w: connection refused", ErrNetwork)}
	e := NewEngine(ex, testOptions(), nil)
	defer e.Close()

	req := Request{
		ClipID:          "clip1",
		Source:          "http://gateway/clip",
		SegmentStart:    0,
		SegmentDuration: 10,
		DisplayWidth:    40,
	}
	e.Request(req)

	waitFor(t, func() bool { return e.Err("clip1") != nil }, "failure never recorded")
	if !errors.Is(e.Err("clip1"), ErrNetwork) {
		t.Errorf("Err() = %v, want ErrNetwork", e.Err("clip1"))
	}
	calls := ex.callCount()

	// During the cooldown the engine answers from the failure cache.
	e.Request(req)
	time.Sleep(30 * time.Millisecond)
	if got := ex.callCount(); got != calls {
		t.Errorf("failure retried inside cooldown: %d -> %d calls", calls, got)
	}
}

func TestEngine_PartialFramesStillComposite(t *testing.T) {
	// Segment [0, 10) at DisplayWidth 40 with 8px frames samples 5 frames.
	// Fail two of them; the rest must still produce a strip.
	ex := &fakeExtractor{failAt: map[float64]error{
		2: fmt.Errorf("%w: bad packet", ErrDecode),
		4: fmt.Errorf("%w: bad packet", ErrDecode),
	}}
	e := NewEngine(ex, testOptions(), nil)
	defer e.Close()

	e.Request(Request{
		ClipID:          "clip1",
		Source:          "/store/ab/abcd",
		SegmentStart:    0,
		SegmentDuration: 10,
		DisplayWidth:    40,
	})

	waitFor(t, func() bool { return e.Strip("clip1") != nil }, "partial strip never generated")
}

func TestEngine_SecurityErrorAbortsSegment(t *testing.T) {
	ex := &fakeExtractor{err: fmt.Errorf("%w: cross-origin", ErrSecurityBlocked)}
	e := NewEngine(ex, testOptions(), nil)
	defer e.Close()

	e.Request(Request{
		ClipID:          "clip1",
		Source:          "http://other/clip",
		SegmentStart:    0,
		SegmentDuration: 10,
		DisplayWidth:    400,
	})

	waitFor(t, func() bool { return e.Err("clip1") != nil }, "failure never recorded")

	// A security block on the first frame must not burn through the rest
	// of the sample points.
	if got := ex.callCount(); got != 1 {
		t.Errorf("extractor called %d times after security block, want 1", got)
	}
}

func TestEngine_CancelDropsState(t *testing.T) {
	ex := &fakeExtractor{}
	e := NewEngine(ex, testOptions(), nil)
	defer e.Close()

	e.Request(Request{
		ClipID:          "clip1",
		Source:          "/store/ab/abcd",
		SegmentStart:    0,
		SegmentDuration: 10,
		DisplayWidth:    40,
	})
	waitFor(t, func() bool { return e.Strip("clip1") != nil }, "strip never generated")

	e.Cancel("clip1")

	if e.Strip("clip1") != nil {
		t.Error("strip still attributed to cancelled clip")
	}
	if e.IsLoading("clip1") {
		t.Error("cancelled clip reported as loading")
	}
	if e.Err("clip1") != nil {
		t.Error("cancelled clip retains an error")
	}
}

func TestComposite_Layouts(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 8, 4))
	frames := []image.Image{frame, frame, frame, frame}

	for _, layout := range []Layout{LayoutHorizontal, LayoutVertical, LayoutGrid} {
		data, err := composite(frames, 8, 4, 70, layout)
		if err != nil {
			t.Errorf("composite(%s) error: %v", layout, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("composite(%s) produced no data", layout)
		}
	}

	if _, err := composite(nil, 8, 4, 70, LayoutHorizontal); !errors.Is(err, ErrDecode) {
		t.Errorf("empty composite error = %v, want ErrDecode", err)
	}
}

// gatedExtractor blocks extraction for one source until released, so tests
// can pile up queued work behind a busy worker.
type gatedExtractor struct {
	fakeExtractor
	blockSource string
	started     chan struct{}
	release     chan struct{}
	once        sync.Once
}

func (g *gatedExtractor) ExtractFrame(ctx context.Context, source string, at float64, w, h int) (image.Image, error) {
	if source == g.blockSource {
		g.once.Do(func() { close(g.started) })
		<-g.release
	}
	return g.fakeExtractor.ExtractFrame(ctx, source, at, w, h)
}

func TestEngine_SupersededRequestsDoNotStarveQueue(t *testing.T) {
	ex := &gatedExtractor{
		blockSource: "/store/cc/busy",
		started:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	e := NewEngine(ex, testOptions(), nil)
	defer e.Close()

	e.Request(Request{ClipID: "busy", Source: "/store/cc/busy", SegmentDuration: 10, DisplayWidth: 40})
	<-ex.started

	// Re-requesting at changing widths supersedes the queued entries,
	// leaving stale jobs ahead of the final one.
	for _, w := range []int{24, 32, 40} {
		e.Request(Request{ClipID: "a", Source: "/store/aa/aaaa", SegmentDuration: 10, DisplayWidth: w})
	}
	e.Request(Request{ClipID: "b", Source: "/store/bb/bbbb", SegmentDuration: 10, DisplayWidth: 40})

	close(ex.release)

	waitFor(t, func() bool { return e.Strip("a") != nil }, "final request for clip a never generated")
	waitFor(t, func() bool { return e.Strip("b") != nil }, "clip b never generated behind superseded entries")
	if e.IsLoading("a") || e.IsLoading("b") {
		t.Error("clips still loading after strips were produced")
	}
}

func TestEngine_EvictedStripRegenerates(t *testing.T) {
	ex := &fakeExtractor{}
	opts := testOptions()
	opts.CacheEntries = 1
	e := NewEngine(ex, opts, nil)
	defer e.Close()

	req := Request{ClipID: "a", Source: "/store/aa/aaaa", SegmentDuration: 10, DisplayWidth: 40}
	e.Request(req)
	waitFor(t, func() bool { return e.Strip("a") != nil }, "first strip never generated")

	e.Request(Request{ClipID: "b", Source: "/store/bb/bbbb", SegmentDuration: 10, DisplayWidth: 40})
	waitFor(t, func() bool { return e.Strip("b") != nil }, "second strip never generated")
	if e.Strip("a") != nil {
		t.Fatal("first strip should have been evicted")
	}

	e.Request(req)
	waitFor(t, func() bool { return e.Strip("a") != nil }, "evicted strip never regenerated")
	if err := e.Err("a"); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}
