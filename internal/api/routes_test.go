package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/cutroom/cutroom-engine/internal/audio"
	"github.com/cutroom/cutroom-engine/internal/db"
	"github.com/cutroom/cutroom-engine/internal/export"
	"github.com/cutroom/cutroom-engine/internal/filmstrip"
	"github.com/cutroom/cutroom-engine/internal/ingest"
	"github.com/cutroom/cutroom-engine/internal/interaction"
	"github.com/cutroom/cutroom-engine/internal/media"
	"github.com/cutroom/cutroom-engine/internal/persist"
	"github.com/cutroom/cutroom-engine/internal/playback"
	"github.com/cutroom/cutroom-engine/internal/resolver"
	"github.com/cutroom/cutroom-engine/internal/store"
	"github.com/cutroom/cutroom-engine/internal/timeline"
)

const testToken = "test-token"

type stubExtractor struct{}

func (stubExtractor) ExtractFrame(ctx context.Context, source string, at float64, width, height int) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

type stubProber struct{}

func (stubProber) Probe(ctx context.Context, path string, mediaType media.MediaType) (*media.ProbeResult, error) {
	return &media.ProbeResult{Type: mediaType, Duration: 10, Width: 640, Height: 360}, nil
}

// newTestHarness wires a full router over real collaborators in a temp dir.
func newTestHarness(t *testing.T) (http.Handler, ServerConfig) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := persist.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), "auth_token", testToken); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}

	st, err := store.New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}

	model := timeline.NewModel(timeline.Project{Title: "api test", FrameRate: 30}, logger)
	model.AddTrack(timeline.TrackVideo)

	urlResolver := resolver.New(st, resolver.Options{
		BaseURL: "http://127.0.0.1:8790",
		Policy:  "strict",
	}, logger)

	strips := filmstrip.NewEngine(stubExtractor{}, filmstrip.Options{}, logger)
	t.Cleanup(strips.Close)

	mixer := audio.NewEngine(audio.ClockFactory, logger)
	t.Cleanup(mixer.Close)

	cfg := ServerConfig{
		Port:        8790,
		Model:       model,
		Repository:  repo,
		Store:       st,
		Ingest:      ingest.NewService(st, stubProber{}, model, repo, logger),
		Resolver:    urlResolver,
		Filmstrips:  strips,
		Audio:       mixer,
		Interaction: interaction.NewController(model, mixer, logger),
		Playback:    playback.NewServer(st, logger),
		Export:      export.NewService(model, st),
		Logger:      logger,
		StartTime:   time.Now(),
	}

	return NewRouter(cfg), cfg
}

func addTestAsset(t *testing.T, cfg ServerConfig, duration float64) *timeline.MediaAsset {
	t.Helper()
	asset := &timeline.MediaAsset{
		ID:       timeline.NewID(),
		Title:    "fixture",
		Type:     media.TypeVideo,
		Duration: duration,
		Locator:  "local:0000000000000000000000000000000000000000000000000000000000000000",
	}
	cfg.Model.AddAsset(asset)
	return asset
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(blob)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestHealth_Unauthenticated(t *testing.T) {
	handler, _ := newTestHarness(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp HealthResponse
	decodeResponse(t, rr, &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.ProjectID == "" {
		t.Error("project_id missing from health response")
	}
}

func TestAuth_Required(t *testing.T) {
	handler, _ := newTestHarness(t)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + testToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/timeline", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestClips_Lifecycle(t *testing.T) {
	handler, cfg := newTestHarness(t)
	asset := addTestAsset(t, cfg, 10)
	trackID := cfg.Model.Tracks()[0].ID

	// Add at an explicit position.
	start := 2.0
	rr := doJSON(t, handler, http.MethodPost, "/v1/clips", AddClipRequest{
		TrackID:   trackID,
		AssetID:   asset.ID,
		StartTime: &start,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add clip status = %d, body %s", rr.Code, rr.Body.String())
	}
	var clip ClipResponse
	decodeResponse(t, rr, &clip)
	if clip.StartTime != 2 || clip.EndTime != 12 {
		t.Fatalf("clip window = [%v, %v), want [2, 12)", clip.StartTime, clip.EndTime)
	}

	// Move.
	rr = doJSON(t, handler, http.MethodPost, "/v1/clips/"+clip.ID+"/move", MoveClipRequest{StartTime: 5})
	if rr.Code != http.StatusOK {
		t.Fatalf("move status = %d, body %s", rr.Code, rr.Body.String())
	}
	decodeResponse(t, rr, &clip)
	if clip.StartTime != 5 || clip.EndTime != 15 {
		t.Fatalf("moved window = [%v, %v), want [5, 15)", clip.StartTime, clip.EndTime)
	}

	// Trim the right edge in.
	rr = doJSON(t, handler, http.MethodPost, "/v1/clips/"+clip.ID+"/resize", ResizeClipRequest{Edge: "right", Boundary: 11})
	if rr.Code != http.StatusOK {
		t.Fatalf("resize status = %d, body %s", rr.Code, rr.Body.String())
	}
	decodeResponse(t, rr, &clip)
	if clip.EndTime != 11 || clip.TrimEnd != 6 {
		t.Fatalf("resized clip = %+v, want EndTime 11 TrimEnd 6", clip)
	}

	// Split in the middle.
	rr = doJSON(t, handler, http.MethodPost, "/v1/clips/"+clip.ID+"/split", SplitClipRequest{AtTime: 8})
	if rr.Code != http.StatusCreated {
		t.Fatalf("split status = %d, body %s", rr.Code, rr.Body.String())
	}
	var split SplitClipResponse
	decodeResponse(t, rr, &split)
	if split.Left.EndTime != 8 || split.Right.StartTime != 8 {
		t.Fatalf("split halves = %+v / %+v, want boundary 8", split.Left, split.Right)
	}

	// Delete one half.
	rr = doJSON(t, handler, http.MethodDelete, "/v1/clips/"+split.Left.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, body %s", rr.Code, rr.Body.String())
	}
	if _, err := cfg.Model.Clip(split.Left.ID); err == nil {
		t.Error("deleted clip still present in model")
	}
}

func TestClips_ErrorMapping(t *testing.T) {
	handler, cfg := newTestHarness(t)
	asset := addTestAsset(t, cfg, 10)
	trackID := cfg.Model.Tracks()[0].ID

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{
			"move unknown clip", http.MethodPost, "/v1/clips/nope/move",
			MoveClipRequest{StartTime: 1}, http.StatusNotFound,
		},
		{
			"add to unknown track", http.MethodPost, "/v1/clips",
			AddClipRequest{TrackID: "nope", AssetID: asset.ID}, http.StatusNotFound,
		},
		{
			"add unknown asset", http.MethodPost, "/v1/clips",
			AddClipRequest{TrackID: trackID, AssetID: "nope"}, http.StatusNotFound,
		},
		{
			"unknown request field", http.MethodPost, "/v1/clips",
			map[string]string{"bogus": "field"}, http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, handler, tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tt.want, rr.Body.String())
			}
			var errResp ErrorResponse
			decodeResponse(t, rr, &errResp)
			if errResp.Error == "" {
				t.Error("error response missing message")
			}
		})
	}
}

func TestTracks_AddAndRemove(t *testing.T) {
	handler, cfg := newTestHarness(t)

	rr := doJSON(t, handler, http.MethodPost, "/v1/tracks", AddTrackRequest{Type: "audio"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add track status = %d, body %s", rr.Code, rr.Body.String())
	}
	var track TrackResponse
	decodeResponse(t, rr, &track)
	if track.Type != "audio" {
		t.Errorf("track type = %q, want audio", track.Type)
	}

	rr = doJSON(t, handler, http.MethodDelete, "/v1/tracks/"+track.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("remove track status = %d, body %s", rr.Code, rr.Body.String())
	}
	if len(cfg.Model.Tracks()) != 1 {
		t.Errorf("tracks remaining = %d, want 1", len(cfg.Model.Tracks()))
	}
}

func TestBlobs_ServedWithoutAuth(t *testing.T) {
	handler, cfg := newTestHarness(t)

	payload := []byte("raw media bytes")
	id, err := cfg.Store.Store(payload)
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/blobs/"+id, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !bytes.Equal(rr.Body.Bytes(), payload) {
		t.Error("blob body does not match stored payload")
	}
	if rr.Header().Get("Accept-Ranges") != "bytes" {
		t.Error("Accept-Ranges header missing")
	}
}

func TestBlobs_RangeRequest(t *testing.T) {
	handler, cfg := newTestHarness(t)

	id, err := cfg.Store.Store([]byte("0123456789"))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/blobs/"+id, nil)
	req.Header.Set("Range", "bytes=3-6")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusPartialContent)
	}
	if rr.Body.String() != "3456" {
		t.Errorf("body = %q, want %q", rr.Body.String(), "3456")
	}
}

func TestUpload_RejectsUnknownType(t *testing.T) {
	handler, _ := newTestHarness(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.xyz")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	fmt.Fprint(part, "not media")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/assets", &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want %d (body %s)", rr.Code, http.StatusUnsupportedMediaType, rr.Body.String())
	}
}

func TestUpload_IngestsVideo(t *testing.T) {
	handler, cfg := newTestHarness(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "holiday.mp4")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	fmt.Fprint(part, "fake mp4 payload")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/assets", &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp AssetResponse
	decodeResponse(t, rr, &resp)
	if resp.Type != "video" {
		t.Errorf("type = %q, want video", resp.Type)
	}
	if resp.Duration != 10 {
		t.Errorf("duration = %v, want 10 from probe", resp.Duration)
	}
	if len(cfg.Model.Assets()) != 1 {
		t.Errorf("model has %d assets, want 1", len(cfg.Model.Assets()))
	}
}

func TestTransport_RoundTrip(t *testing.T) {
	handler, _ := newTestHarness(t)

	rr := doJSON(t, handler, http.MethodPost, "/v1/transport", TransportRequest{Time: 3.5, Playing: true})
	if rr.Code != http.StatusOK {
		t.Fatalf("set transport status = %d, body %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodGet, "/v1/transport", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get transport status = %d", rr.Code)
	}
	var resp TransportResponse
	decodeResponse(t, rr, &resp)
	if resp.Time != 3.5 || !resp.Playing {
		t.Errorf("transport = %+v, want time 3.5 playing", resp)
	}
}

func TestMasterAudio_RoundTrip(t *testing.T) {
	handler, _ := newTestHarness(t)

	volume := 0.5
	rr := doJSON(t, handler, http.MethodPost, "/v1/audio/master", MasterAudioRequest{Volume: &volume})
	if rr.Code != http.StatusOK {
		t.Fatalf("set master status = %d, body %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodGet, "/v1/audio/master", nil)
	var resp MasterAudioResponse
	decodeResponse(t, rr, &resp)
	if resp.Volume != 0.5 {
		t.Errorf("master volume = %v, want 0.5", resp.Volume)
	}
}

func TestProjects_SaveAndLoad(t *testing.T) {
	handler, cfg := newTestHarness(t)
	asset := addTestAsset(t, cfg, 10)
	trackID := cfg.Model.Tracks()[0].ID
	start := 0.0

	rr := doJSON(t, handler, http.MethodPost, "/v1/clips", AddClipRequest{
		TrackID: trackID, AssetID: asset.ID, StartTime: &start,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add clip status = %d", rr.Code)
	}

	rr = doJSON(t, handler, http.MethodPost, "/v1/projects/save", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("save status = %d, body %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodGet, "/v1/projects", nil)
	var projects ProjectsResponse
	decodeResponse(t, rr, &projects)
	if len(projects.Projects) != 1 {
		t.Fatalf("projects = %d, want 1", len(projects.Projects))
	}

	projectID := projects.Projects[0].ID
	rr = doJSON(t, handler, http.MethodPost, "/v1/projects/"+projectID+"/load", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("load status = %d, body %s", rr.Code, rr.Body.String())
	}

	tracks := cfg.Model.Tracks()
	if len(tracks) != 1 || len(tracks[0].Clips) != 1 {
		t.Errorf("restored model has %d tracks, want one track with one clip", len(tracks))
	}
}

func TestInteraction_DragGestureCommitsMove(t *testing.T) {
	handler, cfg := newTestHarness(t)
	asset := addTestAsset(t, cfg, 10)
	trackID := cfg.Model.Tracks()[0].ID
	clip, err := cfg.Model.AddClip(trackID, asset.ID, 2, 10)
	if err != nil {
		t.Fatalf("AddClip() error = %v", err)
	}

	rr := doJSON(t, handler, http.MethodPost, "/v1/interaction/drag", DragGestureRequest{
		Phase: "begin", ClipID: clip.ID, PointerX: 100,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("drag begin status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	// 100px at zoom 1 is dampened to 0.8s and snapped to the quarter grid.
	rr = doJSON(t, handler, http.MethodPost, "/v1/interaction/drag", DragGestureRequest{
		Phase: "move", ClipID: clip.ID, PointerX: 200,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("drag move status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, handler, http.MethodPost, "/v1/interaction/drag", DragGestureRequest{
		Phase: "end", ClipID: clip.ID,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("drag end status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	moved, err := cfg.Model.Clip(clip.ID)
	if err != nil {
		t.Fatalf("Clip() error = %v", err)
	}
	if moved.StartTime != 2.75 {
		t.Errorf("StartTime after drag = %v, want 2.75", moved.StartTime)
	}

	var state InteractionStateResponse
	rr = doJSON(t, handler, http.MethodGet, "/v1/interaction", nil)
	decodeResponse(t, rr, &state)
	if state.Selected != clip.ID {
		t.Errorf("Selected = %q, want dragged clip %q", state.Selected, clip.ID)
	}
}

func TestInteraction_DragUnknownClip(t *testing.T) {
	handler, _ := newTestHarness(t)

	rr := doJSON(t, handler, http.MethodPost, "/v1/interaction/drag", DragGestureRequest{
		Phase: "begin", ClipID: "nope", PointerX: 0,
	})
	if rr.Code != http.StatusNotFound {
		t.Errorf("drag begin on unknown clip status = %d, want 404", rr.Code)
	}
}

func TestInteraction_ScrubSetsTransport(t *testing.T) {
	handler, cfg := newTestHarness(t)

	rr := doJSON(t, handler, http.MethodPost, "/v1/interaction/scrub", ScrubRequest{PointerX: 116})
	if rr.Code != http.StatusOK {
		t.Fatalf("scrub status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	var resp TransportResponse
	decodeResponse(t, rr, &resp)
	if resp.Time != 1.0 {
		t.Errorf("scrub time = %v, want 1.0", resp.Time)
	}
	if now, _ := cfg.Model.Transport(); now != 1.0 {
		t.Errorf("model transport time = %v, want 1.0", now)
	}
}

func TestInteraction_ViewportRoundTrip(t *testing.T) {
	handler, _ := newTestHarness(t)

	rr := doJSON(t, handler, http.MethodPost, "/v1/interaction/viewport", ViewportRequest{Zoom: 2, Offset: 50})
	if rr.Code != http.StatusOK {
		t.Fatalf("viewport status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	var state InteractionStateResponse
	rr = doJSON(t, handler, http.MethodGet, "/v1/interaction", nil)
	decodeResponse(t, rr, &state)
	if state.Zoom != 2 || state.Offset != 50 {
		t.Errorf("viewport = (%v, %v), want (2, 50)", state.Zoom, state.Offset)
	}
}

func TestInteraction_DropAssetSmartPlacement(t *testing.T) {
	handler, cfg := newTestHarness(t)
	asset := addTestAsset(t, cfg, 10)
	trackID := cfg.Model.Tracks()[0].ID
	if _, err := cfg.Model.AddClip(trackID, asset.ID, 0, 10); err != nil {
		t.Fatalf("AddClip() error = %v", err)
	}

	// No explicit time: the drop slides past the occupied region.
	rr := doJSON(t, handler, http.MethodPost, "/v1/interaction/drop", DropAssetRequest{
		AssetID: asset.ID, TrackID: trackID,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("drop status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	var clip ClipResponse
	decodeResponse(t, rr, &clip)
	if clip.StartTime != 10 {
		t.Errorf("smart drop StartTime = %v, want 10", clip.StartTime)
	}

	at := 25.0
	rr = doJSON(t, handler, http.MethodPost, "/v1/interaction/drop", DropAssetRequest{
		AssetID: asset.ID, TrackID: trackID, Time: &at,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("explicit drop status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	decodeResponse(t, rr, &clip)
	if clip.StartTime != 25 {
		t.Errorf("explicit drop StartTime = %v, want 25", clip.StartTime)
	}
}

func TestInteraction_KeyCommands(t *testing.T) {
	handler, cfg := newTestHarness(t)

	rr := doJSON(t, handler, http.MethodPost, "/v1/interaction/key", KeyRequest{Command: "play_pause"})
	if rr.Code != http.StatusOK {
		t.Fatalf("key status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if _, playing := cfg.Model.Transport(); !playing {
		t.Error("transport playing = false after play_pause, want true")
	}

	rr = doJSON(t, handler, http.MethodPost, "/v1/interaction/key", KeyRequest{Command: "open_pod_bay_doors"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown command status = %d, want 400", rr.Code)
	}

	// Text-input focus suppresses transport keys.
	rr = doJSON(t, handler, http.MethodPost, "/v1/interaction/focus", FocusRequest{TextInput: true})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("focus status = %d, want 204: %s", rr.Code, rr.Body.String())
	}
	doJSON(t, handler, http.MethodPost, "/v1/interaction/key", KeyRequest{Command: "play_pause"})
	if _, playing := cfg.Model.Transport(); !playing {
		t.Error("transport toggled while a text input had focus")
	}
}
