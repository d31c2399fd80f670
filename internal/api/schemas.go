package api

import (
	"time"

	"github.com/cutroom/cutroom-engine/internal/timeline"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	UptimeS   int64  `json:"uptime_s"`
	ProjectID string `json:"project_id"`
}

type ProjectResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	FrameRate   float64 `json:"frame_rate"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio string  `json:"aspect_ratio"`
	CreatedAt   string  `json:"created_at"`
}

type ProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type AddTrackRequest struct {
	Type string `json:"type"`
}

type UpdateTrackRequest struct {
	Volume  *float64 `json:"volume,omitempty"`
	Opacity *float64 `json:"opacity,omitempty"`
	Blend   *string  `json:"blend,omitempty"`
}

type TrackResponse struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position int            `json:"position"`
	Volume   float64        `json:"volume"`
	Opacity  float64        `json:"opacity"`
	Blend    string         `json:"blend,omitempty"`
	Clips    []ClipResponse `json:"clips"`
}

type TimelineResponse struct {
	Project ProjectResponse `json:"project"`
	Tracks  []TrackResponse `json:"tracks"`
	Assets  []AssetResponse `json:"assets"`
}

type AddClipRequest struct {
	TrackID   string   `json:"track_id"`
	AssetID   string   `json:"asset_id"`
	StartTime *float64 `json:"start_time,omitempty"`
	Duration  *float64 `json:"duration,omitempty"`
	Playhead  float64  `json:"playhead"`
}

type MoveClipRequest struct {
	StartTime float64 `json:"start_time"`
}

type ResizeClipRequest struct {
	Edge     string  `json:"edge"`
	Boundary float64 `json:"boundary"`
}

type SplitClipRequest struct {
	AtTime float64 `json:"at_time"`
}

type UpdateClipRequest struct {
	Volume *float64 `json:"volume,omitempty"`
	Muted  *bool    `json:"muted,omitempty"`
}

type ClipResponse struct {
	ID        string  `json:"id"`
	TrackID   string  `json:"track_id"`
	AssetID   string  `json:"asset_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	TrimStart float64 `json:"trim_start"`
	TrimEnd   float64 `json:"trim_end"`
	Volume    float64 `json:"volume"`
	Muted     bool    `json:"muted"`
	Layer     int     `json:"layer"`
}

type SplitClipResponse struct {
	Left  ClipResponse `json:"left"`
	Right ClipResponse `json:"right"`
}

type AssetResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Filename    string  `json:"filename"`
	ContentType string  `json:"content_type"`
	Size        int64   `json:"size"`
	Type        string  `json:"type"`
	Duration    float64 `json:"duration"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Locator     string  `json:"locator"`
	CreatedAt   string  `json:"created_at"`
}

type AssetsResponse struct {
	Assets []AssetResponse `json:"assets"`
}

type AssetURLResponse struct {
	URL       string `json:"url"`
	Anonymous bool   `json:"anonymous"`
}

type FilmstripRequest struct {
	ClipID          string  `json:"clip_id"`
	SegmentStart    float64 `json:"segment_start"`
	SegmentDuration float64 `json:"segment_duration"`
	DisplayWidth    int     `json:"display_width"`
	Priority        string  `json:"priority,omitempty"`
}

type TransportRequest struct {
	Time    float64 `json:"time"`
	Playing bool    `json:"playing"`
}

type TransportResponse struct {
	Time    float64 `json:"time"`
	Playing bool    `json:"playing"`
}

type MasterAudioRequest struct {
	Volume *float64 `json:"volume,omitempty"`
	Muted  *bool    `json:"muted,omitempty"`
}

type MasterAudioResponse struct {
	Volume float64 `json:"volume"`
	Muted  bool    `json:"muted"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ProjectToResponse(p timeline.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Title:       p.Title,
		FrameRate:   p.FrameRate,
		Width:       p.Width,
		Height:      p.Height,
		AspectRatio: p.AspectRatio,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

func ClipToResponse(c *timeline.Clip) ClipResponse {
	return ClipResponse{
		ID:        c.ID,
		TrackID:   c.TrackID,
		AssetID:   c.AssetID,
		StartTime: c.StartTime,
		EndTime:   c.EndTime,
		TrimStart: c.TrimStart,
		TrimEnd:   c.TrimEnd,
		Volume:    c.Volume,
		Muted:     c.Muted,
		Layer:     c.Layer,
	}
}

func TrackToResponse(t *timeline.Track) TrackResponse {
	clips := make([]ClipResponse, len(t.Clips))
	for i, c := range t.Clips {
		clips[i] = ClipToResponse(c)
	}
	return TrackResponse{
		ID:       t.ID,
		Type:     string(t.Type),
		Position: t.Position,
		Volume:   t.Volume,
		Opacity:  t.Opacity,
		Blend:    string(t.Blend),
		Clips:    clips,
	}
}

func AssetToResponse(a *timeline.MediaAsset) AssetResponse {
	return AssetResponse{
		ID:          a.ID,
		Title:       a.Title,
		Filename:    a.Filename,
		ContentType: a.ContentType,
		Size:        a.Size,
		Type:        string(a.Type),
		Duration:    a.Duration,
		Width:       a.Width,
		Height:      a.Height,
		Locator:     a.Locator,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}

type SelectRequest struct {
	ClipID string `json:"clip_id"`
}

type DragGestureRequest struct {
	Phase    string  `json:"phase"`
	ClipID   string  `json:"clip_id,omitempty"`
	PointerX float64 `json:"pointer_x"`
	Snap     string  `json:"snap,omitempty"`
}

type ResizeGestureRequest struct {
	Phase    string  `json:"phase"`
	ClipID   string  `json:"clip_id,omitempty"`
	Edge     string  `json:"edge,omitempty"`
	PointerX float64 `json:"pointer_x"`
	Snap     string  `json:"snap,omitempty"`
}

type ScrubRequest struct {
	PointerX float64 `json:"pointer_x"`
	Snap     string  `json:"snap,omitempty"`
}

type ScrollTickRequest struct {
	PointerX      float64 `json:"pointer_x"`
	ViewportWidth float64 `json:"viewport_width"`
}

type ViewportRequest struct {
	Zoom   float64 `json:"zoom"`
	Offset float64 `json:"offset"`
}

type DropAssetRequest struct {
	AssetID string   `json:"asset_id"`
	TrackID string   `json:"track_id"`
	Time    *float64 `json:"time,omitempty"`
}

type KeyRequest struct {
	Command string `json:"command"`
}

type FocusRequest struct {
	TextInput bool `json:"text_input"`
}

type InteractionStateResponse struct {
	Selected string  `json:"selected"`
	Zoom     float64 `json:"zoom"`
	Offset   float64 `json:"offset"`
}
