package timeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/cutroom/cutroom-engine/internal/media"
)

// TrackType tags a lane with the kind of clips it carries.
type TrackType string

const (
	TrackVideo   TrackType = "video"
	TrackAudio   TrackType = "audio"
	TrackOverlay TrackType = "overlay"
)

// BlendMode selects how an overlay track composites over the layers below.
type BlendMode string

const (
	BlendNormal    BlendMode = "normal"
	BlendMultiply  BlendMode = "multiply"
	BlendScreen    BlendMode = "screen"
	BlendOverlay   BlendMode = "overlay"
	BlendSoftLight BlendMode = "soft-light"
	BlendHardLight BlendMode = "hard-light"
)

// MinClipDuration prevents degenerate zero-length clips during resize.
const MinClipDuration = 0.1

// Project is the root aggregate owning tracks and the asset pool.
type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	FrameRate   float64   `json:"frame_rate"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	AspectRatio string    `json:"aspect_ratio"`
	CreatedAt   time.Time `json:"created_at"`
}

// Track is a lane of non-overlapping clips kept ordered by start time.
type Track struct {
	ID       string    `json:"id"`
	Type     TrackType `json:"type"`
	Position int       `json:"position"`
	Volume   float64   `json:"volume"`
	Opacity  float64   `json:"opacity"`
	Blend    BlendMode `json:"blend,omitempty"`
	Clips    []*Clip   `json:"clips"`
}

// Transform is the optional 2D placement used by overlay clips.
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ScaleX   float64 `json:"scale_x"`
	ScaleY   float64 `json:"scale_y"`
	Rotation float64 `json:"rotation"`
	Opacity  float64 `json:"opacity"`
	AnchorX  float64 `json:"anchor_x"`
	AnchorY  float64 `json:"anchor_y"`
}

// Clip places a sub-range of one asset on one track. StartTime/EndTime are
// timeline-space seconds; TrimStart/TrimEnd are asset-space seconds. For
// video and audio the trim span always equals the placement span. Image
// clips carry cosmetic trim bounds since images have no intrinsic duration.
type Clip struct {
	ID        string     `json:"id"`
	TrackID   string     `json:"track_id"`
	AssetID   string     `json:"asset_id"`
	StartTime float64    `json:"start_time"`
	EndTime   float64    `json:"end_time"`
	TrimStart float64    `json:"trim_start"`
	TrimEnd   float64    `json:"trim_end"`
	Volume    float64    `json:"volume"`
	Muted     bool       `json:"muted"`
	Layer     int        `json:"layer"`
	Transform *Transform `json:"transform,omitempty"`
}

// Duration returns the clip's timeline-space length.
func (c *Clip) Duration() float64 {
	return c.EndTime - c.StartTime
}

// Contains reports whether a transport time falls within [StartTime, EndTime).
func (c *Clip) Contains(t float64) bool {
	return t >= c.StartTime && t < c.EndTime
}

// VideoMeta carries video-specific metadata extracted at ingest.
type VideoMeta struct {
	FPS     float64 `json:"fps"`
	Codec   string  `json:"codec"`
	Bitrate int64   `json:"bitrate"`
}

// MediaAsset references externally stored media. Locator is either a
// "local:" content-addressed identifier or a remote object key.
type MediaAsset struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Filename    string          `json:"filename"`
	ContentType string          `json:"content_type"`
	Size        int64           `json:"size"`
	Type        media.MediaType `json:"type"`
	Duration    float64         `json:"duration"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Video       *VideoMeta      `json:"video,omitempty"`
	Locator     string          `json:"locator"`
	CreatedAt   time.Time       `json:"created_at"`
}

// IsImage reports whether trim bounds are cosmetic for this asset.
func (a *MediaAsset) IsImage() bool {
	return a.Type == media.TypeImage
}

// Snapshot is the serializable full state handed to the persistence
// collaborator on save and accepted back on load.
type Snapshot struct {
	Project Project       `json:"project"`
	Tracks  []*Track      `json:"tracks"`
	Assets  []*MediaAsset `json:"assets"`
}

func NewID() string {
	return uuid.NewString()
}
