package media

import (
	"errors"
	"path/filepath"
	"strings"
)

// MediaType classifies an asset by how the timeline treats it.
type MediaType string

const (
	TypeVideo   MediaType = "video"
	TypeAudio   MediaType = "audio"
	TypeImage   MediaType = "image"
	TypeUnknown MediaType = "unknown"
)

// Fallback durations applied when metadata extraction fails or, for
// images, always (images have no intrinsic timebase).
const (
	DefaultImageDuration  = 5.0
	FallbackMediaDuration = 10.0
	DefaultVideoFrameRate = 30.0
)

var ErrUnknownMediaType = errors.New("unknown media type")

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
	".m4v":  true,
}

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".aac":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

// DetectType classifies a file by its declared MIME type, falling back to
// the filename extension when the MIME type is absent or ambiguous.
func DetectType(contentType, filename string) (MediaType, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "video/"):
		return TypeVideo, nil
	case strings.HasPrefix(ct, "audio/"):
		return TypeAudio, nil
	case strings.HasPrefix(ct, "image/"):
		return TypeImage, nil
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case videoExtensions[ext]:
		return TypeVideo, nil
	case audioExtensions[ext]:
		return TypeAudio, nil
	case imageExtensions[ext]:
		return TypeImage, nil
	}

	return TypeUnknown, ErrUnknownMediaType
}

// IsMediaFile reports whether a filename looks like any supported media type.
func IsMediaFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return videoExtensions[ext] || audioExtensions[ext] || imageExtensions[ext]
}
