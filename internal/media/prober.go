package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ErrMetadataExtraction indicates the container was recognized but its
// duration or dimensions could not be read. Callers apply the documented
// fallback durations instead of blocking the workflow.
var ErrMetadataExtraction = errors.New("metadata extraction failed")

// ProbeResult holds the metadata extracted from a media file.
type ProbeResult struct {
	Type     MediaType
	Duration float64
	Width    int
	Height   int
	FPS      float64
	Codec    string
	Bitrate  int64
}

// Prober extracts media metadata from a file on disk. The media type is
// passed in because stored objects are content-addressed and carry no
// extension to classify by.
type Prober interface {
	Probe(ctx context.Context, path string, mediaType MediaType) (*ProbeResult, error)
}

// FFprobe probes media files by executing the ffprobe binary.
type FFprobe struct {
	binPath string
	logger  *slog.Logger
}

func NewFFprobe(binPath string, logger *slog.Logger) *FFprobe {
	if binPath == "" {
		binPath = "ffprobe"
	}
	return &FFprobe{binPath: binPath, logger: logger}
}

// probeOutput matches ffprobe JSON output structure
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

func (p *FFprobe) Probe(ctx context.Context, path string, mediaType MediaType) (*ProbeResult, error) {
	if mediaType == TypeUnknown {
		return nil, ErrUnknownMediaType
	}

	if mediaType == TypeImage {
		return probeImage(path)
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, p.binPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe: %v", ErrMetadataExtraction, err)
	}

	var probe probeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("%w: failed to parse ffprobe output: %v", ErrMetadataExtraction, err)
	}

	result := &ProbeResult{Type: mediaType, FPS: DefaultVideoFrameRate}

	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		result.Duration = dur
	}
	if br, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
		result.Bitrate = br
	}

	for _, stream := range probe.Streams {
		if stream.CodecType == "video" {
			result.Width = stream.Width
			result.Height = stream.Height
			result.Codec = stream.CodecName
			if fps := parseFrameRate(stream.RFrameRate); fps > 0 {
				result.FPS = fps
			}
		}
	}

	if result.Duration <= 0 {
		return nil, fmt.Errorf("%w: no duration in %s", ErrMetadataExtraction, path)
	}

	if p.logger != nil {
		p.logger.Debug("probed media file",
			"path", path,
			"type", mediaType,
			"duration", result.Duration,
		)
	}
	return result, nil
}

func probeImage(path string) (*ProbeResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataExtraction, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%w: image decode: %v", ErrMetadataExtraction, err)
	}

	return &ProbeResult{
		Type:     TypeImage,
		Duration: DefaultImageDuration,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

// parseFrameRate parses frame rate from ffprobe format (e.g., "30/1")
func parseFrameRate(s string) float64 {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// StubProber reports fixed metadata without running ffprobe. It keeps
// ingestion working in environments where ffprobe is not installed.
type StubProber struct {
	logger *slog.Logger
}

func NewStubProber(logger *slog.Logger) *StubProber {
	return &StubProber{logger: logger}
}

func (p *StubProber) Probe(ctx context.Context, path string, mediaType MediaType) (*ProbeResult, error) {
	if mediaType == TypeUnknown {
		return nil, ErrUnknownMediaType
	}

	if p.logger != nil {
		p.logger.Info("prober stub: returning fallback metadata", "path", path)
	}

	result := &ProbeResult{Type: mediaType, Duration: FallbackMediaDuration}
	if mediaType == TypeImage {
		result.Duration = DefaultImageDuration
	}
	if mediaType == TypeVideo {
		result.FPS = DefaultVideoFrameRate
	}
	return result, nil
}
