package filmstrip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os/exec"
	"strings"

	_ "image/jpeg"
	_ "image/png"
)

// Frame dimensions are capped to bound decode memory.
const (
	maxFrameWidth  = 1920
	maxFrameHeight = 1080
)

// firstFrameOffset keeps the first sample off exact zero, where many
// sources decode a black or placeholder frame.
const firstFrameOffset = 0.1

// Extractor pulls single frames out of a media source at given timestamps.
type Extractor interface {
	ExtractFrame(ctx context.Context, source string, at float64, width, height int) (image.Image, error)
}

// FFmpegExtractor decodes frames by executing the ffmpeg binary with a
// pre-input seek and a single-frame image2 output on stdout.
type FFmpegExtractor struct {
	binPath string
	logger  *slog.Logger
}

func NewFFmpegExtractor(binPath string, logger *slog.Logger) *FFmpegExtractor {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &FFmpegExtractor{binPath: binPath, logger: logger}
}

func (e *FFmpegExtractor) ExtractFrame(ctx context.Context, source string, at float64, width, height int) (image.Image, error) {
	if width > maxFrameWidth {
		width = maxFrameWidth
	}
	if height > maxFrameHeight {
		height = maxFrameHeight
	}

	args := []string{
		"-v", "error",
		"-ss", fmt.Sprintf("%.3f", at),
		"-i", source,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, e.binPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classifyExtractionError(ctx, err, stderr.String())
	}

	img, _, err := image.Decode(bytes.NewReader(stdout.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// classifyExtractionError maps ffmpeg failures onto the engine's failure
// taxonomy so callers can distinguish security blocks, network trouble,
// and plain bad media.
func classifyExtractionError(ctx context.Context, err error, stderr string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, firstLine(stderr))
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: %s", ErrAborted, firstLine(stderr))
	}

	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "403") || strings.Contains(lower, "forbidden") || strings.Contains(lower, "401"):
		return fmt.Errorf("%w: %s", ErrSecurityBlocked, firstLine(stderr))
	case strings.Contains(lower, "connection") || strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "404") || strings.Contains(lower, "5xx") ||
		strings.Contains(lower, "input/output error") || strings.Contains(lower, "network"):
		return fmt.Errorf("%w: %s", ErrNetwork, firstLine(stderr))
	case strings.Contains(lower, "invalid data") || strings.Contains(lower, "could not find codec") ||
		strings.Contains(lower, "decoder"):
		return fmt.Errorf("%w: %s", ErrDecode, firstLine(stderr))
	case strings.Contains(lower, "protocol not found") || strings.Contains(lower, "no such file"):
		return fmt.Errorf("%w: %s", ErrUnsupported, firstLine(stderr))
	}
	return fmt.Errorf("%w: %v: %s", ErrDecode, err, firstLine(stderr))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		s = s[:idx]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
