package filmstrip

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"math"

	"github.com/nfnt/resize"
)

// Layout selects how extracted frames tile into the strip image.
type Layout string

const (
	LayoutHorizontal Layout = "horizontal"
	LayoutVertical   Layout = "vertical"
	LayoutGrid       Layout = "grid"
)

// composite tiles the frames into one strip image and encodes it as JPEG.
// Frames are scaled to exactly frameW x frameH before tiling.
func composite(frames []image.Image, frameW, frameH, quality int, layout Layout) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames to composite", ErrDecode)
	}

	var cols, rows int
	switch layout {
	case LayoutVertical:
		cols, rows = 1, len(frames)
	case LayoutGrid:
		cols = int(math.Ceil(math.Sqrt(float64(len(frames)))))
		rows = int(math.Ceil(float64(len(frames)) / float64(cols)))
	default:
		cols, rows = len(frames), 1
	}

	strip := image.NewRGBA(image.Rect(0, 0, cols*frameW, rows*frameH))
	for i, frame := range frames {
		scaled := resize.Resize(uint(frameW), uint(frameH), frame, resize.Bilinear)
		x := (i % cols) * frameW
		y := (i / cols) * frameH
		dst := image.Rect(x, y, x+frameW, y+frameH)
		draw.Draw(strip, dst, scaled, image.Point{}, draw.Src)
	}

	if quality <= 0 || quality > 100 {
		quality = 70
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, strip, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: jpeg encode: %v", ErrDecode, err)
	}
	return buf.Bytes(), nil
}
