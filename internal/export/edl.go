package export

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// EDLClip is one event in the generated edit decision list. Source in/out
// come from the clip's trim window, record in/out from its timeline position.
type EDLClip struct {
	Name       string
	MediaPath  string
	SourceInS  float64
	SourceOutS float64
	RecordInS  float64
	RecordOutS float64
}

// GenerateEDL renders clips as a CMX 3600 style edit decision list. Events
// are ordered by record position regardless of input order.
func GenerateEDL(clips []EDLClip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	sorted := make([]EDLClip, len(clips))
	copy(sorted, clips)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RecordInS < sorted[j].RecordInS
	})

	lines := []string{fmt.Sprintf("TITLE: %s", SanitizeName(title, 60))}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	for i, clip := range sorted {
		srcIn := secondsToTimecode(clip.SourceInS, fps)
		srcOut := secondsToTimecode(clip.SourceOutS, fps)
		recIn := secondsToTimecode(clip.RecordInS, fps)
		recOut := secondsToTimecode(clip.RecordOutS, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clip.Name),
			fmt.Sprintf("* MEDIA PATH:  %s", clip.MediaPath),
		)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func secondsToTimecode(seconds float64, fps int) string {
	totalFrames := int(math.Round(seconds * float64(fps)))
	if totalFrames < 0 {
		totalFrames = 0
	}
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	secs := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, secs, frames)
}
