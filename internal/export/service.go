package export

import (
	"strings"

	"github.com/cutroom/cutroom-engine/internal/resolver"
	"github.com/cutroom/cutroom-engine/internal/timeline"
)

// PathResolver maps a stored object id to a filesystem path.
type PathResolver interface {
	Path(id string) string
}

// Service flattens a timeline into EDL text. Video and overlay tracks
// contribute events; audio-only lanes are outside the EDL vocabulary.
type Service struct {
	model *timeline.Model
	paths PathResolver
}

func NewService(model *timeline.Model, paths PathResolver) *Service {
	return &Service{model: model, paths: paths}
}

// Result reports what was exported and which clips could not be resolved
// to on-disk media.
type Result struct {
	EDL             string   `json:"edl"`
	ClipCount       int      `json:"clip_count"`
	UnresolvedClips []string `json:"unresolved_clips"`
}

func (s *Service) Export() Result {
	project := s.model.Project()

	var clips []EDLClip
	var unresolved []string
	for _, track := range s.model.Tracks() {
		if track.Type == timeline.TrackAudio {
			continue
		}
		for _, clip := range track.Clips {
			asset, err := s.model.ClipAsset(clip.ID)
			if err != nil {
				unresolved = append(unresolved, clip.ID)
				continue
			}
			clips = append(clips, EDLClip{
				Name:       SanitizeName(asset.Title, 60),
				MediaPath:  s.mediaPath(asset),
				SourceInS:  clip.TrimStart,
				SourceOutS: clip.TrimEnd,
				RecordInS:  clip.StartTime,
				RecordOutS: clip.EndTime,
			})
		}
	}

	frameRate := project.FrameRate
	return Result{
		EDL:             GenerateEDL(clips, project.Title, frameRate),
		ClipCount:       len(clips),
		UnresolvedClips: unresolved,
	}
}

// mediaPath prefers the on-disk location for locally stored assets and
// falls back to the raw locator for remote ones.
func (s *Service) mediaPath(asset *timeline.MediaAsset) string {
	if strings.HasPrefix(asset.Locator, resolver.LocalScheme) {
		return s.paths.Path(strings.TrimPrefix(asset.Locator, resolver.LocalScheme))
	}
	return asset.Locator
}
