package media

import (
	"github.com/stwalsh4118/duet/internal/timeline"
)

// ValidationResult contains the result of checking a source against its track
type ValidationResult struct {
	Suitable bool     // true if the source carries the stream its track renders
	Reasons  []string // Human-readable reasons the source is unsuitable
}

// ValidateTrack checks that probed metadata fits the track it was loaded into.
// A video track needs a video stream and an audio track needs an audio stream.
// Unsuitable sources still play; the result only feeds diagnostics.
func ValidateTrack(kind timeline.TrackKind, metadata *Metadata) ValidationResult {
	result := ValidationResult{
		Suitable: true,
		Reasons:  []string{},
	}

	if metadata == nil {
		result.Suitable = false
		result.Reasons = append(result.Reasons, "metadata missing")
		return result
	}

	switch kind {
	case timeline.TrackVideo:
		if !metadata.HasVideo {
			result.Suitable = false
			result.Reasons = append(result.Reasons, "video track source has no video stream")
		}
	case timeline.TrackAudio:
		if !metadata.HasAudio {
			result.Suitable = false
			result.Reasons = append(result.Reasons, "audio track source has no audio stream")
		}
	default:
		result.Suitable = false
		result.Reasons = append(result.Reasons, "unknown track kind '"+kind.String()+"'")
	}

	if metadata.Duration <= 0 {
		result.Suitable = false
		result.Reasons = append(result.Reasons, "duration is not positive")
	}

	return result
}
