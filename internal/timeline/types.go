package timeline

import "strings"

// TrackKind identifies one of the two synchronized tracks
type TrackKind string

const (
	// TrackVideo is the master track; its clock drives the shared play-head
	TrackVideo TrackKind = "video"

	// TrackAudio is the slave track; it is re-aligned to the video on every video time update
	TrackAudio TrackKind = "audio"
)

// Kinds lists the tracks in the order they are rendered and commanded
var Kinds = []TrackKind{TrackVideo, TrackAudio}

// String returns the string representation of the track kind
func (k TrackKind) String() string {
	return string(k)
}

// IsValid checks if the track kind is a known value
func (k TrackKind) IsValid() bool {
	return k == TrackVideo || k == TrackAudio
}

// ParseTrackKind converts a case-insensitive name into a TrackKind
func ParseTrackKind(s string) (TrackKind, error) {
	kind := TrackKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.IsValid() {
		return "", ErrUnknownTrack
	}
	return kind, nil
}
