package timeline

import "errors"

var (
	// ErrUnknownTrack is returned when a track name is neither video nor audio
	ErrUnknownTrack = errors.New("unknown track kind")
)
