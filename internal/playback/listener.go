package playback

import (
	"github.com/stwalsh4118/duet/internal/timeline"
)

// trackListener routes one clock's notifications into the controller
type trackListener struct {
	controller *Controller
	kind       timeline.TrackKind
}

func (l *trackListener) OnMetadataLoaded(duration float64) {
	l.controller.handleMetadataLoaded(l.kind, duration)
}

func (l *trackListener) OnTimeUpdate(t float64) {
	l.controller.handleTimeUpdate(l.kind, t)
}

func (l *trackListener) OnEnded() {
	l.controller.handleEnded(l.kind)
}
