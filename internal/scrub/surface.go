// Package scrub turns pointer input on the rendered timeline into seeks. Clicks
// on a track's indicator handle never seek; they belong to the handle's
// context menu.
package scrub

import (
	"errors"

	"github.com/stwalsh4118/duet/internal/logger"
	"github.com/stwalsh4118/duet/internal/timeline"
)

// ErrInvalidRect indicates a rectangle with negative size or non-finite coordinates
var ErrInvalidRect = errors.New("invalid rectangle")

// Seeker is the part of the synchronization controller the surface drives
type Seeker interface {
	SeekTo(t float64)
	SharedDuration() float64
}

// Layout is the on-screen geometry of the timeline as last rendered
type Layout struct {
	Timeline    Rect `json:"timeline"`
	VideoHandle Rect `json:"video_handle"`
	AudioHandle Rect `json:"audio_handle"`
}

// Handle returns the rectangle of a track's indicator handle
func (l Layout) Handle(kind timeline.TrackKind) Rect {
	if kind == timeline.TrackAudio {
		return l.AudioHandle
	}
	return l.VideoHandle
}

// Validate checks every rectangle in the layout
func (l Layout) Validate() error {
	for _, r := range []Rect{l.Timeline, l.VideoHandle, l.AudioHandle} {
		if !r.valid() {
			return ErrInvalidRect
		}
	}
	return nil
}

// MenuState reports which context menus are open
type MenuState struct {
	Video bool `json:"video"`
	Audio bool `json:"audio"`
}

// ClickResult describes what a primary click did
type ClickResult struct {
	Swallowed bool               `json:"swallowed"`        // landed on a handle
	Handle    timeline.TrackKind `json:"handle,omitempty"` // handle that swallowed the click
	Seeked    bool               `json:"seeked"`
	Time      float64            `json:"time"`
}

// Surface is the scrub bar input boundary. It is not safe for concurrent use.
type Surface struct {
	seeker Seeker
	layout Layout
	menus  MenuState
}

// NewSurface creates a surface that seeks through seeker
func NewSurface(seeker Seeker) *Surface {
	return &Surface{seeker: seeker}
}

// SetLayout records the geometry reported by the presentation layer
func (s *Surface) SetLayout(layout Layout) error {
	if err := layout.Validate(); err != nil {
		return err
	}
	s.layout = layout
	return nil
}

// Layout returns the recorded geometry
func (s *Surface) Layout() Layout {
	return s.layout
}

// HandleAt returns the handle under the point. Video wins where handles overlap.
func (s *Surface) HandleAt(x, y float64) (timeline.TrackKind, bool) {
	for _, kind := range timeline.Kinds {
		if s.layout.Handle(kind).Contains(x, y) {
			return kind, true
		}
	}
	return "", false
}

// Click handles a primary click at (x, y). The handle check runs before any
// time is computed. Clicks outside the timeline are ignored, and so is every
// click before a layout has been reported.
func (s *Surface) Click(x, y float64) ClickResult {
	if kind, ok := s.HandleAt(x, y); ok {
		logger.Log.Debug().
			Str("track", kind.String()).
			Msg("Click landed on indicator handle")
		return ClickResult{Swallowed: true, Handle: kind}
	}

	tl := s.layout.Timeline
	if !tl.Contains(x, y) {
		return ClickResult{}
	}

	// A click elsewhere dismisses any open menu
	s.menus = MenuState{}

	offset := timeline.Clamp(x-tl.X, 0, tl.Width)
	t := timeline.TimeFromClick(offset, tl.Width, s.seeker.SharedDuration())
	s.seeker.SeekTo(t)

	return ClickResult{Seeked: true, Time: t}
}

// ContextClick handles a secondary click (or long press) at (x, y), opening
// the menu of the handle under the pointer and closing the other one.
func (s *Surface) ContextClick(x, y float64) (timeline.TrackKind, bool) {
	kind, ok := s.HandleAt(x, y)
	if !ok {
		return "", false
	}
	s.menus = MenuState{}
	s.setMenu(kind, true)
	return kind, true
}

// SetMenuVisible mirrors the toolkit's open/close callback for a track's menu
func (s *Surface) SetMenuVisible(kind timeline.TrackKind, visible bool) error {
	if !kind.IsValid() {
		return timeline.ErrUnknownTrack
	}
	s.setMenu(kind, visible)
	return nil
}

// Menus returns which menus are open
func (s *Surface) Menus() MenuState {
	return s.menus
}

func (s *Surface) setMenu(kind timeline.TrackKind, visible bool) {
	if kind == timeline.TrackAudio {
		s.menus.Audio = visible
	} else {
		s.menus.Video = visible
	}
}
