package playback

import (
	"github.com/stwalsh4118/duet/internal/timeline"
)

// State is the play/pause state of the controller
type State string

const (
	// StatePaused is the initial state
	StatePaused State = "paused"
	// StatePlaying means both tracks were told to play
	StatePlaying State = "playing"
)

// TrackState mirrors one media clock as last observed by the controller
type TrackState struct {
	Present     bool
	Source      string
	Loaded      bool
	Ended       bool
	Duration    float64
	CurrentTime float64
}

// TimelineState is the single consolidated state of a synchronized timeline.
// It is mutated only by Controller transitions.
type TimelineState struct {
	Video          TrackState
	Audio          TrackState
	SharedDuration float64
	IsPlaying      bool
}

// Track returns the state of the given track
func (s *TimelineState) Track(kind timeline.TrackKind) *TrackState {
	if kind == timeline.TrackAudio {
		return &s.Audio
	}
	return &s.Video
}

// TrackView is the presentation-ready view of one track
type TrackView struct {
	Present     bool    `json:"present"`
	Source      string  `json:"source,omitempty"`
	Loaded      bool    `json:"loaded"`
	Ended       bool    `json:"ended"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Position    float64 `json:"position"`  // indicator position, percent of the timeline
	BarWidth    float64 `json:"bar_width"` // percent of the timeline the track spans
	TimeLabel   string  `json:"time_label"`
}

// Snapshot is everything a presentation layer needs to draw the timeline.
// A new snapshot is produced after every controller transition.
type Snapshot struct {
	Revision        uint64    `json:"revision"`
	State           State     `json:"state"`
	IsPlaying       bool      `json:"is_playing"`
	SharedDuration  float64   `json:"shared_duration"`
	DurationLabel   string    `json:"duration_label"`
	TimelineVisible bool      `json:"timeline_visible"`
	Video           TrackView `json:"video"`
	Audio           TrackView `json:"audio"`
}

// Track returns the view of the given track
func (s Snapshot) Track(kind timeline.TrackKind) TrackView {
	if kind == timeline.TrackAudio {
		return s.Audio
	}
	return s.Video
}

func newSnapshot(state TimelineState, revision uint64) Snapshot {
	playState := StatePaused
	if state.IsPlaying {
		playState = StatePlaying
	}
	return Snapshot{
		Revision:        revision,
		State:           playState,
		IsPlaying:       state.IsPlaying,
		SharedDuration:  state.SharedDuration,
		DurationLabel:   timeline.FormatTime(state.SharedDuration),
		TimelineVisible: state.Video.Present,
		Video:           newTrackView(state.Video, state.SharedDuration),
		Audio:           newTrackView(state.Audio, state.SharedDuration),
	}
}

func newTrackView(track TrackState, sharedDuration float64) TrackView {
	return TrackView{
		Present:     track.Present,
		Source:      track.Source,
		Loaded:      track.Loaded,
		Ended:       track.Ended,
		CurrentTime: track.CurrentTime,
		Duration:    track.Duration,
		Position:    timeline.PositionFromTime(track.CurrentTime, sharedDuration),
		BarWidth:    timeline.BarWidth(track.Duration, sharedDuration),
		TimeLabel:   timeline.FormatTime(track.CurrentTime) + " / " + timeline.FormatTime(track.Duration),
	}
}
