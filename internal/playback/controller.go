// Package playback implements the synchronization controller: a two-state
// machine that keeps a video clock and an audio clock on one shared play-head.
// Video is the master clock. Every video time update re-seeks the audio clock
// to the same time; audio never moves the video.
//
// A Controller is not safe for concurrent use. It expects every call and every
// clock notification to arrive on one event loop, one at a time.
package playback

import (
	"math"

	"github.com/stwalsh4118/duet/internal/clock"
	"github.com/stwalsh4118/duet/internal/logger"
	"github.com/stwalsh4118/duet/internal/timeline"
)

// TrackFactory creates an unloaded media clock for a track that had no source
type TrackFactory func(kind timeline.TrackKind) clock.MediaClock

// Options tunes controller policy
type Options struct {
	// AutoPauseOnBothEnded pauses the controller once every loaded track has
	// ended. Off by default: reaching the end never clears the playing flag.
	AutoPauseOnBothEnded bool

	// Factory creates clocks for SetSource when a track is absent
	Factory TrackFactory
}

// Controller is the synchronization controller
type Controller struct {
	video clock.MediaClock
	audio clock.MediaClock
	opts  Options

	state    TimelineState
	revision uint64

	subscribers []subscriber
	nextSubID   uint64
}

type subscriber struct {
	id uint64
	fn func(Snapshot)
}

// New creates a paused controller owning the given clocks. Either may be nil.
func New(video, audio clock.MediaClock, opts Options) *Controller {
	c := &Controller{opts: opts}
	c.attach(timeline.TrackVideo, video)
	c.attach(timeline.TrackAudio, audio)
	c.recompute()
	return c
}

// State returns a copy of the current timeline state
func (c *Controller) State() TimelineState {
	return c.state
}

// IsPlaying reports whether the controller is in the Playing state
func (c *Controller) IsPlaying() bool {
	return c.state.IsPlaying
}

// SharedDuration returns the longer of the two track durations
func (c *Controller) SharedDuration() float64 {
	return c.state.SharedDuration
}

// Snapshot returns the presentation view of the current state
func (c *Controller) Snapshot() Snapshot {
	return newSnapshot(c.state, c.revision)
}

// Subscribe registers fn to run after every transition. The returned func
// removes the subscription.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})
	return func() {
		for i, s := range c.subscribers {
			if s.id == id {
				c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

// TogglePlayPause flips between Paused and Playing, commanding both tracks.
// The state flips whether or not the tracks honor the command.
func (c *Controller) TogglePlayPause() bool {
	if c.state.IsPlaying {
		c.each(func(_ timeline.TrackKind, mc clock.MediaClock) { mc.Pause() })
		c.state.IsPlaying = false
	} else {
		c.each(func(_ timeline.TrackKind, mc clock.MediaClock) { resume(mc) })
		c.state.IsPlaying = true
	}

	logger.Log.Debug().
		Bool("is_playing", c.state.IsPlaying).
		Msg("Toggled playback")

	c.refreshAll()
	c.commit()
	return c.state.IsPlaying
}

// Restart seeks both tracks to 0 and, while playing, plays them again.
// The play/pause state is unchanged.
func (c *Controller) Restart() {
	c.each(func(kind timeline.TrackKind, mc clock.MediaClock) {
		mc.Seek(0)
		if c.state.IsPlaying {
			mc.Play()
		}
		c.refresh(kind)
		c.state.Track(kind).CurrentTime = 0
	})

	logger.Log.Debug().
		Bool("is_playing", c.state.IsPlaying).
		Msg("Restarted timeline")

	c.commit()
}

// SeekTo moves both tracks to t, clamped to [0, SharedDuration]. Each track
// clamps again to its own duration. While playing, a track the seek pulled
// back from its end is played again.
func (c *Controller) SeekTo(t float64) {
	if math.IsNaN(t) {
		t = 0
	}
	t = timeline.Clamp(t, 0, c.state.SharedDuration)

	c.each(func(kind timeline.TrackKind, mc clock.MediaClock) {
		wasEnded := mc.Ended()
		mc.Seek(t)
		if c.state.IsPlaying && wasEnded && !mc.Ended() {
			mc.Play()
		}
		c.refresh(kind)
	})

	logger.Log.Debug().
		Float64("seek_time", t).
		Msg("Seeked timeline")

	c.commit()
}

// SetSource replaces the source of one track. An empty url tears the track
// down; a new url on an absent track creates one with the factory. Setting the
// current url again is a no-op.
func (c *Controller) SetSource(kind timeline.TrackKind, url string) error {
	if !kind.IsValid() {
		return timeline.ErrUnknownTrack
	}

	mc := c.clock(kind)
	switch {
	case mc == nil && url == "":
		return nil
	case mc != nil && mc.Source() == url:
		return nil
	case url == "":
		if mc != nil {
			mc.Close()
		}
		c.setClock(kind, nil)
	case mc == nil:
		if c.opts.Factory == nil {
			logger.Log.Warn().
				Str("track", kind.String()).
				Msg("No track factory configured, ignoring source")
			return nil
		}
		mc = c.opts.Factory(kind)
		c.attach(kind, mc)
		mc.Load(url)
	default:
		mc.Load(url)
	}

	logger.Log.Info().
		Str("track", kind.String()).
		Str("source_url", url).
		Msg("Track source changed")

	c.refresh(kind)
	c.commit()
	return nil
}

// Close releases both clocks and drops every subscriber
func (c *Controller) Close() {
	c.each(func(_ timeline.TrackKind, mc clock.MediaClock) { mc.Close() })
	c.video = nil
	c.audio = nil
	c.subscribers = nil
}

func (c *Controller) handleMetadataLoaded(kind timeline.TrackKind, duration float64) {
	mc := c.clock(kind)
	if mc == nil {
		return
	}

	// A track that loads while the timeline plays joins at the play-head
	if c.state.IsPlaying {
		mc.Seek(c.state.Video.CurrentTime)
		resume(mc)
	}

	c.refresh(kind)
	c.state.Track(kind).Duration = duration

	logger.Log.Debug().
		Str("track", kind.String()).
		Float64("duration", duration).
		Msg("Track duration known")

	c.commit()
}

func (c *Controller) handleTimeUpdate(kind timeline.TrackKind, t float64) {
	if c.clock(kind) == nil {
		return
	}
	c.state.Track(kind).CurrentTime = t

	// Drift correction: audio follows video. It must land before the snapshot.
	if kind == timeline.TrackVideo && c.audio != nil {
		c.audio.Seek(t)
		c.refresh(timeline.TrackAudio)
	}

	c.commit()
}

func (c *Controller) handleEnded(kind timeline.TrackKind) {
	mc := c.clock(kind)
	if mc == nil {
		return
	}

	// Pin to the exact end in case the clock stopped short
	duration := mc.Duration()
	mc.Seek(duration)
	ts := c.state.Track(kind)
	ts.CurrentTime = duration
	ts.Ended = true

	logger.Log.Debug().
		Str("track", kind.String()).
		Float64("duration", duration).
		Msg("Track ended")

	if c.opts.AutoPauseOnBothEnded && c.state.IsPlaying && c.allEnded() {
		c.each(func(_ timeline.TrackKind, mc clock.MediaClock) { mc.Pause() })
		c.state.IsPlaying = false
		logger.Log.Debug().Msg("All tracks ended, pausing")
	}

	c.commit()
}

// resume plays mc unless it sits at its own end. A clock told to play there
// rewinds to 0, and a finished track stays pinned until a seek pulls it back.
func resume(mc clock.MediaClock) {
	if mc.IsLoaded() && mc.CurrentTime() >= mc.Duration() {
		return
	}
	mc.Play()
}

func (c *Controller) allEnded() bool {
	sawEnded := false
	for _, kind := range timeline.Kinds {
		ts := c.state.Track(kind)
		if !ts.Present || !ts.Loaded {
			continue
		}
		if !ts.Ended {
			return false
		}
		sawEnded = true
	}
	return sawEnded
}

func (c *Controller) clock(kind timeline.TrackKind) clock.MediaClock {
	if kind == timeline.TrackAudio {
		return c.audio
	}
	return c.video
}

func (c *Controller) setClock(kind timeline.TrackKind, mc clock.MediaClock) {
	if kind == timeline.TrackAudio {
		c.audio = mc
	} else {
		c.video = mc
	}
}

func (c *Controller) attach(kind timeline.TrackKind, mc clock.MediaClock) {
	c.setClock(kind, mc)
	if mc != nil {
		mc.SetListener(&trackListener{controller: c, kind: kind})
	}
	c.refresh(kind)
}

// each calls fn for every present track, video first
func (c *Controller) each(fn func(kind timeline.TrackKind, mc clock.MediaClock)) {
	for _, kind := range timeline.Kinds {
		if mc := c.clock(kind); mc != nil {
			fn(kind, mc)
		}
	}
}

// refresh copies a clock's observable state into the timeline state
func (c *Controller) refresh(kind timeline.TrackKind) {
	mc := c.clock(kind)
	ts := c.state.Track(kind)
	if mc == nil {
		*ts = TrackState{}
		return
	}
	*ts = TrackState{
		Present:     true,
		Source:      mc.Source(),
		Loaded:      mc.IsLoaded(),
		Ended:       mc.Ended(),
		Duration:    mc.Duration(),
		CurrentTime: mc.CurrentTime(),
	}
}

func (c *Controller) refreshAll() {
	for _, kind := range timeline.Kinds {
		c.refresh(kind)
	}
}

func (c *Controller) recompute() {
	c.state.SharedDuration = timeline.SharedDuration(c.state.Video.Duration, c.state.Audio.Duration)
	for _, kind := range timeline.Kinds {
		ts := c.state.Track(kind)
		ts.CurrentTime = timeline.Clamp(ts.CurrentTime, 0, c.state.SharedDuration)
	}
}

// commit settles derived state and notifies subscribers
func (c *Controller) commit() {
	c.recompute()
	c.revision++
	if len(c.subscribers) == 0 {
		return
	}
	snapshot := c.Snapshot()
	for _, s := range append([]subscriber(nil), c.subscribers...) {
		s.fn(snapshot)
	}
}
