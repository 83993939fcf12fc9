package clock

import (
	"context"
	"time"

	"github.com/stwalsh4118/duet/internal/logger"
	"github.com/stwalsh4118/duet/internal/media"
	"github.com/stwalsh4118/duet/internal/timeline"
)

const (
	defaultTimeUpdateInterval = 250 * time.Millisecond
	defaultPlaybackRate       = 1.0
)

// TrackOptions configures a Track
type TrackOptions struct {
	// Interval between time-update notifications while playing
	Interval time.Duration
	// Rate is the playback speed relative to wall time
	Rate float64
	// Now returns the current wall time; defaults to time.Now
	Now func() time.Time
}

// Track is a headless media clock. Its duration comes from a media.Prober and
// its position advances with wall time while playing. All methods and all
// notifications run on the dispatcher's goroutine; the only other goroutines
// are the probe and the ticker, and they hand their results to the dispatcher.
type Track struct {
	kind       timeline.TrackKind
	prober     media.Prober
	dispatcher Dispatcher
	interval   time.Duration
	rate       float64
	now        func() time.Time
	listener   Listener

	source      string
	generation  uint64 // bumped on every Load; stale probe results carry an old value
	cancelProbe context.CancelFunc

	duration float64
	loaded   bool
	playing  bool
	ended    bool
	closed   bool

	// position is anchorPos + (now - anchorWall) * rate while playing
	anchorPos  float64
	anchorWall time.Time
	playGen    uint64 // bumped whenever ticking starts or stops
	stopTicks  chan struct{}
}

// NewTrack creates an unloaded track of the given kind
func NewTrack(kind timeline.TrackKind, prober media.Prober, dispatcher Dispatcher, opts TrackOptions) *Track {
	if opts.Interval <= 0 {
		opts.Interval = defaultTimeUpdateInterval
	}
	if opts.Rate <= 0 {
		opts.Rate = defaultPlaybackRate
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Track{
		kind:       kind,
		prober:     prober,
		dispatcher: dispatcher,
		interval:   opts.Interval,
		rate:       opts.Rate,
		now:        opts.Now,
		listener:   nopListener{},
	}
}

// Kind returns which track this clock plays
func (t *Track) Kind() timeline.TrackKind {
	return t.kind
}

// SetListener registers the receiver of this track's notifications
func (t *Track) SetListener(l Listener) {
	if l == nil {
		l = nopListener{}
	}
	t.listener = l
}

// Load resets the track and resolves metadata for source in the background
func (t *Track) Load(source string) {
	if t.closed {
		return
	}

	t.stopTicking()
	if t.cancelProbe != nil {
		t.cancelProbe()
		t.cancelProbe = nil
	}

	t.generation++
	t.source = source
	t.duration = 0
	t.loaded = false
	t.playing = false
	t.ended = false
	t.anchorPos = 0

	if source == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancelProbe = cancel
	gen := t.generation

	logger.Log.Debug().
		Str("track", t.kind.String()).
		Str("source_url", source).
		Uint64("generation", gen).
		Msg("Loading track metadata")

	go func() {
		metadata, err := t.prober.Probe(ctx, source)
		t.dispatcher.Post(func() {
			t.finishLoad(gen, source, metadata, err)
		})
	}()
}

func (t *Track) finishLoad(gen uint64, source string, metadata *media.Metadata, err error) {
	if t.closed || gen != t.generation {
		logger.Log.Debug().
			Str("track", t.kind.String()).
			Str("source_url", source).
			Uint64("generation", gen).
			Msg("Discarding stale metadata notification")
		return
	}
	t.cancelProbe = nil

	if err != nil {
		// The track stays unloaded at duration 0
		logger.Log.Warn().
			Err(err).
			Str("track", t.kind.String()).
			Str("source_url", source).
			Msg("Failed to load track metadata")
		return
	}

	if result := media.ValidateTrack(t.kind, metadata); !result.Suitable {
		logger.Log.Warn().
			Str("track", t.kind.String()).
			Str("source_url", source).
			Strs("reasons", result.Reasons).
			Msg("Source may not suit its track")
	}
	if metadata.Duration <= 0 {
		return
	}

	t.duration = metadata.Duration
	t.loaded = true

	logger.Log.Info().
		Str("track", t.kind.String()).
		Str("source_url", source).
		Float64("duration", t.duration).
		Msg("Track metadata loaded")

	t.listener.OnMetadataLoaded(t.duration)
}

// Play starts advancing the position. It is ignored until metadata has
// loaded. An ended track restarts from 0.
func (t *Track) Play() {
	if t.closed {
		return
	}
	if !t.loaded {
		logger.Log.Debug().
			Str("track", t.kind.String()).
			Msg("Ignoring play on unloaded track")
		return
	}
	if t.playing {
		return
	}
	if t.ended || t.anchorPos >= t.duration {
		t.anchorPos = 0
		t.ended = false
	}

	t.playing = true
	t.anchorWall = t.now()
	t.startTicking()
}

// Pause freezes the position
func (t *Track) Pause() {
	if !t.playing {
		return
	}
	t.anchorPos = t.livePosition()
	t.playing = false
	t.stopTicking()
}

// Seek moves the position, clamped to [0, duration]. Ignored until loaded.
func (t *Track) Seek(pos float64) {
	if t.closed {
		return
	}
	if !t.loaded {
		logger.Log.Debug().
			Str("track", t.kind.String()).
			Float64("seek_time", pos).
			Msg("Ignoring seek on unloaded track")
		return
	}

	pos = timeline.Clamp(pos, 0, t.duration)
	t.anchorPos = pos
	t.anchorWall = t.now()
	if pos < t.duration {
		t.ended = false
	}
}

// Duration returns the resolved duration, 0 until loaded
func (t *Track) Duration() float64 {
	return t.duration
}

// CurrentTime returns the live position
func (t *Track) CurrentTime() float64 {
	return t.livePosition()
}

// IsLoaded reports whether metadata has resolved for the current source
func (t *Track) IsLoaded() bool {
	return t.loaded
}

// IsPlaying reports whether the position is advancing
func (t *Track) IsPlaying() bool {
	return t.playing
}

// Ended reports whether playback reached the end and has not been moved since
func (t *Track) Ended() bool {
	return t.ended
}

// Source returns the current source URL
func (t *Track) Source() string {
	return t.source
}

// Close stops ticking, abandons any in-flight probe and detaches the listener
func (t *Track) Close() {
	if t.closed {
		return
	}
	t.closed = true
	t.stopTicking()
	if t.cancelProbe != nil {
		t.cancelProbe()
		t.cancelProbe = nil
	}
	t.playing = false
	t.listener = nopListener{}
}

func (t *Track) livePosition() float64 {
	if !t.playing {
		return t.anchorPos
	}
	elapsed := t.now().Sub(t.anchorWall).Seconds() * t.rate
	return timeline.Clamp(t.anchorPos+elapsed, 0, t.duration)
}

// tick advances the track on behalf of the ticker goroutine
func (t *Track) tick(playGen uint64) {
	if t.closed || !t.playing || playGen != t.playGen {
		return
	}

	pos := t.livePosition()
	if pos < t.duration {
		t.listener.OnTimeUpdate(pos)
		return
	}

	t.anchorPos = t.duration
	t.playing = false
	t.ended = true
	t.stopTicking()

	t.listener.OnTimeUpdate(t.duration)
	t.listener.OnEnded()
}

func (t *Track) startTicking() {
	t.stopTicking()

	stop := make(chan struct{})
	t.stopTicks = stop
	gen := t.playGen
	interval := t.interval
	dispatcher := t.dispatcher

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				dispatcher.Post(func() { t.tick(gen) })
			}
		}
	}()
}

func (t *Track) stopTicking() {
	t.playGen++
	if t.stopTicks != nil {
		close(t.stopTicks)
		t.stopTicks = nil
	}
}
