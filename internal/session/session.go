// Package session hosts synchronized timelines for remote presentation layers.
// Each session owns one event loop; its clocks, controller and scrub surface
// are touched only from that loop.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stwalsh4118/duet/internal/clock"
	"github.com/stwalsh4118/duet/internal/logger"
	"github.com/stwalsh4118/duet/internal/media"
	"github.com/stwalsh4118/duet/internal/playback"
	"github.com/stwalsh4118/duet/internal/scrub"
	"github.com/stwalsh4118/duet/internal/timeline"
)

// Sources are the media URLs of a session's tracks. An empty URL means the
// track is absent.
type Sources struct {
	VideoURL string `json:"video_url"`
	AudioURL string `json:"audio_url"`
}

// URL returns the source of the given track
func (s Sources) URL(kind timeline.TrackKind) string {
	if kind == timeline.TrackAudio {
		return s.AudioURL
	}
	return s.VideoURL
}

// View is a consistent picture of a session taken on its event loop
type View struct {
	ID            uuid.UUID         `json:"id"`
	CompositionID *uuid.UUID        `json:"composition_id,omitempty"`
	Playback      playback.Snapshot `json:"playback"`
	Layout        scrub.Layout      `json:"layout"`
	Menus         scrub.MenuState   `json:"menus"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ContextClickResult reports which handle a context click opened a menu for
type ContextClickResult struct {
	Opened bool               `json:"opened"`
	Track  timeline.TrackKind `json:"track,omitempty"`
}

// Options configures a new session
type Options struct {
	CompositionID        *uuid.UUID
	Sources              Sources
	Prober               media.Prober
	Track                clock.TrackOptions
	AutoPauseOnBothEnded bool
	QueueSize            int
}

// Session is one synchronized timeline and its event loop
type Session struct {
	ID            uuid.UUID
	CompositionID *uuid.UUID
	CreatedAt     time.Time

	loop       *Loop
	controller *playback.Controller
	surface    *scrub.Surface

	// owned by the loop
	watchers    map[uint64]chan View
	nextWatcher uint64

	mu           sync.RWMutex
	lastActivity time.Time
	watcherCount int
	closed       bool
}

// New creates a session, starts its event loop and begins loading its sources
func New(opts Options) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:            uuid.New(),
		CompositionID: opts.CompositionID,
		CreatedAt:     now,
		loop:          NewLoop(opts.QueueSize),
		watchers:      make(map[uint64]chan View),
		lastActivity:  now,
	}

	factory := func(kind timeline.TrackKind) clock.MediaClock {
		return clock.NewTrack(kind, opts.Prober, s.loop, opts.Track)
	}
	s.controller = playback.New(nil, nil, playback.Options{
		AutoPauseOnBothEnded: opts.AutoPauseOnBothEnded,
		Factory:              factory,
	})
	s.surface = scrub.NewSurface(s.controller)
	s.controller.Subscribe(func(playback.Snapshot) { s.broadcast() })

	// The loop is not running yet, so this goroutine still owns the state
	s.applySources(opts.Sources)
	s.loop.Start()

	logger.Log.Info().
		Str("session_id", s.ID.String()).
		Str("video_url", opts.Sources.VideoURL).
		Str("audio_url", opts.Sources.AudioURL).
		Msg("Playback session created")

	return s
}

// TogglePlayPause flips the play/pause state
func (s *Session) TogglePlayPause(ctx context.Context) (View, error) {
	return s.apply(ctx, func() { s.controller.TogglePlayPause() })
}

// Restart rewinds both tracks to 0
func (s *Session) Restart(ctx context.Context) (View, error) {
	return s.apply(ctx, s.controller.Restart)
}

// Seek moves the shared play-head to t
func (s *Session) Seek(ctx context.Context, t float64) (View, error) {
	return s.apply(ctx, func() { s.controller.SeekTo(t) })
}

// Click forwards a primary click to the scrub surface
func (s *Session) Click(ctx context.Context, x, y float64) (scrub.ClickResult, View, error) {
	var result scrub.ClickResult
	view, err := s.apply(ctx, func() {
		result = s.surface.Click(x, y)
	})
	return result, view, err
}

// ContextClick forwards a secondary click to the scrub surface
func (s *Session) ContextClick(ctx context.Context, x, y float64) (ContextClickResult, View, error) {
	var result ContextClickResult
	view, err := s.apply(ctx, func() {
		result.Track, result.Opened = s.surface.ContextClick(x, y)
		if result.Opened {
			s.broadcast()
		}
	})
	return result, view, err
}

// SetMenuVisible records a context menu opening or closing
func (s *Session) SetMenuVisible(ctx context.Context, kind timeline.TrackKind, visible bool) (View, error) {
	var opErr error
	view, err := s.apply(ctx, func() {
		if opErr = s.surface.SetMenuVisible(kind, visible); opErr == nil {
			s.broadcast()
		}
	})
	if err != nil {
		return view, err
	}
	return view, opErr
}

// SetLayout records the rendered timeline geometry
func (s *Session) SetLayout(ctx context.Context, layout scrub.Layout) (View, error) {
	var opErr error
	view, err := s.apply(ctx, func() {
		if opErr = s.surface.SetLayout(layout); opErr == nil {
			s.broadcast()
		}
	})
	if err != nil {
		return view, err
	}
	return view, opErr
}

// SetSources replaces both track sources. Unchanged URLs keep their tracks.
func (s *Session) SetSources(ctx context.Context, sources Sources) (View, error) {
	return s.apply(ctx, func() { s.applySources(sources) })
}

// View returns the current state of the session
func (s *Session) View(ctx context.Context) (View, error) {
	return s.apply(ctx, func() {})
}

// Watch streams a view after every change, starting with the current one. A
// slow reader only ever sees the latest view. The returned func stops the
// stream and closes the channel.
func (s *Session) Watch(ctx context.Context) (<-chan View, func(), error) {
	ch := make(chan View, 1)
	var id uint64
	err := s.loop.Do(ctx, func() {
		s.nextWatcher++
		id = s.nextWatcher
		s.watchers[id] = ch
		ch <- s.view()
	})
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	s.watcherCount++
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			s.watcherCount--
			s.mu.Unlock()
			s.loop.Post(func() {
				if w, ok := s.watchers[id]; ok {
					delete(s.watchers, id)
					close(w)
				}
			})
		})
	}
	return ch, cancel, nil
}

// IdleDuration returns how long the session has gone without a command
func (s *Session) IdleDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastActivity)
}

// ShouldCleanup reports whether the session is unwatched and idle past timeout
func (s *Session) ShouldCleanup(timeout time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watcherCount == 0 && time.Since(s.lastActivity) > timeout
}

// Close tears down the tracks, ends every watch and stops the event loop
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.loop.Do(ctx, func() {
		s.controller.Close()
		for id, w := range s.watchers {
			delete(s.watchers, id)
			close(w)
		}
	})
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("session_id", s.ID.String()).
			Msg("Session teardown did not complete on its event loop")
	}
	s.loop.Stop()

	logger.Log.Info().
		Str("session_id", s.ID.String()).
		Msg("Playback session closed")
}

// apply runs fn on the loop and returns the view it left behind
func (s *Session) apply(ctx context.Context, fn func()) (View, error) {
	s.touch()
	var view View
	err := s.loop.Do(ctx, func() {
		fn()
		view = s.view()
	})
	return view, err
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) applySources(sources Sources) {
	for _, kind := range timeline.Kinds {
		if err := s.controller.SetSource(kind, sources.URL(kind)); err != nil {
			logger.Log.Error().
				Err(err).
				Str("session_id", s.ID.String()).
				Str("track", kind.String()).
				Msg("Failed to set track source")
		}
	}
}

func (s *Session) view() View {
	return View{
		ID:            s.ID,
		CompositionID: s.CompositionID,
		Playback:      s.controller.Snapshot(),
		Layout:        s.surface.Layout(),
		Menus:         s.surface.Menus(),
		CreatedAt:     s.CreatedAt,
	}
}

// broadcast hands the current view to every watcher, replacing any view the
// watcher has not read yet
func (s *Session) broadcast() {
	if len(s.watchers) == 0 {
		return
	}
	v := s.view()
	for _, w := range s.watchers {
		select {
		case <-w:
		default:
		}
		w <- v
	}
}
