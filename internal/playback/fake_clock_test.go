package playback

import (
	"github.com/stwalsh4118/duet/internal/clock"
	"github.com/stwalsh4118/duet/internal/timeline"
)

// fakeClock is a MediaClock driven by the test. Notifications fire only when
// the test calls loaded, update or end.
type fakeClock struct {
	listener clock.Listener

	source   string
	duration float64
	current  float64
	isLoaded bool
	playing  bool
	ended    bool
	closed   bool

	plays  int
	pauses int
	seeks  []float64
}

func newFakeClock(source string, duration float64) *fakeClock {
	return &fakeClock{source: source, duration: duration, isLoaded: duration > 0}
}

func (f *fakeClock) Load(source string) {
	f.source = source
	f.duration = 0
	f.current = 0
	f.isLoaded = false
	f.playing = false
	f.ended = false
}

func (f *fakeClock) Play() {
	f.plays++
	if !f.isLoaded {
		return
	}
	if f.ended || f.current >= f.duration {
		f.current = 0
		f.ended = false
	}
	f.playing = true
}

func (f *fakeClock) Pause() {
	f.pauses++
	f.playing = false
}

func (f *fakeClock) Seek(t float64) {
	f.seeks = append(f.seeks, t)
	if !f.isLoaded {
		return
	}
	f.current = timeline.Clamp(t, 0, f.duration)
	if f.current < f.duration {
		f.ended = false
	}
}

func (f *fakeClock) Duration() float64    { return f.duration }
func (f *fakeClock) CurrentTime() float64 { return f.current }
func (f *fakeClock) IsLoaded() bool       { return f.isLoaded }
func (f *fakeClock) IsPlaying() bool      { return f.playing }
func (f *fakeClock) Ended() bool          { return f.ended }
func (f *fakeClock) Source() string       { return f.source }

func (f *fakeClock) SetListener(l clock.Listener) { f.listener = l }

func (f *fakeClock) Close() {
	f.closed = true
	f.playing = false
}

// loaded completes a pending load
func (f *fakeClock) loaded(duration float64) {
	f.duration = duration
	f.isLoaded = true
	f.listener.OnMetadataLoaded(duration)
}

// update reports playback progress to t
func (f *fakeClock) update(t float64) {
	f.current = t
	f.listener.OnTimeUpdate(t)
}

// end finishes playback, leaving the position slightly short the way real
// media stacks sometimes do
func (f *fakeClock) end() {
	f.current = f.duration - 0.01
	f.playing = false
	f.ended = true
	f.listener.OnEnded()
}

func (f *fakeClock) lastSeek() float64 {
	if len(f.seeks) == 0 {
		return -1
	}
	return f.seeks[len(f.seeks)-1]
}
