// Package clock models a single playable media resource as a clock: it knows
// its duration once metadata resolves, reports its position while playing,
// and announces the end of playback exactly once.
package clock

// Listener receives a media clock's notifications. Notifications are always
// delivered through the clock's Dispatcher, never from a foreign goroutine.
type Listener interface {
	// OnMetadataLoaded reports the duration once the source's metadata resolves
	OnMetadataLoaded(duration float64)

	// OnTimeUpdate reports the current position while playing, at irregular intervals
	OnTimeUpdate(currentTime float64)

	// OnEnded fires once when playback reaches the duration
	OnEnded()
}

// Dispatcher runs notification handlers on its owner's event loop
type Dispatcher interface {
	Post(fn func())
}

// DispatcherFunc adapts a function to the Dispatcher interface
type DispatcherFunc func(fn func())

// Post calls f(fn)
func (f DispatcherFunc) Post(fn func()) {
	f(fn)
}

// MediaClock wraps one media source. Play, Pause and Seek are fire-and-forget
// requests; their effects surface later as notifications. Implementations are
// driven from a single event loop and need not be safe for concurrent use.
type MediaClock interface {
	// Load starts asynchronous metadata resolution for source, discarding any
	// state and in-flight notifications of the previous source
	Load(source string)
	Play()
	Pause()
	// Seek moves the position, clamped to [0, Duration()]
	Seek(t float64)

	Duration() float64
	CurrentTime() float64
	IsLoaded() bool
	IsPlaying() bool
	Ended() bool
	Source() string

	SetListener(l Listener)
	// Close stops notifications and releases the resource
	Close()
}

// nopListener discards notifications
type nopListener struct{}

func (nopListener) OnMetadataLoaded(float64) {}
func (nopListener) OnTimeUpdate(float64)     {}
func (nopListener) OnEnded()                 {}
