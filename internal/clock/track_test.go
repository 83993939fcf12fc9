package clock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/duet/internal/media"
	"github.com/stwalsh4118/duet/internal/timeline"
)

// queueDispatcher collects posted closures so tests decide when they run
type queueDispatcher struct {
	queue chan func()
}

func newQueueDispatcher() *queueDispatcher {
	return &queueDispatcher{queue: make(chan func(), 64)}
}

func (d *queueDispatcher) Post(fn func()) {
	d.queue <- fn
}

// runNext runs the next posted closure, failing if none arrives in time
func (d *queueDispatcher) runNext(t *testing.T) {
	t.Helper()
	select {
	case fn := <-d.queue:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a posted notification")
	}
}

type fakeWall struct {
	now time.Time
}

func (w *fakeWall) Now() time.Time { return w.now }

func (w *fakeWall) Advance(d time.Duration) { w.now = w.now.Add(d) }

type recordingListener struct {
	durations []float64
	updates   []float64
	ended     int
}

func (l *recordingListener) OnMetadataLoaded(d float64) { l.durations = append(l.durations, d) }
func (l *recordingListener) OnTimeUpdate(t float64)     { l.updates = append(l.updates, t) }
func (l *recordingListener) OnEnded()                   { l.ended++ }

func fixedProber(durations map[string]float64) media.Prober {
	return media.ProberFunc(func(_ context.Context, source string) (*media.Metadata, error) {
		d, ok := durations[source]
		if !ok {
			return nil, media.ErrFileNotFound
		}
		return &media.Metadata{Duration: d, HasVideo: true, HasAudio: true}, nil
	})
}

// newTestTrack returns a track whose ticker never fires on its own
func newTestTrack(prober media.Prober) (*Track, *queueDispatcher, *fakeWall, *recordingListener) {
	d := newQueueDispatcher()
	wall := &fakeWall{now: time.Unix(1_700_000_000, 0)}
	l := &recordingListener{}
	tr := NewTrack(timeline.TrackVideo, prober, d, TrackOptions{
		Interval: time.Hour,
		Now:      wall.Now,
	})
	tr.SetListener(l)
	return tr, d, wall, l
}

func loadedTrack(t *testing.T, duration float64) (*Track, *queueDispatcher, *fakeWall, *recordingListener) {
	t.Helper()
	tr, d, wall, l := newTestTrack(fixedProber(map[string]float64{"clip.mp4": duration}))
	tr.Load("clip.mp4")
	d.runNext(t)
	require.True(t, tr.IsLoaded())
	return tr, d, wall, l
}

func TestTrack_LoadReportsDuration(t *testing.T) {
	tr, _, _, l := loadedTrack(t, 120)

	assert.Equal(t, 120.0, tr.Duration())
	assert.Equal(t, 0.0, tr.CurrentTime())
	assert.Equal(t, []float64{120}, l.durations)
	assert.Equal(t, "clip.mp4", tr.Source())
	assert.Equal(t, timeline.TrackVideo, tr.Kind())
}

func TestTrack_LoadFailureStaysUnloaded(t *testing.T) {
	tr, d, _, l := newTestTrack(fixedProber(nil))

	tr.Load("missing.mp4")
	d.runNext(t)

	assert.False(t, tr.IsLoaded())
	assert.Equal(t, 0.0, tr.Duration())
	assert.Empty(t, l.durations)
}

func TestTrack_StaleLoadDiscarded(t *testing.T) {
	release := make(chan struct{})
	prober := media.ProberFunc(func(ctx context.Context, source string) (*media.Metadata, error) {
		if source == "slow.mp4" {
			<-release
			return &media.Metadata{Duration: 999, HasVideo: true}, nil
		}
		return &media.Metadata{Duration: 30, HasVideo: true}, nil
	})
	tr, d, _, l := newTestTrack(prober)

	tr.Load("slow.mp4")
	tr.Load("fast.mp4")
	d.runNext(t)
	require.Equal(t, 30.0, tr.Duration())

	close(release)
	d.runNext(t)

	assert.Equal(t, 30.0, tr.Duration())
	assert.Equal(t, "fast.mp4", tr.Source())
	assert.Equal(t, []float64{30}, l.durations)
}

func TestTrack_EmptySourceResets(t *testing.T) {
	tr, _, _, _ := loadedTrack(t, 60)

	tr.Load("")

	assert.False(t, tr.IsLoaded())
	assert.Equal(t, 0.0, tr.Duration())
	assert.Equal(t, "", tr.Source())
}

func TestTrack_CommandsIgnoredUntilLoaded(t *testing.T) {
	tr, _, _, _ := newTestTrack(fixedProber(nil))

	tr.Play()
	tr.Seek(10)

	assert.False(t, tr.IsPlaying())
	assert.Equal(t, 0.0, tr.CurrentTime())
}

func TestTrack_PlayAdvancesWithWallTime(t *testing.T) {
	tr, _, wall, l := loadedTrack(t, 120)

	tr.Play()
	require.True(t, tr.IsPlaying())

	wall.Advance(2500 * time.Millisecond)
	assert.InDelta(t, 2.5, tr.CurrentTime(), 1e-9)

	tr.tick(tr.playGen)
	require.Len(t, l.updates, 1)
	assert.InDelta(t, 2.5, l.updates[0], 1e-9)

	tr.Pause()
	wall.Advance(10 * time.Second)
	assert.False(t, tr.IsPlaying())
	assert.InDelta(t, 2.5, tr.CurrentTime(), 1e-9)
}

func TestTrack_PlaybackRate(t *testing.T) {
	d := newQueueDispatcher()
	wall := &fakeWall{now: time.Unix(0, 0)}
	tr := NewTrack(timeline.TrackAudio, fixedProber(map[string]float64{"a.mp3": 100}), d, TrackOptions{
		Interval: time.Hour,
		Rate:     2,
		Now:      wall.Now,
	})
	tr.Load("a.mp3")
	d.runNext(t)

	tr.Play()
	wall.Advance(3 * time.Second)
	assert.InDelta(t, 6.0, tr.CurrentTime(), 1e-9)
}

func TestTrack_SeekClampsToDuration(t *testing.T) {
	tr, _, _, _ := loadedTrack(t, 90)

	tr.Seek(95)
	assert.Equal(t, 90.0, tr.CurrentTime())

	tr.Seek(-4)
	assert.Equal(t, 0.0, tr.CurrentTime())
}

func TestTrack_SeekWhilePlayingReanchors(t *testing.T) {
	tr, _, wall, _ := loadedTrack(t, 120)

	tr.Play()
	wall.Advance(5 * time.Second)
	tr.Seek(40)
	wall.Advance(time.Second)

	assert.InDelta(t, 41.0, tr.CurrentTime(), 1e-9)
}

func TestTrack_EndedFiresOnce(t *testing.T) {
	tr, _, wall, l := loadedTrack(t, 10)

	tr.Play()
	gen := tr.playGen
	wall.Advance(12 * time.Second)
	tr.tick(gen)
	tr.tick(gen)
	tr.tick(tr.playGen)

	assert.Equal(t, 1, l.ended)
	assert.True(t, tr.Ended())
	assert.False(t, tr.IsPlaying())
	assert.Equal(t, 10.0, tr.CurrentTime())
	require.NotEmpty(t, l.updates)
	assert.Equal(t, 10.0, l.updates[len(l.updates)-1])
}

func TestTrack_PlayAfterEndedRestarts(t *testing.T) {
	tr, _, wall, _ := loadedTrack(t, 10)

	tr.Play()
	wall.Advance(11 * time.Second)
	tr.tick(tr.playGen)
	require.True(t, tr.Ended())

	tr.Play()
	assert.False(t, tr.Ended())
	assert.Equal(t, 0.0, tr.CurrentTime())
	wall.Advance(time.Second)
	assert.InDelta(t, 1.0, tr.CurrentTime(), 1e-9)
}

func TestTrack_SeekBeforeEndClearsEnded(t *testing.T) {
	tr, _, wall, _ := loadedTrack(t, 10)

	tr.Play()
	wall.Advance(11 * time.Second)
	tr.tick(tr.playGen)
	require.True(t, tr.Ended())

	tr.Seek(10)
	assert.True(t, tr.Ended())

	tr.Seek(3)
	assert.False(t, tr.Ended())
	assert.Equal(t, 3.0, tr.CurrentTime())
}

func TestTrack_TickerPostsThroughDispatcher(t *testing.T) {
	d := newQueueDispatcher()
	tr := NewTrack(timeline.TrackVideo, fixedProber(map[string]float64{"clip.mp4": 60}), d, TrackOptions{
		Interval: 5 * time.Millisecond,
	})
	l := &recordingListener{}
	tr.SetListener(l)
	tr.Load("clip.mp4")
	d.runNext(t)

	tr.Play()
	d.runNext(t)
	tr.Close()

	assert.Len(t, l.updates, 1)
}

func TestTrack_CloseStopsNotifications(t *testing.T) {
	tr, d, _, l := newTestTrack(fixedProber(map[string]float64{"clip.mp4": 60}))

	tr.Load("clip.mp4")
	tr.Close()
	d.runNext(t)

	assert.False(t, tr.IsLoaded())
	assert.Empty(t, l.durations)

	tr.Load("clip.mp4")
	tr.Play()
	assert.Equal(t, "clip.mp4", tr.Source())
	assert.False(t, tr.IsPlaying())
}

func TestTrack_CancelledProbeContext(t *testing.T) {
	cancelled := make(chan struct{})
	prober := media.ProberFunc(func(ctx context.Context, _ string) (*media.Metadata, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, errors.Join(media.ErrTimeout, ctx.Err())
	})
	tr, d, _, _ := newTestTrack(prober)

	tr.Load("never.mp4")
	tr.Load("")

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("probe context was not cancelled on reload")
	}
	d.runNext(t)
	assert.False(t, tr.IsLoaded())
}
