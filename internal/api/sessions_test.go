package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/duet/internal/models"
	"github.com/stwalsh4118/duet/internal/playback"
	"github.com/stwalsh4118/duet/internal/scrub"
	"github.com/stwalsh4118/duet/internal/session"
	"github.com/stwalsh4118/duet/internal/timeline"
)

func createSession(t *testing.T, env *testEnv, body any) session.View {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[session.View](t, w)
}

func TestSessionHandler_PlaybackFlow(t *testing.T) {
	env := setupTestRouter(t, 4)

	created := createSession(t, env, CreateSessionRequest{VideoURL: "video.mp4", AudioURL: "audio.mp3"})
	id := created.ID.String()
	view := env.waitForLoaded(t, id, 120)

	assert.True(t, view.Playback.TimelineVisible)
	assert.Equal(t, playback.StatePaused, view.Playback.State)
	assert.InDelta(t, 75.0, view.Playback.Audio.BarWidth, 1e-9)

	w := env.do(t, http.MethodPost, "/api/sessions/"+id+"/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[session.View](t, w).Playback.IsPlaying)

	w = env.do(t, http.MethodPost, "/api/sessions/"+id+"/seek", SeekRequest{Time: ptr(60.0)})
	require.Equal(t, http.StatusOK, w.Code)
	seeked := decode[session.View](t, w)
	assert.InDelta(t, 60.0, seeked.Playback.Video.CurrentTime, 0.5)
	assert.InDelta(t, 60.0, seeked.Playback.Audio.CurrentTime, 0.5)

	w = env.do(t, http.MethodPost, "/api/sessions/"+id+"/restart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	restarted := decode[session.View](t, w)
	assert.InDelta(t, 0.0, restarted.Playback.Video.CurrentTime, 0.5)
	assert.True(t, restarted.Playback.IsPlaying)

	w = env.do(t, http.MethodPost, "/api/sessions/"+id+"/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[session.View](t, w).Playback.IsPlaying)
}

func TestSessionHandler_ScrubSurface(t *testing.T) {
	env := setupTestRouter(t, 4)

	id := createSession(t, env, CreateSessionRequest{VideoURL: "video.mp4", AudioURL: "audio.mp3"}).ID.String()
	env.waitForLoaded(t, id, 120)

	layout := scrub.Layout{
		Timeline:    scrub.Rect{X: 0, Y: 0, Width: 200, Height: 40},
		VideoHandle: scrub.Rect{X: 100, Y: 0, Width: 4, Height: 20},
		AudioHandle: scrub.Rect{X: 150, Y: 20, Width: 4, Height: 20},
	}
	w := env.do(t, http.MethodPut, "/api/sessions/"+id+"/layout", layout)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, layout, decode[session.View](t, w).Layout)

	w = env.do(t, http.MethodPost, "/api/sessions/"+id+"/click", PointRequest{X: ptr(50.0), Y: ptr(10.0)})
	require.Equal(t, http.StatusOK, w.Code)
	click := decode[ClickResponse](t, w)
	assert.True(t, click.Result.Seeked)
	assert.InDelta(t, 30.0, click.Result.Time, 1e-9)
	assert.InDelta(t, 30.0, click.View.Playback.Video.CurrentTime, 1e-9)

	w = env.do(t, http.MethodPost, "/api/sessions/"+id+"/click", PointRequest{X: ptr(101.0), Y: ptr(5.0)})
	require.Equal(t, http.StatusOK, w.Code)
	swallowed := decode[ClickResponse](t, w)
	assert.True(t, swallowed.Result.Swallowed)
	assert.Equal(t, timeline.TrackVideo, swallowed.Result.Handle)
	assert.InDelta(t, 30.0, swallowed.View.Playback.Video.CurrentTime, 1e-9)

	w = env.do(t, http.MethodPost, "/api/sessions/"+id+"/context-click", PointRequest{X: ptr(151.0), Y: ptr(30.0)})
	require.Equal(t, http.StatusOK, w.Code)
	ctxClick := decode[ContextClickResponse](t, w)
	assert.True(t, ctxClick.Result.Opened)
	assert.Equal(t, timeline.TrackAudio, ctxClick.Result.Track)
	assert.True(t, ctxClick.View.Menus.Audio)

	w = env.do(t, http.MethodPut, "/api/sessions/"+id+"/menus/audio", MenuRequest{Visible: ptr(false)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[session.View](t, w).Menus.Audio)

	w = env.do(t, http.MethodPut, "/api/sessions/"+id+"/menus/subtitles", MenuRequest{Visible: ptr(true)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/sessions/"+id+"/layout", scrub.Layout{Timeline: scrub.Rect{Width: -1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandler_SetSources(t *testing.T) {
	env := setupTestRouter(t, 4)

	id := createSession(t, env, CreateSessionRequest{VideoURL: "video.mp4"}).ID.String()
	env.waitForLoaded(t, id, 120)

	w := env.do(t, http.MethodPut, "/api/sessions/"+id+"/sources", session.Sources{VideoURL: "", AudioURL: "audio.mp3"})
	require.Equal(t, http.StatusOK, w.Code)
	view := env.waitForLoaded(t, id, 90)
	assert.False(t, view.Playback.TimelineVisible)
	assert.False(t, view.Playback.Video.Present)

	w = env.do(t, http.MethodPut, "/api/sessions/"+id+"/sources", session.Sources{VideoURL: "http://[::1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandler_CreateFromComposition(t *testing.T) {
	env := setupTestRouter(t, 4)

	w := env.do(t, http.MethodPost, "/api/compositions", map[string]any{
		"name":      "Pair",
		"video_url": "video.mp4",
		"audio_url": "audio.mp3",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	comp := decode[models.Composition](t, w)

	view := createSession(t, env, CreateSessionRequest{CompositionID: comp.ID.String(), VideoURL: "ignored.mp4"})
	require.NotNil(t, view.CompositionID)
	assert.Equal(t, comp.ID, *view.CompositionID)

	loaded := env.waitForLoaded(t, view.ID.String(), 120)
	assert.Equal(t, "video.mp4", loaded.Playback.Video.Source)

	w = env.do(t, http.MethodPost, "/api/sessions", CreateSessionRequest{CompositionID: uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/sessions", CreateSessionRequest{CompositionID: "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandler_ListAndDelete(t *testing.T) {
	env := setupTestRouter(t, 2)

	first := createSession(t, env, CreateSessionRequest{})
	time.Sleep(2 * time.Millisecond)
	createSession(t, env, CreateSessionRequest{VideoURL: "video.mp4"})

	w := env.do(t, http.MethodPost, "/api/sessions", CreateSessionRequest{})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = env.do(t, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[SessionListResponse](t, w)
	require.Len(t, list.Sessions, 2)
	assert.Equal(t, first.ID, list.Sessions[0].ID)

	w = env.do(t, http.MethodDelete, "/api/sessions/"+first.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/sessions/"+first.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "session_not_found", decode[ErrorResponse](t, w).Error)

	w = env.do(t, http.MethodPost, "/api/sessions/"+first.ID.String()+"/toggle", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_BadRequests(t *testing.T) {
	env := setupTestRouter(t, 4)
	id := createSession(t, env, CreateSessionRequest{}).ID.String()

	tests := []struct {
		name string
		path string
		body any
	}{
		{"seek without time", "/api/sessions/" + id + "/seek", map[string]any{}},
		{"click without y", "/api/sessions/" + id + "/click", map[string]any{"x": 1}},
		{"bad session id", "/api/sessions/xyz/toggle", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}
