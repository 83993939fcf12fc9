package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/duet/internal/composition"
	"github.com/stwalsh4118/duet/internal/config"
	"github.com/stwalsh4118/duet/internal/db"
	"github.com/stwalsh4118/duet/internal/logger"
	"github.com/stwalsh4118/duet/internal/media"
	"github.com/stwalsh4118/duet/internal/session"
)

var testDurations = map[string]float64{
	"video.mp4": 120,
	"audio.mp3": 90,
}

type testEnv struct {
	router       *gin.Engine
	database     *db.DB
	manager      *session.Manager
	compositions *composition.Service
}

// setupTestRouter wires the full API against a temp database and an
// in-memory prober
func setupTestRouter(t *testing.T, maxSessions int) *testEnv {
	t.Helper()

	logger.Init("error", false)
	gin.SetMode(gin.TestMode)

	database, err := db.New(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	prober := media.ProberFunc(func(_ context.Context, source string) (*media.Metadata, error) {
		d, ok := testDurations[source]
		if !ok {
			return nil, media.ErrFileNotFound
		}
		return &media.Metadata{Duration: d, HasVideo: true, HasAudio: true}, nil
	})

	manager := session.NewManager(prober,
		config.PlaybackConfig{TimeUpdateInterval: time.Hour, EventQueueSize: 16, PlaybackRate: 1},
		config.SessionConfig{IdleTimeout: time.Hour, CleanupInterval: time.Hour, MaxSessions: maxSessions},
	)
	t.Cleanup(manager.Stop)

	compositions := composition.NewService(database, db.NewRepositories(database))

	router := gin.New()
	apiGroup := router.Group("/api")
	SetupHealthRoutes(apiGroup, database, media.NewCircuitBreaker(3, time.Minute), manager)
	SetupCompositionRoutes(apiGroup, compositions)
	SetupSessionRoutes(apiGroup, manager, compositions)

	return &testEnv{
		router:       router,
		database:     database,
		manager:      manager,
		compositions: compositions,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// waitForLoaded polls the session until its shared duration reaches want
func (e *testEnv) waitForLoaded(t *testing.T, id string, want float64) session.View {
	t.Helper()
	var view session.View
	require.Eventually(t, func() bool {
		w := e.do(t, http.MethodGet, "/api/sessions/"+id, nil)
		if w.Code != http.StatusOK {
			return false
		}
		view = decode[session.View](t, w)
		return view.Playback.SharedDuration == want
	}, 2*time.Second, 5*time.Millisecond)
	return view
}
