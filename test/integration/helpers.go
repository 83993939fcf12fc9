//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/duet/internal/config"
	"github.com/stwalsh4118/duet/internal/db"
	"github.com/stwalsh4118/duet/internal/logger"
	"github.com/stwalsh4118/duet/internal/server"
	"github.com/stwalsh4118/duet/internal/session"
)

// testConfig returns a configuration with fast clocks so playback reaches the
// end of short playlists within a test
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, Host: "127.0.0.1", ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second},
		Database: config.DatabaseConfig{
			Path:              filepath.Join(t.TempDir(), "duet.db"),
			ConnectionTimeout: 5 * time.Second,
			EnableWAL:         true,
		},
		Logging: config.LoggingConfig{Level: "error"},
		Playback: config.PlaybackConfig{
			TimeUpdateInterval: 10 * time.Millisecond,
			EventQueueSize:     256,
			PlaybackRate:       50,
		},
		Probe: config.ProbeConfig{
			FFprobePath:      "ffprobe",
			Timeout:          5 * time.Second,
			HTTPTimeout:      2 * time.Second,
			FailureThreshold: 3,
			ResetTimeout:     time.Minute,
		},
		Session: config.SessionConfig{IdleTimeout: time.Hour, CleanupInterval: time.Hour, MaxSessions: 8},
	}
}

// setupTestServer opens a migrated database and serves the full router
func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger.Init("error", false)
	cfg := testConfig(t)
	require.NoError(t, cfg.Validate())

	database, err := db.New(cfg.Database)
	require.NoError(t, err, "Failed to open test database")

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err, "Failed to get SQL DB")

	// Resolve migrations relative to this file so tests run from any directory
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to get current file path")
	rootDir := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	require.NoError(t, db.RunMigrations(sqlDB, "file://"+filepath.Join(rootDir, "migrations")))

	srv := server.New(cfg, database)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		ts.Close()
		_ = database.Close()
	})
	return ts
}

// mediaPlaylist renders a VOD playlist of count segments of segment seconds
func mediaPlaylist(count int, segment float64) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n#EXT-X-PLAYLIST-TYPE:VOD\n", int(segment))
	for i := 0; i < count; i++ {
		fmt.Fprintf(&b, "#EXTINF:%.1f,\nsegment_%03d.ts\n", segment, i)
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

// writePlaylist writes a media playlist into dir and returns its path
func writePlaylist(t *testing.T, dir, name string, count int, segment float64) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(mediaPlaylist(count, segment)), 0600))
	return p
}

// doJSON sends body as JSON and decodes the response into out when non-nil
func doJSON(t *testing.T, ts *httptest.Server, method, path string, body, out any) int {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, ts.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// openEvents dials the session's event stream
func openEvents(t *testing.T, ts *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitForView reads views until one satisfies cond
func waitForView(t *testing.T, conn *websocket.Conn, timeout time.Duration, cond func(session.View) bool) session.View {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	for {
		var view session.View
		require.NoError(t, conn.ReadJSON(&view), "no matching view before deadline")
		if cond(view) {
			return view
		}
	}
}
