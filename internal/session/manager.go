package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stwalsh4118/duet/internal/clock"
	"github.com/stwalsh4118/duet/internal/config"
	"github.com/stwalsh4118/duet/internal/logger"
	"github.com/stwalsh4118/duet/internal/media"
)

// Common errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("maximum number of sessions reached")
	ErrManagerStopped  = errors.New("session manager has been stopped")
)

const defaultCleanupInterval = time.Minute

// CreateParams describes a session to create
type CreateParams struct {
	CompositionID *uuid.UUID
	Sources       Sources
}

// Manager owns every live session and closes the ones left idle
type Manager struct {
	prober      media.Prober
	playbackCfg config.PlaybackConfig
	sessionCfg  config.SessionConfig

	sessions map[uuid.UUID]*Session
	mu       sync.RWMutex
	stopped  bool

	cleanupTicker *time.Ticker
	stopChan      chan struct{}
	cleanupDone   chan struct{}
}

// NewManager creates a session manager. Sessions probe their sources with prober.
func NewManager(prober media.Prober, playbackCfg config.PlaybackConfig, sessionCfg config.SessionConfig) *Manager {
	return &Manager{
		prober:      prober,
		playbackCfg: playbackCfg,
		sessionCfg:  sessionCfg,
		sessions:    make(map[uuid.UUID]*Session),
		stopChan:    make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Start begins the background idle-session cleanup
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrManagerStopped
	}
	if m.cleanupTicker != nil {
		return nil
	}

	if m.sessionCfg.CleanupInterval <= 0 {
		m.sessionCfg.CleanupInterval = defaultCleanupInterval
	}
	m.cleanupTicker = time.NewTicker(m.sessionCfg.CleanupInterval)
	go m.runCleanupLoop()

	logger.Log.Info().
		Dur("cleanup_interval", m.sessionCfg.CleanupInterval).
		Dur("idle_timeout", m.sessionCfg.IdleTimeout).
		Int("max_sessions", m.sessionCfg.MaxSessions).
		Msg("Session manager started")

	return nil
}

// Stop ends the cleanup loop and closes every session
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	started := m.cleanupTicker != nil
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	logger.Log.Info().Msg("Stopping session manager...")

	close(m.stopChan)
	if started {
		<-m.cleanupDone
		m.cleanupTicker.Stop()
	}

	for _, s := range sessions {
		s.Close()
	}

	logger.Log.Info().
		Int("closed_sessions", len(sessions)).
		Msg("Session manager stopped")
}

// Create starts a new session
func (m *Manager) Create(params CreateParams) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, ErrManagerStopped
	}
	if m.sessionCfg.MaxSessions > 0 && len(m.sessions) >= m.sessionCfg.MaxSessions {
		return nil, ErrTooManySessions
	}

	s := New(Options{
		CompositionID: params.CompositionID,
		Sources:       params.Sources,
		Prober:        m.prober,
		Track: clock.TrackOptions{
			Interval: m.playbackCfg.TimeUpdateInterval,
			Rate:     m.playbackCfg.PlaybackRate,
		},
		AutoPauseOnBothEnded: m.playbackCfg.AutoPauseOnBothEnded,
		QueueSize:            m.playbackCfg.EventQueueSize,
	})
	m.sessions[s.ID] = s

	return s, nil
}

// Get returns a session by ID
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns every live session, oldest first
func (m *Manager) List() []*Session {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}

// Delete closes and forgets a session
func (m *Manager) Delete(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// runCleanupLoop runs periodic cleanup of idle sessions
func (m *Manager) runCleanupLoop() {
	defer close(m.cleanupDone)

	logger.Log.Debug().Msg("Cleanup loop started")

	for {
		select {
		case <-m.stopChan:
			logger.Log.Debug().Msg("Cleanup loop stopping")
			return
		case <-m.cleanupTicker.C:
			m.performCleanup()
		}
	}
}

func (m *Manager) performCleanup() {
	closed := 0
	for _, s := range m.List() {
		if !s.ShouldCleanup(m.sessionCfg.IdleTimeout) {
			continue
		}

		logger.Log.Info().
			Str("session_id", s.ID.String()).
			Dur("idle_duration", s.IdleDuration()).
			Msg("Cleaning up idle session")

		if err := m.Delete(s.ID); err != nil {
			logger.Log.Debug().
				Err(err).
				Str("session_id", s.ID.String()).
				Msg("Idle session already removed")
			continue
		}
		closed++
	}

	if closed > 0 {
		logger.Log.Info().
			Int("closed_count", closed).
			Int("active_count", m.Count()).
			Msg("Cleanup cycle completed")
	}
}
