package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stwalsh4118/duet/internal/composition"
	"github.com/stwalsh4118/duet/internal/logger"
	"github.com/stwalsh4118/duet/internal/scrub"
	"github.com/stwalsh4118/duet/internal/session"
	"github.com/stwalsh4118/duet/internal/timeline"
)

// sessionManager defines the interface required by SessionHandler for session management
type sessionManager interface {
	Create(params session.CreateParams) (*session.Session, error)
	Get(id uuid.UUID) (*session.Session, error)
	List() []*session.Session
	Delete(id uuid.UUID) error
}

// CreateSessionRequest creates a session from a saved composition or from
// inline sources. composition_id wins when both are given.
type CreateSessionRequest struct {
	CompositionID string `json:"composition_id,omitempty"`
	VideoURL      string `json:"video_url,omitempty"`
	AudioURL      string `json:"audio_url,omitempty"`
}

// SeekRequest moves the shared play-head
type SeekRequest struct {
	Time *float64 `json:"time" binding:"required"`
}

// PointRequest is a pointer position in timeline coordinates
type PointRequest struct {
	X *float64 `json:"x" binding:"required"`
	Y *float64 `json:"y" binding:"required"`
}

// MenuRequest reports a context menu opening or closing
type MenuRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// SessionListResponse represents a list of sessions
type SessionListResponse struct {
	Sessions []session.View `json:"sessions"`
}

// ClickResponse pairs the outcome of a click with the resulting view
type ClickResponse struct {
	Result scrub.ClickResult `json:"result"`
	View   session.View      `json:"view"`
}

// ContextClickResponse pairs the outcome of a context click with the resulting view
type ContextClickResponse struct {
	Result session.ContextClickResult `json:"result"`
	View   session.View               `json:"view"`
}

// SessionHandler handles playback session API requests
type SessionHandler struct {
	manager      sessionManager
	compositions compositionService
}

// NewSessionHandler creates a new session handler instance
func NewSessionHandler(manager *session.Manager, compositions *composition.Service) *SessionHandler {
	return &SessionHandler{
		manager:      manager,
		compositions: compositions,
	}
}

// CreateSession handles POST /api/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	params := session.CreateParams{
		Sources: session.Sources{VideoURL: req.VideoURL, AudioURL: req.AudioURL},
	}

	if req.CompositionID != "" {
		compositionID, err := uuid.Parse(req.CompositionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_id",
				Message: "Invalid composition ID format",
			})
			return
		}
		found, err := h.compositions.GetByID(ctx, compositionID)
		if err != nil {
			writeCompositionError(c, err, "retrieval_failed", "Failed to retrieve composition")
			return
		}
		params.CompositionID = &found.ID
		params.Sources = session.Sources{VideoURL: found.VideoURL, AudioURL: found.AudioURL}
	} else if !validSources(c, params.Sources) {
		return
	}

	s, err := h.manager.Create(params)
	if err != nil {
		writeSessionError(c, err)
		return
	}

	view, err := s.View(ctx)
	if err != nil {
		writeSessionError(c, err)
		return
	}

	logger.Log.Info().
		Str("session_id", s.ID.String()).
		Str("client_ip", c.ClientIP()).
		Msg("Playback session created")

	c.JSON(http.StatusCreated, view)
}

// ListSessions handles GET /api/sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	views := []session.View{}
	for _, s := range h.manager.List() {
		view, err := s.View(ctx)
		if err != nil {
			// closed between List and View
			continue
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, SessionListResponse{Sessions: views})
}

// GetSession handles GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	h.withSession(c, func(ctx context.Context, s *session.Session) (any, error) {
		return s.View(ctx)
	})
}

// DeleteSession handles DELETE /api/sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	id, ok := parseID(c, "session")
	if !ok {
		return
	}

	if err := h.manager.Delete(id); err != nil {
		writeSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, DeleteResponse{
		Message: "Session closed successfully",
	})
}

// TogglePlayPause handles POST /api/sessions/:id/toggle
func (h *SessionHandler) TogglePlayPause(c *gin.Context) {
	h.withSession(c, func(ctx context.Context, s *session.Session) (any, error) {
		return s.TogglePlayPause(ctx)
	})
}

// Restart handles POST /api/sessions/:id/restart
func (h *SessionHandler) Restart(c *gin.Context) {
	h.withSession(c, func(ctx context.Context, s *session.Session) (any, error) {
		return s.Restart(ctx)
	})
}

// Seek handles POST /api/sessions/:id/seek
func (h *SessionHandler) Seek(c *gin.Context) {
	var req SeekRequest
	if !bindJSON(c, &req) {
		return
	}
	h.withSession(c, func(ctx context.Context, s *session.Session) (any, error) {
		return s.Seek(ctx, *req.Time)
	})
}

// Click handles POST /api/sessions/:id/click
func (h *SessionHandler) Click(c *gin.Context) {
	var req PointRequest
	if !bindJSON(c, &req) {
		return
	}
	h.withSession(c, func(ctx context.Context, s *session.Session) (any, error) {
		result, view, err := s.Click(ctx, *req.X, *req.Y)
		return ClickResponse{Result: result, View: view}, err
	})
}

// ContextClick handles POST /api/sessions/:id/context-click
func (h *SessionHandler) ContextClick(c *gin.Context) {
	var req PointRequest
	if !bindJSON(c, &req) {
		return
	}
	h.withSession(c, func(ctx context.Context, s *session.Session) (any, error) {
		result, view, err := s.ContextClick(ctx, *req.X, *req.Y)
		return ContextClickResponse{Result: result, View: view}, err
	})
}

// SetLayout handles PUT /api/sessions/:id/layout
func (h *SessionHandler) SetLayout(c *gin.Context) {
	var layout scrub.Layout
	if !bindJSON(c, &layout) {
		return
	}
	h.withSession(c, func(ctx context.Context, s *session.Session) (any, error) {
		return s.SetLayout(ctx, layout)
	})
}

// SetSources handles PUT /api/sessions/:id/sources
func (h *SessionHandler) SetSources(c *gin.Context) {
	var sources session.Sources
	if !bindJSON(c, &sources) {
		return
	}
	if !validSources(c, sources) {
		return
	}
	h.withSession(c, func(ctx context.Context, s *session.Session) (any, error) {
		return s.SetSources(ctx, sources)
	})
}

// SetMenuVisible handles PUT /api/sessions/:id/menus/:track
func (h *SessionHandler) SetMenuVisible(c *gin.Context) {
	kind, err := timeline.ParseTrackKind(c.Param("track"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_track",
			Message: "Track must be video or audio",
		})
		return
	}

	var req MenuRequest
	if !bindJSON(c, &req) {
		return
	}
	h.withSession(c, func(ctx context.Context, s *session.Session) (any, error) {
		return s.SetMenuVisible(ctx, kind, *req.Visible)
	})
}

// withSession resolves :id, runs op against the session, and writes its
// result as JSON
func (h *SessionHandler) withSession(c *gin.Context, op func(ctx context.Context, s *session.Session) (any, error)) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := op(ctx, s)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SessionHandler) lookup(c *gin.Context) (*session.Session, bool) {
	id, ok := parseID(c, "session")
	if !ok {
		return nil, false
	}
	s, err := h.manager.Get(id)
	if err != nil {
		writeSessionError(c, err)
		return nil, false
	}
	return s, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return false
	}
	return true
}

func validSources(c *gin.Context, sources session.Sources) bool {
	for _, source := range []string{sources.VideoURL, sources.AudioURL} {
		if err := composition.ValidateSource(source); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: err.Error(),
			})
			return false
		}
	}
	return true
}

// writeSessionError maps session errors to HTTP responses
func writeSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "session_not_found",
			Message: "Session not found",
		})
	case errors.Is(err, session.ErrLoopStopped):
		c.JSON(http.StatusGone, ErrorResponse{
			Error:   "session_closed",
			Message: "Session has been closed",
		})
	case errors.Is(err, session.ErrTooManySessions):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error:   "too_many_sessions",
			Message: "Session limit reached",
		})
	case errors.Is(err, session.ErrManagerStopped):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "service_unavailable",
			Message: "Playback service is unavailable",
		})
	case errors.Is(err, scrub.ErrInvalidRect), errors.Is(err, timeline.ErrUnknownTrack):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{
			Error:   "timeout",
			Message: "Session did not respond in time",
		})
	default:
		logger.Log.Error().
			Err(err).
			Str("path", c.Request.URL.Path).
			Msg("Session request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "session_error",
			Message: "Session request failed",
		})
	}
}

// SetupSessionRoutes registers playback session routes
func SetupSessionRoutes(apiGroup *gin.RouterGroup, manager *session.Manager, compositions *composition.Service) {
	registerSessionRoutes(apiGroup, NewSessionHandler(manager, compositions), NewEventsHandler(manager))
}

func registerSessionRoutes(apiGroup *gin.RouterGroup, handler *SessionHandler, events *EventsHandler) {
	sessions := apiGroup.Group("/sessions")

	sessions.POST("", handler.CreateSession)
	sessions.GET("", handler.ListSessions)
	sessions.GET("/:id", handler.GetSession)
	sessions.DELETE("/:id", handler.DeleteSession)

	sessions.POST("/:id/toggle", handler.TogglePlayPause)
	sessions.POST("/:id/restart", handler.Restart)
	sessions.POST("/:id/seek", handler.Seek)
	sessions.POST("/:id/click", handler.Click)
	sessions.POST("/:id/context-click", handler.ContextClick)

	sessions.PUT("/:id/layout", handler.SetLayout)
	sessions.PUT("/:id/sources", handler.SetSources)
	sessions.PUT("/:id/menus/:track", handler.SetMenuVisible)

	sessions.GET("/:id/events", events.Stream)
}
