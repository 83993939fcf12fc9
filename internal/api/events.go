package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/stwalsh4118/duet/internal/logger"
	"github.com/stwalsh4118/duet/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// sessionLookup finds a live session by ID
type sessionLookup interface {
	Get(id uuid.UUID) (*session.Session, error)
}

// EventsHandler streams session views to presentation layers over WebSocket
type EventsHandler struct {
	sessions sessionLookup
	upgrader websocket.Upgrader
}

// NewEventsHandler creates a new events handler instance
func NewEventsHandler(sessions *session.Manager) *EventsHandler {
	return newEventsHandler(sessions)
}

func newEventsHandler(sessions sessionLookup) *EventsHandler {
	return &EventsHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origins are policed by the CORS middleware
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Stream handles GET /api/sessions/:id/events. The first message is the
// current view; every later one follows a change. Inbound messages are
// ignored apart from control frames.
func (h *EventsHandler) Stream(c *gin.Context) {
	id, ok := parseID(c, "session")
	if !ok {
		return
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		writeSessionError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		logger.Log.Warn().
			Err(err).
			Str("session_id", id.String()).
			Msg("WebSocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	views, stop, err := s.Watch(ctx)
	if err != nil {
		closeWith(conn, websocket.CloseGoingAway, "session closed")
		return
	}
	defer stop()

	logger.Log.Info().
		Str("session_id", id.String()).
		Str("client_ip", c.ClientIP()).
		Msg("Event stream opened")

	go readPump(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Debug().
				Str("session_id", id.String()).
				Msg("Event stream client disconnected")
			return
		case view, ok := <-views:
			if !ok {
				closeWith(conn, websocket.CloseNormalClosure, "session closed")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(view); err != nil {
				logger.Log.Debug().
					Err(err).
					Str("session_id", id.String()).
					Msg("Event stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump drains inbound frames so pongs and close frames are processed,
// and cancels the stream once the peer goes away
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
