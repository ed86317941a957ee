package live

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// WebSocketHandler upgrades requests to live update sessions.
type WebSocketHandler struct {
	sm            *SessionManager
	cfg           Config
	deps          Deps
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(sm *SessionManager, cfg Config, deps Deps, allowedOrigin string, isDev bool) *WebSocketHandler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &WebSocketHandler{
		sm:            sm,
		cfg:           cfg,
		deps:          deps,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// connWriter adapts websocket.Conn to FrameWriter.
type connWriter struct {
	conn *websocket.Conn
}

func (w connWriter) WriteFrame(ctx context.Context, frame any) error {
	return wsjson.Write(ctx, w.conn, frame)
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.deps.Logger
	logger.Info("WebSocket connection request", "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	session := NewSession(connWriter{conn: ws}, h.cfg, h.deps)
	h.sm.Register(session)
	defer h.sm.Unregister(session)
	defer session.Close()

	session.Start()
	h.readLoop(r.Context(), ws, session)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.deps.Logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, session *Session) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.deps.Logger.Debug("WebSocket closed by client", "session_id", session.ID())
			} else {
				h.deps.Logger.Debug("WebSocket read ended", "error", err, "session_id", session.ID())
			}
			return
		}
		session.HandleInbound(message)
	}
}
