package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/psds-microservice/live-pk-service/internal/model"
	"github.com/psds-microservice/live-pk-service/internal/service"
	"go.uber.org/zap"
)

// Client frame actions.
const (
	actionJoin  = "join"
	actionLeave = "leave"
)

type clientFrame struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
}

// StreamWSHandler handles subscriber WebSocket connections on /ws.
type StreamWSHandler struct {
	hub      *service.FanoutHub
	registry *service.LiveRegistry
	logger   *zap.Logger
}

// NewStreamWSHandler creates the WebSocket subscriber handler.
func NewStreamWSHandler(hub *service.FanoutHub, registry *service.LiveRegistry, logger *zap.Logger) *StreamWSHandler {
	return &StreamWSHandler{hub: hub, registry: registry, logger: logger}
}

// ServeWS upgrades the request and serves join/leave frames until the peer disconnects.
// Path: /ws[?session_id=...] ; a session_id query parameter joins that group right away.
func (h *StreamWSHandler) ServeWS(c *gin.Context) {
	conn, err := h.hub.Upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	if n := h.hub.MaxMessageSize(); n > 0 {
		conn.SetReadLimit(n)
	}

	sub := h.hub.Connect()
	// Drop runs after readPump returns, so nothing writes to sub.Send once it is closed.
	defer h.hub.Drop(sub)
	h.logger.Info("subscriber connected", zap.String("subscriber", sub.ID))

	if id := c.Query("session_id"); id != "" {
		h.join(sub, id)
	}

	go h.writePump(conn, sub)
	h.readPump(conn, sub)
	h.logger.Info("subscriber disconnected", zap.String("subscriber", sub.ID))
}

func (h *StreamWSHandler) readPump(conn *websocket.Conn, sub *service.Subscriber) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("read error", zap.Error(err))
			}
			return
		}
		var f clientFrame
		if err := json.Unmarshal(data, &f); err != nil || f.SessionID == "" {
			h.reply(sub, "error", gin.H{"message": "expected {\"action\":\"join|leave\",\"session_id\":\"...\"}"})
			continue
		}
		switch f.Action {
		case actionJoin:
			h.join(sub, f.SessionID)
		case actionLeave:
			h.hub.Unsubscribe(f.SessionID, sub)
			h.reply(sub, "left", gin.H{"session_id": f.SessionID})
		default:
			h.reply(sub, "error", gin.H{"message": "unknown action", "action": f.Action})
		}
	}
}

func (h *StreamWSHandler) join(sub *service.Subscriber, sessionID string) {
	if _, err := h.registry.Find(sessionID); err != nil {
		h.reply(sub, "error", gin.H{"message": err.Error(), "session_id": sessionID})
		return
	}
	h.hub.Subscribe(sessionID, sub)
	h.reply(sub, "joined", gin.H{"session_id": sessionID})
}

func (h *StreamWSHandler) reply(sub *service.Subscriber, event string, data any) {
	raw, err := json.Marshal(model.Envelope{Event: event, Data: data})
	if err != nil {
		return
	}
	select {
	case sub.Send <- raw:
	default:
		h.logger.Warn("subscriber send buffer full", zap.String("subscriber", sub.ID), zap.String("event", event))
	}
}

func (h *StreamWSHandler) writePump(conn *websocket.Conn, sub *service.Subscriber) {
	defer func() {
		_ = conn.Close()
	}()
	for data := range sub.Send {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
	}
}
