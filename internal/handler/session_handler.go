package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/live-pk-service/internal/credential"
	"github.com/psds-microservice/live-pk-service/internal/model"
	"github.com/psds-microservice/live-pk-service/internal/service"
	"go.uber.org/zap"
)

// SessionHandler handles REST API for live sessions.
type SessionHandler struct {
	registry *service.LiveRegistry
	pk       *service.PKManager
	signer   *credential.Signer
	cfg      *service.WSConfig
	log      *zap.Logger
}

// NewSessionHandler creates a session handler. signer may be unconfigured.
func NewSessionHandler(registry *service.LiveRegistry, pk *service.PKManager, signer *credential.Signer, wsBaseURL string, log *zap.Logger) *SessionHandler {
	return &SessionHandler{
		registry: registry,
		pk:       pk,
		signer:   signer,
		cfg:      &service.WSConfig{BaseURL: wsBaseURL},
		log:      log,
	}
}

// RegisterSession godoc
// POST /lives
func (h *SessionHandler) RegisterSession(c *gin.Context) {
	var req model.RegisterSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_argument", "message": err.Error()})
		return
	}
	sess, err := h.registry.Register(req.ToSession())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.RegisterSessionResponse{
		Session: sess,
		WSURL:   h.cfg.WSURL(sess.ID),
	})
}

// ListSessions godoc
// GET /lives
// Each entry carries a publisher credential when the signer is configured.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, fallback := h.registry.ListActive()
	items := make([]model.SessionListItem, 0, len(sessions))
	for _, s := range sessions {
		item := model.SessionListItem{LiveSession: s, HasPK: s.PairingID != ""}
		if h.signer.Configured() {
			token, err := h.signer.Sign(s.ChannelName, s.OwnerMediaSubjectID, credential.RolePublisher, 0)
			if err != nil {
				h.log.Warn("sign listing credential", zap.String("session_id", s.ID), zap.Error(err))
			} else {
				item.Credential = token
			}
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, model.SessionListResponse{Sessions: items, Fallback: fallback})
}

// GetSession godoc
// GET /lives/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, err := h.registry.Find(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": sess,
		"live":    h.registry.IsLive(sess.ID),
	})
}

// Heartbeat godoc
// POST /lives/:id/heartbeat
func (h *SessionHandler) Heartbeat(c *gin.Context) {
	id := c.Param("id")
	at, err := h.registry.Heartbeat(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.HeartbeatResponse{SessionID: id, LastHeartbeatAt: at})
}

// RemoveSession godoc
// DELETE /lives/:id
// A pk the session takes part in is terminated as a disconnect.
func (h *SessionHandler) RemoveSession(c *gin.Context) {
	removed, err := h.registry.Remove(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.pk.SessionGone(removed.ID)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// GetSessionPK godoc
// GET /lives/:id/pk
func (h *SessionHandler) GetSessionPK(c *gin.Context) {
	id := c.Param("id")
	resp := model.SessionPairingResponse{SessionID: id}
	if pk, ok := h.pk.BySession(id); ok {
		resp.Pairing = &pk
	}
	c.JSON(http.StatusOK, resp)
}
