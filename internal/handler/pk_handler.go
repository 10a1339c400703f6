package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/live-pk-service/internal/model"
	"github.com/psds-microservice/live-pk-service/internal/service"
)

// PKHandler handles REST API for pk pairings.
type PKHandler struct {
	pk *service.PKManager
}

// NewPKHandler creates a pk handler.
func NewPKHandler(pk *service.PKManager) *PKHandler {
	return &PKHandler{pk: pk}
}

// Invite godoc
// POST /pk/invite
func (h *PKHandler) Invite(c *gin.Context) {
	var req model.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_argument", "message": err.Error()})
		return
	}
	pk, err := h.pk.Invite(req.InitiatorSessionID, req.TargetSessionID, req.DurationSeconds)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pk)
}

// Accept godoc
// POST /pk/:id/accept
func (h *PKHandler) Accept(c *gin.Context) {
	pk, err := h.pk.Accept(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pk)
}

// Reject godoc
// POST /pk/:id/reject
func (h *PKHandler) Reject(c *gin.Context) {
	pk, rejected, err := h.pk.Reject(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rejected": rejected, "pairing": pk})
}

// Score godoc
// POST /pk/:id/score
func (h *PKHandler) Score(c *gin.Context) {
	var req model.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_argument", "message": err.Error()})
		return
	}
	pk, err := h.pk.Score(c.Param("id"), req.SessionID, req.Delta)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pk)
}

// End godoc
// POST /pk/:id/end
// Ending an already ended pk answers 200 with ended=false.
func (h *PKHandler) End(c *gin.Context) {
	pk, ended, err := h.pk.End(c.Param("id"), model.EndManual)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := model.EndResponse{Ended: ended}
	if pk.ID != "" {
		resp.Pairing = &pk
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// GET /pk/:id
func (h *PKHandler) Get(c *gin.Context) {
	pk, err := h.pk.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pk)
}
