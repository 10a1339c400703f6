package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/live-pk-service/internal/credential"
)

// TokenHandler issues media credentials on demand.
type TokenHandler struct {
	signer *credential.Signer
}

// NewTokenHandler creates a token handler.
func NewTokenHandler(signer *credential.Signer) *TokenHandler {
	return &TokenHandler{signer: signer}
}

// GenerateToken godoc
// GET /generate-token?channel=&uid=&role=publisher|subscriber
func (h *TokenHandler) GenerateToken(c *gin.Context) {
	channel := c.Query("channel")
	uidRaw := c.Query("uid")
	if channel == "" || uidRaw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_argument", "message": "channel and uid are required"})
		return
	}
	uid, err := strconv.ParseInt(uidRaw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_argument", "message": "uid must be an integer"})
		return
	}
	token, err := h.signer.Sign(channel, uid, credential.ParseRole(c.Query("role")), 0)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
