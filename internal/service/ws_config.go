package service

import (
	"net/url"
	"strings"

	"github.com/psds-microservice/live-pk-service/pkg/constants"
)

// WSConfig holds WebSocket URL base for responses.
type WSConfig struct {
	BaseURL string
}

// WSURL returns the subscriber URL that auto-joins sessionID (e.g. wss://host/ws?session_id=abc).
func (c *WSConfig) WSURL(sessionID string) string {
	path := constants.PathWS + "?session_id=" + url.QueryEscape(sessionID)
	if c == nil || c.BaseURL == "" {
		return path
	}
	return strings.TrimRight(c.BaseURL, "/") + path
}
