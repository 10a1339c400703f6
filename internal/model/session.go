package model

import "time"

// LiveSession is one broadcast tracked by the registry. Liveness comes from LastHeartbeatAt.
type LiveSession struct {
	ID                  string    `json:"id"`
	OwnerID             string    `json:"ownerId"`
	DisplayName         string    `json:"displayName"`
	AvatarURL           string    `json:"avatarUrl,omitempty"`
	Title               string    `json:"title,omitempty"`
	CoverURL            string    `json:"coverUrl,omitempty"`
	ChannelName         string    `json:"channelName"`
	OwnerMediaSubjectID int64     `json:"ownerMediaSubjectId"`
	LastHeartbeatAt     time.Time `json:"lastHeartbeatAt"`
	PairingID           string    `json:"pairingId,omitempty"`
	IsFallback          bool      `json:"isFallback,omitempty"`
}

// IsActive reports whether the last heartbeat is younger than window.
func (s LiveSession) IsActive(now time.Time, window time.Duration) bool {
	return now.Sub(s.LastHeartbeatAt) < window
}

// Participant returns the denormalized view shipped inside pk events.
func (s LiveSession) Participant() Participant {
	return Participant{
		SessionID:      s.ID,
		OwnerID:        s.OwnerID,
		DisplayName:    s.DisplayName,
		AvatarURL:      s.AvatarURL,
		ChannelName:    s.ChannelName,
		MediaSubjectID: s.OwnerMediaSubjectID,
	}
}

// Participant is enough of a session for the other side to render it and join its channel.
type Participant struct {
	SessionID      string `json:"sessionId"`
	OwnerID        string `json:"ownerId"`
	DisplayName    string `json:"displayName"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
	ChannelName    string `json:"channelName"`
	MediaSubjectID int64  `json:"mediaSubjectId"`
}

// RegisterSessionRequest is the request body for POST /lives.
type RegisterSessionRequest struct {
	ID                  string `json:"id"`
	OwnerID             string `json:"ownerId"`
	DisplayName         string `json:"displayName"`
	AvatarURL           string `json:"avatarUrl"`
	Title               string `json:"title"`
	CoverURL            string `json:"coverUrl"`
	ChannelName         string `json:"channelName"`
	OwnerMediaSubjectID int64  `json:"ownerMediaSubjectId"`
}

// ToSession converts the request into a session record.
func (r RegisterSessionRequest) ToSession() LiveSession {
	return LiveSession{
		ID:                  r.ID,
		OwnerID:             r.OwnerID,
		DisplayName:         r.DisplayName,
		AvatarURL:           r.AvatarURL,
		Title:               r.Title,
		CoverURL:            r.CoverURL,
		ChannelName:         r.ChannelName,
		OwnerMediaSubjectID: r.OwnerMediaSubjectID,
	}
}

// RegisterSessionResponse is the response for POST /lives.
type RegisterSessionResponse struct {
	Session LiveSession `json:"session"`
	WSURL   string      `json:"wsUrl"`
}

// SessionListItem is one entry of GET /lives.
type SessionListItem struct {
	LiveSession
	HasPK      bool   `json:"hasPk"`
	Credential string `json:"credential,omitempty"`
}

// SessionListResponse is the response for GET /lives.
type SessionListResponse struct {
	Sessions []SessionListItem `json:"sessions"`
	Fallback bool              `json:"fallback"`
}

// HeartbeatResponse is the response for POST /lives/:id/heartbeat.
type HeartbeatResponse struct {
	SessionID       string    `json:"sessionId"`
	LastHeartbeatAt time.Time `json:"lastHeartbeatAt"`
}
