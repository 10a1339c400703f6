package model

import "time"

// PairingState is the pk state machine position.
type PairingState string

const (
	PairingPending  PairingState = "pending"
	PairingActive   PairingState = "active"
	PairingEnded    PairingState = "ended"
	PairingRejected PairingState = "rejected"
)

// Open reports whether the pairing still holds its sessions in the pairing map.
func (s PairingState) Open() bool {
	return s == PairingPending || s == PairingActive
}

// EndReason says which trigger terminated a pairing.
type EndReason string

const (
	EndManual     EndReason = "manual"
	EndTimeout    EndReason = "timeout"
	EndDisconnect EndReason = "disconnect"
	EndRejected   EndReason = "rejected"
)

// RejectReason says why a pending pairing was rejected.
type RejectReason string

const (
	RejectDeclined  RejectReason = "declined"
	RejectExpired   RejectReason = "expired"
	RejectCancelled RejectReason = "cancelled"
)

// Winner of an ended pairing.
type Winner string

const (
	WinnerInitiator Winner = "initiator"
	WinnerTarget    Winner = "target"
	WinnerDraw      Winner = "draw"
)

// DecideWinner compares final scores.
func DecideWinner(initiatorScore, targetScore int64) Winner {
	switch {
	case initiatorScore > targetScore:
		return WinnerInitiator
	case targetScore > initiatorScore:
		return WinnerTarget
	default:
		return WinnerDraw
	}
}

// PKPairing is a snapshot of one pk. The manager owns the live record; callers get copies.
type PKPairing struct {
	ID                 string       `json:"pairingId"`
	InitiatorSessionID string       `json:"initiatorSessionId"`
	TargetSessionID    string       `json:"targetSessionId"`
	State              PairingState `json:"state"`
	InitiatorScore     int64        `json:"initiatorScore"`
	TargetScore        int64        `json:"targetScore"`
	DurationSeconds    int          `json:"durationSeconds"`
	CreatedAt          time.Time    `json:"createdAt"`
	StartedAt          *time.Time   `json:"startedAt,omitempty"`
	EndsAt             *time.Time   `json:"endsAt,omitempty"`
	EndedAt            *time.Time   `json:"endedAt,omitempty"`
	EndReason          EndReason    `json:"endReason,omitempty"`
	RejectReason       RejectReason `json:"rejectReason,omitempty"`
	Winner             Winner       `json:"winner,omitempty"`
}

// Participants returns both session ids, initiator first.
func (p PKPairing) Participants() [2]string {
	return [2]string{p.InitiatorSessionID, p.TargetSessionID}
}

// Has reports whether sessionID takes part in the pairing.
func (p PKPairing) Has(sessionID string) bool {
	return p.InitiatorSessionID == sessionID || p.TargetSessionID == sessionID
}

// InviteRequest is the request body for POST /pk/invite.
type InviteRequest struct {
	InitiatorSessionID string `json:"initiatorSessionId"`
	TargetSessionID    string `json:"targetSessionId"`
	DurationSeconds    int    `json:"durationSeconds"`
}

// ScoreRequest is the request body for POST /pk/:id/score.
type ScoreRequest struct {
	SessionID string `json:"sessionId"`
	Delta     int64  `json:"delta"`
}

// EndResponse is the response for POST /pk/:id/end. Ended is false when another trigger already ended it.
type EndResponse struct {
	Ended   bool       `json:"ended"`
	Pairing *PKPairing `json:"pairing,omitempty"`
}

// SessionPairingResponse is the response for GET /lives/:id/pk.
type SessionPairingResponse struct {
	SessionID string     `json:"sessionId"`
	Pairing   *PKPairing `json:"pairing"`
}
