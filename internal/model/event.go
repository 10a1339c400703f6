package model

import "time"

// Event names pushed to subscribers and the external sink.
const (
	EventInvite   = "invite"
	EventAccepted = "accepted"
	EventRejected = "rejected"
	EventScore    = "score"
	EventEnded    = "ended"
)

// Event is a pk state change delivered to subscriber groups.
type Event interface {
	EventName() string
}

// Envelope is the wire frame: {"event": name, "data": payload}.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Wrap puts an event into its wire envelope.
func Wrap(ev Event) Envelope {
	return Envelope{Event: ev.EventName(), Data: ev}
}

// InviteEvent goes to the target; Initiator is enough to render the prompt.
type InviteEvent struct {
	PairingID       string      `json:"pairingId"`
	Initiator       Participant `json:"initiator"`
	TargetSessionID string      `json:"targetSessionId"`
	DurationSeconds int         `json:"durationSeconds"`
	ExpiresAt       time.Time   `json:"expiresAt"`
}

func (InviteEvent) EventName() string { return EventInvite }

// AcceptedEvent is sent to each side with the opponent's channel binding.
type AcceptedEvent struct {
	PairingID       string      `json:"pairingId"`
	SessionID       string      `json:"sessionId"`
	Opponent        Participant `json:"opponent"`
	DurationSeconds int         `json:"durationSeconds"`
	StartedAt       time.Time   `json:"startedAt"`
	EndsAt          time.Time   `json:"endsAt"`
}

func (AcceptedEvent) EventName() string { return EventAccepted }

// RejectedEvent goes to the initiator.
type RejectedEvent struct {
	PairingID          string       `json:"pairingId"`
	InitiatorSessionID string       `json:"initiatorSessionId"`
	TargetSessionID    string       `json:"targetSessionId"`
	Reason             RejectReason `json:"reason"`
}

func (RejectedEvent) EventName() string { return EventRejected }

// ScoreEvent carries both running totals.
type ScoreEvent struct {
	PairingID          string `json:"pairingId"`
	InitiatorSessionID string `json:"initiatorSessionId"`
	TargetSessionID    string `json:"targetSessionId"`
	InitiatorScore     int64  `json:"initiatorScore"`
	TargetScore        int64  `json:"targetScore"`
}

func (ScoreEvent) EventName() string { return EventScore }

// EndedEvent carries final scores and the winner.
type EndedEvent struct {
	PairingID          string    `json:"pairingId"`
	InitiatorSessionID string    `json:"initiatorSessionId"`
	TargetSessionID    string    `json:"targetSessionId"`
	InitiatorScore     int64     `json:"initiatorScore"`
	TargetScore        int64     `json:"targetScore"`
	Winner             Winner    `json:"winner"`
	WinnerSessionID    string    `json:"winnerSessionId,omitempty"`
	Reason             EndReason `json:"reason"`
	EndedAt            time.Time `json:"endedAt"`
}

func (EndedEvent) EventName() string { return EventEnded }
