package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/psds-microservice/live-pk-service/internal/errs"
	"github.com/psds-microservice/live-pk-service/internal/metrics"
	"github.com/psds-microservice/live-pk-service/internal/model"
	"go.uber.org/zap"
)

// PKConfig bounds pk timing.
type PKConfig struct {
	DefaultDuration time.Duration
	MinDuration     time.Duration
	MaxDuration     time.Duration
	InviteTTL       time.Duration
	ResultTTL       time.Duration
}

type pairing struct {
	model.PKPairing
	initiator model.Participant
	target    model.Participant
	stop      func() bool // cancels the pending invite-expiry or auto-end timer
}

// PKManager runs the pk state machine. Every transition, including timer
// driven ones, happens under mu, so termination effects run exactly once.
type PKManager struct {
	mu       sync.Mutex
	pairings map[string]*pairing

	registry *LiveRegistry
	pairs    *PairingMap
	hub      Broadcaster
	cfg      PKConfig
	metrics  *metrics.Metrics
	log      *zap.Logger

	now      func() time.Time
	schedule func(d time.Duration, f func()) (stop func() bool)
	newID    func() string
}

// NewPKManager creates a manager.
func NewPKManager(registry *LiveRegistry, pairs *PairingMap, hub Broadcaster, cfg PKConfig, m *metrics.Metrics, log *zap.Logger) *PKManager {
	return &PKManager{
		pairings: make(map[string]*pairing),
		registry: registry,
		pairs:    pairs,
		hub:      hub,
		cfg:      cfg,
		metrics:  m,
		log:      log,
		now:      time.Now,
		schedule: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		newID: uuid.NewString,
	}
}

// Invite creates a pending pk from initiator to target and notifies the target.
// durationSeconds <= 0 selects the default duration.
func (m *PKManager) Invite(initiatorID, targetID string, durationSeconds int) (model.PKPairing, error) {
	if initiatorID == "" || targetID == "" {
		return model.PKPairing{}, errs.Invalid("initiatorSessionId and targetSessionId are required")
	}
	if initiatorID == targetID {
		return model.PKPairing{}, errs.Invalid("a session cannot pk itself")
	}
	duration := m.cfg.DefaultDuration
	if durationSeconds > 0 {
		duration = time.Duration(durationSeconds) * time.Second
		if duration < m.cfg.MinDuration || duration > m.cfg.MaxDuration {
			return model.PKPairing{}, errs.Invalid("durationSeconds must be between %d and %d",
				int(m.cfg.MinDuration.Seconds()), int(m.cfg.MaxDuration.Seconds()))
		}
	}
	initiator, err := m.resolve(initiatorID)
	if err != nil {
		return model.PKPairing{}, fmt.Errorf("initiator %s: %w", initiatorID, err)
	}
	target, err := m.resolve(targetID)
	if err != nil {
		return model.PKPairing{}, fmt.Errorf("target %s: %w", targetID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range []string{initiatorID, targetID} {
		if pid, ok := m.pairs.PairingOf(id); ok {
			return model.PKPairing{}, fmt.Errorf("session %s in pk %s: %w", id, pid, errs.ErrSessionPaired)
		}
	}
	pid := m.newID()
	if err := m.pairs.Bind(initiatorID, pid); err != nil {
		return model.PKPairing{}, fmt.Errorf("initiator %s: %w", initiatorID, err)
	}
	if err := m.pairs.Bind(targetID, pid); err != nil {
		m.pairs.UnbindIf(initiatorID, pid)
		return model.PKPairing{}, fmt.Errorf("target %s: %w", targetID, err)
	}

	now := m.now()
	p := &pairing{
		PKPairing: model.PKPairing{
			ID:                 pid,
			InitiatorSessionID: initiatorID,
			TargetSessionID:    targetID,
			State:              model.PairingPending,
			DurationSeconds:    int(duration / time.Second),
			CreatedAt:          now,
		},
		initiator: initiator.Participant(),
		target:    target.Participant(),
	}
	m.pairings[pid] = p
	p.stop = m.schedule(m.cfg.InviteTTL, func() {
		m.reject(pid, model.RejectExpired)
	})

	ev := model.InviteEvent{
		PairingID:       pid,
		Initiator:       p.initiator,
		TargetSessionID: targetID,
		DurationSeconds: p.DurationSeconds,
		ExpiresAt:       now.Add(m.cfg.InviteTTL),
	}
	m.hub.Broadcast(targetID, ev)
	m.hub.NotifyExternal(ev)
	m.metrics.Pairing("invited")
	m.log.Info("pk invited",
		zap.String("pairing_id", pid),
		zap.String("initiator", initiatorID),
		zap.String("target", targetID),
		zap.Int("duration_seconds", p.DurationSeconds))
	return p.PKPairing, nil
}

// Accept starts a pending pk and schedules its auto-end.
func (m *PKManager) Accept(pid string) (model.PKPairing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pairings[pid]
	if !ok {
		return model.PKPairing{}, errs.ErrPairingNotFound
	}
	if p.State != model.PairingPending {
		return p.PKPairing, errs.ErrPairingNotPending
	}
	p.stopTimer()

	started := m.now()
	duration := time.Duration(p.DurationSeconds) * time.Second
	endsAt := started.Add(duration)
	p.State = model.PairingActive
	p.StartedAt = &started
	p.EndsAt = &endsAt
	p.stop = m.schedule(duration, func() {
		if _, _, err := m.End(pid, model.EndTimeout); err != nil {
			m.log.Warn("pk auto-end", zap.String("pairing_id", pid), zap.Error(err))
		}
	})

	initiator := m.refresh(p.initiator)
	target := m.refresh(p.target)
	for _, ev := range []model.AcceptedEvent{
		{PairingID: pid, SessionID: initiator.SessionID, Opponent: target},
		{PairingID: pid, SessionID: target.SessionID, Opponent: initiator},
	} {
		ev.DurationSeconds = p.DurationSeconds
		ev.StartedAt = started
		ev.EndsAt = endsAt
		m.hub.Broadcast(ev.SessionID, ev)
		m.hub.NotifyExternal(ev)
	}
	m.metrics.Pairing("accepted")
	m.log.Info("pk accepted", zap.String("pairing_id", pid), zap.Time("ends_at", endsAt))
	return p.PKPairing, nil
}

// Reject declines a pending pk. rejected is false when the pk had already left Pending.
func (m *PKManager) Reject(pid string) (pk model.PKPairing, rejected bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pairings[pid]; !ok {
		return model.PKPairing{}, false, errs.ErrPairingNotFound
	}
	return m.rejectLocked(pid, model.RejectDeclined)
}

func (m *PKManager) reject(pid string, reason model.RejectReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, _, _ = m.rejectLocked(pid, reason)
}

func (m *PKManager) rejectLocked(pid string, reason model.RejectReason) (model.PKPairing, bool, error) {
	p, ok := m.pairings[pid]
	if !ok {
		return model.PKPairing{}, false, nil
	}
	if p.State != model.PairingPending {
		return p.PKPairing, false, nil
	}
	p.stopTimer()
	now := m.now()
	p.State = model.PairingRejected
	p.EndReason = model.EndRejected
	p.RejectReason = reason
	p.EndedAt = &now
	m.unbind(p)

	ev := model.RejectedEvent{
		PairingID:          pid,
		InitiatorSessionID: p.InitiatorSessionID,
		TargetSessionID:    p.TargetSessionID,
		Reason:             reason,
	}
	m.hub.Broadcast(p.InitiatorSessionID, ev)
	if reason != model.RejectDeclined {
		// the target never answered; its pending prompt must go away too
		m.hub.Broadcast(p.TargetSessionID, ev)
	}
	m.hub.NotifyExternal(ev)
	m.metrics.Pairing("rejected")
	m.log.Info("pk rejected", zap.String("pairing_id", pid), zap.String("reason", string(reason)))
	return p.PKPairing, true, nil
}

// Score adds delta to sessionID's side of an active pk.
// Scores only grow: a delta that would overflow the total is rejected.
func (m *PKManager) Score(pid, sessionID string, delta int64) (model.PKPairing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pairings[pid]
	if !ok {
		return model.PKPairing{}, errs.ErrPairingNotFound
	}
	if p.State != model.PairingActive {
		return p.PKPairing, errs.ErrPairingNotActive
	}
	if !p.Has(sessionID) {
		return p.PKPairing, errs.ErrNotParticipant
	}
	if delta < 0 {
		return p.PKPairing, errs.Invalid("delta must not be negative")
	}
	score := &p.TargetScore
	if sessionID == p.InitiatorSessionID {
		score = &p.InitiatorScore
	}
	if delta > math.MaxInt64-*score {
		return p.PKPairing, errs.Invalid("delta overflows score")
	}
	*score += delta

	ev := model.ScoreEvent{
		PairingID:          pid,
		InitiatorSessionID: p.InitiatorSessionID,
		TargetSessionID:    p.TargetSessionID,
		InitiatorScore:     p.InitiatorScore,
		TargetScore:        p.TargetScore,
	}
	for _, id := range p.Participants() {
		m.hub.Broadcast(id, ev)
	}
	m.metrics.Score()
	return p.PKPairing, nil
}

// End terminates an active pk. Manual, timeout and disconnect triggers race here;
// only the first one ends the pk, later calls return ended=false and no error.
// Ending a pending pk is an InvalidState error.
func (m *PKManager) End(pid string, reason model.EndReason) (pk model.PKPairing, ended bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pairings[pid]
	if !ok {
		return model.PKPairing{}, false, nil
	}
	switch p.State {
	case model.PairingEnded, model.PairingRejected:
		return p.PKPairing, false, nil
	case model.PairingPending:
		return p.PKPairing, false, errs.ErrPairingNotActive
	}
	p.stopTimer()

	now := m.now()
	p.State = model.PairingEnded
	p.EndReason = reason
	p.EndedAt = &now
	p.Winner = model.DecideWinner(p.InitiatorScore, p.TargetScore)
	m.unbind(p)

	ev := model.EndedEvent{
		PairingID:          pid,
		InitiatorSessionID: p.InitiatorSessionID,
		TargetSessionID:    p.TargetSessionID,
		InitiatorScore:     p.InitiatorScore,
		TargetScore:        p.TargetScore,
		Winner:             p.Winner,
		Reason:             reason,
		EndedAt:            now,
	}
	switch p.Winner {
	case model.WinnerInitiator:
		ev.WinnerSessionID = p.InitiatorSessionID
	case model.WinnerTarget:
		ev.WinnerSessionID = p.TargetSessionID
	}
	for _, id := range p.Participants() {
		m.hub.Broadcast(id, ev)
	}
	m.hub.NotifyExternal(ev)
	m.metrics.Pairing("ended")
	m.log.Info("pk ended",
		zap.String("pairing_id", pid),
		zap.String("reason", string(reason)),
		zap.String("winner", string(p.Winner)),
		zap.Int64("initiator_score", p.InitiatorScore),
		zap.Int64("target_score", p.TargetScore))
	return p.PKPairing, true, nil
}

// Get returns the pk by id, including ended ones still retained.
func (m *PKManager) Get(pid string) (model.PKPairing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pairings[pid]
	if !ok {
		return model.PKPairing{}, errs.ErrPairingNotFound
	}
	return p.PKPairing, nil
}

// BySession returns the open pk of sessionID. A map entry pointing at a
// missing or closed pk is removed and reported as no pk.
func (m *PKManager) BySession(sessionID string) (model.PKPairing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pid, ok := m.pairs.PairingOf(sessionID)
	if !ok {
		return model.PKPairing{}, false
	}
	p, ok := m.pairings[pid]
	if !ok || !p.State.Open() {
		m.pairs.UnbindIf(sessionID, pid)
		m.log.Warn("dangling pairing entry removed", zap.String("session_id", sessionID), zap.String("pairing_id", pid))
		return model.PKPairing{}, false
	}
	return p.PKPairing, true
}

// SessionGone terminates the pk of a removed session: active ends with
// reason disconnect, pending is rejected as cancelled.
func (m *PKManager) SessionGone(sessionID string) {
	pid, ok := m.pairs.PairingOf(sessionID)
	if !ok {
		return
	}
	m.mu.Lock()
	p, ok := m.pairings[pid]
	if ok && p.State == model.PairingPending {
		_, _, _ = m.rejectLocked(pid, model.RejectCancelled)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	if !ok {
		m.pairs.UnbindIf(sessionID, pid)
		return
	}
	if _, _, err := m.End(pid, model.EndDisconnect); err != nil {
		m.log.Warn("pk disconnect end", zap.String("pairing_id", pid), zap.Error(err))
	}
}

// Sweep evicts closed pks whose EndedAt is older than the retention TTL.
func (m *PKManager) Sweep() int {
	cutoff := m.now().Add(-m.cfg.ResultTTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for pid, p := range m.pairings {
		if p.State.Open() || p.EndedAt == nil || p.EndedAt.After(cutoff) {
			continue
		}
		delete(m.pairings, pid)
		n++
	}
	return n
}

// Run sweeps retained results every interval until ctx is done.
func (m *PKManager) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				m.log.Debug("pk results evicted", zap.Int("count", n))
			}
		}
	}
}

// Close stops every pending timer.
func (m *PKManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pairings {
		p.stopTimer()
	}
}

// Len returns the number of retained pks.
func (m *PKManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pairings)
}

func (m *PKManager) resolve(id string) (model.LiveSession, error) {
	sess, err := m.registry.Find(id)
	if err != nil {
		return model.LiveSession{}, err
	}
	if sess.IsFallback {
		return model.LiveSession{}, errs.ErrFallbackSession
	}
	return sess, nil
}

// refresh re-reads a participant from the registry, keeping the cached copy if it is gone.
func (m *PKManager) refresh(cached model.Participant) model.Participant {
	if sess, err := m.registry.Find(cached.SessionID); err == nil {
		return sess.Participant()
	}
	return cached
}

func (m *PKManager) unbind(p *pairing) {
	for _, id := range p.Participants() {
		m.pairs.UnbindIf(id, p.ID)
	}
}

func (p *pairing) stopTimer() {
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
}
