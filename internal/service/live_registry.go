package service

import (
	"time"

	"github.com/psds-microservice/live-pk-service/internal/errs"
	"github.com/psds-microservice/live-pk-service/internal/model"
	"go.uber.org/zap"
)

// LiveRegistry is session CRUD and liveness filtering over a SessionStore,
// plus the static fallback pool.
type LiveRegistry struct {
	store    *SessionStore
	window   time.Duration
	fallback map[string]model.LiveSession
	order    []string
	now      func() time.Time
	log      *zap.Logger
}

// NewLiveRegistry creates a registry. Fallback entries never expire and are never live.
func NewLiveRegistry(store *SessionStore, window time.Duration, fallback []model.LiveSession, log *zap.Logger) *LiveRegistry {
	r := &LiveRegistry{
		store:    store,
		window:   window,
		fallback: make(map[string]model.LiveSession, len(fallback)),
		now:      time.Now,
		log:      log,
	}
	for _, s := range fallback {
		s.IsFallback = true
		s.PairingID = ""
		r.fallback[s.ID] = s
		r.order = append(r.order, s.ID)
	}
	return r
}

// Register stores a new session with LastHeartbeatAt = now.
func (r *LiveRegistry) Register(sess model.LiveSession) (model.LiveSession, error) {
	if err := validateSession(sess); err != nil {
		return model.LiveSession{}, err
	}
	if _, ok := r.fallback[sess.ID]; ok {
		return model.LiveSession{}, errs.ErrSessionExists
	}
	sess.LastHeartbeatAt = r.now()
	sess.PairingID = ""
	sess.IsFallback = false
	if err := r.store.Insert(sess); err != nil {
		return model.LiveSession{}, err
	}
	r.log.Info("session registered",
		zap.String("session_id", sess.ID),
		zap.String("owner_id", sess.OwnerID),
		zap.String("channel", sess.ChannelName))
	return sess, nil
}

// Heartbeat refreshes the session and returns the new timestamp.
func (r *LiveRegistry) Heartbeat(id string) (time.Time, error) {
	at := r.now()
	if err := r.store.Touch(id, at); err != nil {
		return time.Time{}, err
	}
	return at, nil
}

// Remove deletes the session and returns the removed record.
func (r *LiveRegistry) Remove(id string) (model.LiveSession, error) {
	sess, err := r.store.Delete(id)
	if err != nil {
		return model.LiveSession{}, err
	}
	r.log.Info("session removed", zap.String("session_id", id), zap.String("pairing_id", sess.PairingID))
	return sess, nil
}

// ListActive returns sessions whose heartbeat is within the window.
// When none are live it returns the fallback pool and fallback=true.
func (r *LiveRegistry) ListActive() (sessions []model.LiveSession, fallback bool) {
	now := r.now()
	live := r.store.Snapshot(func(s model.LiveSession) bool {
		return s.IsActive(now, r.window)
	})
	if len(live) > 0 {
		return live, false
	}
	out := make([]model.LiveSession, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.fallback[id])
	}
	return out, true
}

// Find resolves id against the live store, then the fallback pool.
func (r *LiveRegistry) Find(id string) (model.LiveSession, error) {
	if sess, ok := r.store.Get(id); ok {
		return sess, nil
	}
	if sess, ok := r.fallback[id]; ok {
		return sess, nil
	}
	return model.LiveSession{}, errs.ErrSessionNotFound
}

// IsLive reports whether id is a stored session inside the heartbeat window.
func (r *LiveRegistry) IsLive(id string) bool {
	sess, ok := r.store.Get(id)
	return ok && sess.IsActive(r.now(), r.window)
}

func validateSession(s model.LiveSession) error {
	switch {
	case s.ID == "":
		return errs.Invalid("id is required")
	case s.OwnerID == "":
		return errs.Invalid("ownerId is required")
	case s.DisplayName == "":
		return errs.Invalid("displayName is required")
	case s.ChannelName == "":
		return errs.Invalid("channelName is required")
	case s.OwnerMediaSubjectID <= 0:
		return errs.Invalid("ownerMediaSubjectId must be a positive integer")
	}
	return nil
}
