package service

import (
	"sync"
	"time"

	"github.com/psds-microservice/live-pk-service/internal/errs"
	"github.com/psds-microservice/live-pk-service/internal/model"
)

// SessionStore is the shared map of live sessions keyed by id.
// Records never leave the store by pointer; readers get copies.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.LiveSession
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*model.LiveSession)}
}

// Insert stores s unless its id is taken.
func (s *SessionStore) Insert(sess model.LiveSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return errs.ErrSessionExists
	}
	s.sessions[sess.ID] = &sess
	return nil
}

// Touch sets LastHeartbeatAt.
func (s *SessionStore) Touch(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return errs.ErrSessionNotFound
	}
	sess.LastHeartbeatAt = at
	return nil
}

// Delete removes the session and returns the removed record.
func (s *SessionStore) Delete(id string) (model.LiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.LiveSession{}, errs.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return *sess, nil
}

// Get returns a copy of the session.
func (s *SessionStore) Get(id string) (model.LiveSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.LiveSession{}, false
	}
	return *sess, true
}

// SetPairing updates the denormalized pairing id. Empty pid clears it.
func (s *SessionStore) SetPairing(id, pid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	sess.PairingID = pid
	return true
}

// Snapshot returns copies of all sessions accepted by keep.
func (s *SessionStore) Snapshot(keep func(model.LiveSession) bool) []model.LiveSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.LiveSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if keep == nil || keep(*sess) {
			out = append(out, *sess)
		}
	}
	return out
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
