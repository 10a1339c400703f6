package service

import (
	"sync"

	"github.com/psds-microservice/live-pk-service/internal/errs"
)

// PairingMap indexes session id -> open pairing id. A session holds at most one.
type PairingMap struct {
	mu    sync.RWMutex
	byID  map[string]string
	store *SessionStore
}

// NewPairingMap creates an empty map validating against store.
func NewPairingMap(store *SessionStore) *PairingMap {
	return &PairingMap{byID: make(map[string]string), store: store}
}

// Bind attaches sessionID to pid. Rebinding the same pair is a no-op.
func (m *PairingMap) Bind(sessionID, pid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.byID[sessionID]; ok {
		if cur == pid {
			return nil
		}
		return errs.ErrSessionPaired
	}
	if !m.store.SetPairing(sessionID, pid) {
		return errs.ErrSessionNotFound
	}
	m.byID[sessionID] = pid
	return nil
}

// Unbind detaches sessionID; absent ids are ignored.
func (m *PairingMap) Unbind(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[sessionID]; !ok {
		return
	}
	delete(m.byID, sessionID)
	m.store.SetPairing(sessionID, "")
}

// UnbindIf detaches sessionID only while it still points at pid.
func (m *PairingMap) UnbindIf(sessionID, pid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byID[sessionID] != pid {
		return
	}
	delete(m.byID, sessionID)
	m.store.SetPairing(sessionID, "")
}

// PairingOf returns the pairing bound to sessionID.
func (m *PairingMap) PairingOf(sessionID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pid, ok := m.byID[sessionID]
	return pid, ok
}

// Len returns the number of bound sessions.
func (m *PairingMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
