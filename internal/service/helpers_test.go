package service

import (
	"sync"
	"testing"
	"time"

	"github.com/psds-microservice/live-pk-service/internal/model"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (ft *fakeTimers) schedule(d time.Duration, f func()) func() bool {
	t := &fakeTimer{d: d, f: f}
	ft.mu.Lock()
	ft.timers = append(ft.timers, t)
	ft.mu.Unlock()
	return func() bool {
		ft.mu.Lock()
		defer ft.mu.Unlock()
		was := !t.stopped
		t.stopped = true
		return was
	}
}

func (ft *fakeTimers) last() *fakeTimer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if len(ft.timers) == 0 {
		return nil
	}
	return ft.timers[len(ft.timers)-1]
}

type sentEvent struct {
	sessionID string
	ev        model.Event
}

// recordingHub implements Broadcaster and keeps everything it was given.
type recordingHub struct {
	mu       sync.Mutex
	sent     []sentEvent
	external []model.Event
}

func (r *recordingHub) Broadcast(sessionID string, ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentEvent{sessionID: sessionID, ev: ev})
}

func (r *recordingHub) NotifyExternal(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.external = append(r.external, ev)
}

func (r *recordingHub) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.ev.EventName() == name {
			n++
		}
	}
	return n
}

func (r *recordingHub) to(sessionID, name string) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Event
	for _, s := range r.sent {
		if s.sessionID == sessionID && s.ev.EventName() == name {
			out = append(out, s.ev)
		}
	}
	return out
}

type testEnv struct {
	clock    *fakeClock
	timers   *fakeTimers
	store    *SessionStore
	registry *LiveRegistry
	pairs    *PairingMap
	hub      *recordingHub
	pk       *PKManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zaptest.NewLogger(t)
	env := &testEnv{clock: newFakeClock(), timers: &fakeTimers{}, hub: &recordingHub{}}
	env.store = NewSessionStore()
	env.registry = NewLiveRegistry(env.store, 90*time.Second, DefaultFallback(), log)
	env.registry.now = env.clock.Now
	env.pairs = NewPairingMap(env.store)
	env.pk = NewPKManager(env.registry, env.pairs, env.hub, PKConfig{
		DefaultDuration: 180 * time.Second,
		MinDuration:     30 * time.Second,
		MaxDuration:     time.Hour,
		InviteTTL:       time.Minute,
		ResultTTL:       10 * time.Minute,
	}, nil, log)
	env.pk.now = env.clock.Now
	env.pk.schedule = env.timers.schedule
	return env
}

func testSession(id string) model.LiveSession {
	return model.LiveSession{
		ID:                  id,
		OwnerID:             "owner-" + id,
		DisplayName:         "Live " + id,
		AvatarURL:           "https://cdn.example.com/" + id + ".png",
		ChannelName:         "channel-" + id,
		OwnerMediaSubjectID: 1000,
	}
}

func (env *testEnv) register(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := env.registry.Register(testSession(id)); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}
}

// activePK registers a and b and returns an accepted pk between them.
func (env *testEnv) activePK(t *testing.T, a, b string) model.PKPairing {
	t.Helper()
	env.register(t, a, b)
	pk, err := env.pk.Invite(a, b, 0)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	pk, err = env.pk.Accept(pk.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	return pk
}
