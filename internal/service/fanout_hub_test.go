package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/psds-microservice/live-pk-service/internal/model"
	"go.uber.org/zap/zaptest"
)

func newTestHub(t *testing.T, notifier Notifier) *FanoutHub {
	t.Helper()
	return NewFanoutHub(HubOptions{SendBuffer: 4, NotifyTimeout: 200 * time.Millisecond}, notifier, nil, zaptest.NewLogger(t))
}

func drainFrames(sub *Subscriber) []model.Envelope {
	var out []model.Envelope
	for {
		select {
		case raw, ok := <-sub.Send:
			if !ok {
				return out
			}
			var env model.Envelope
			_ = json.Unmarshal(raw, &env)
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestFanoutHub_BroadcastIsolation(t *testing.T) {
	hub := newTestHub(t, nil)
	a1, a2, b1 := hub.Connect(), hub.Connect(), hub.Connect()
	hub.Subscribe("A", a1)
	hub.Subscribe("A", a2)
	hub.Subscribe("B", b1)

	hub.Broadcast("A", model.ScoreEvent{PairingID: "p1", InitiatorScore: 3})

	for _, sub := range []*Subscriber{a1, a2} {
		frames := drainFrames(sub)
		if len(frames) != 1 || frames[0].Event != model.EventScore {
			t.Errorf("subscriber of A got %+v, want one score frame", frames)
		}
	}
	if frames := drainFrames(b1); len(frames) != 0 {
		t.Errorf("subscriber of B got %d frames, want 0", len(frames))
	}
}

func TestFanoutHub_UnsubscribeAll(t *testing.T) {
	hub := newTestHub(t, nil)
	a1, a2, b1 := hub.Connect(), hub.Connect(), hub.Connect()
	hub.Subscribe("A", a1)
	hub.Subscribe("A", a2)
	hub.Subscribe("B", b1)

	hub.Unsubscribe("A", a1)
	hub.Unsubscribe("A", a2)
	hub.Unsubscribe("A", a2) // absent handle

	if n := hub.GroupSize("A"); n != 0 {
		t.Errorf("GroupSize(A) = %d, want 0", n)
	}
	if n := hub.GroupSize("B"); n != 1 {
		t.Errorf("GroupSize(B) = %d, want 1", n)
	}
	if n := hub.GroupCount(); n != 1 {
		t.Errorf("GroupCount = %d, want 1 (empty groups removed)", n)
	}
}

func TestFanoutHub_DropPrunesEveryGroup(t *testing.T) {
	hub := newTestHub(t, nil)
	sub, other := hub.Connect(), hub.Connect()
	hub.Subscribe("A", sub)
	hub.Subscribe("B", sub)
	hub.Subscribe("B", other)

	hub.Drop(sub)
	hub.Drop(sub)

	if hub.GroupSize("A") != 0 || hub.GroupSize("B") != 1 {
		t.Errorf("groups after drop: A=%d B=%d, want 0 and 1", hub.GroupSize("A"), hub.GroupSize("B"))
	}
	if _, ok := <-sub.Send; ok {
		t.Error("Send should be closed after Drop")
	}
	if hub.Subscribe("A", sub) {
		t.Error("Subscribe of a dropped handle should fail")
	}
	hub.Broadcast("B", model.ScoreEvent{}) // must not panic on the closed channel
}

func TestFanoutHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := newTestHub(t, nil)
	slow, fast := hub.Connect(), hub.Connect()
	hub.Subscribe("A", slow)
	hub.Subscribe("A", fast)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Broadcast("A", model.ScoreEvent{InitiatorScore: int64(i)})
			drainFrames(fast)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a full subscriber")
	}
	if n := len(drainFrames(slow)); n != 4 {
		t.Errorf("slow subscriber frames = %d, want buffer size 4", n)
	}
}

func TestFanoutHub_ConcurrentBroadcastAndDrop(t *testing.T) {
	hub := newTestHub(t, nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		sub := hub.Connect()
		hub.Subscribe("A", sub)
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Broadcast("A", model.ScoreEvent{})
		}()
		go func() {
			defer wg.Done()
			hub.Drop(sub)
		}()
	}
	wg.Wait()
	if n := hub.GroupSize("A"); n != 0 {
		t.Errorf("GroupSize = %d, want 0", n)
	}
}

type stubNotifier struct {
	mu    sync.Mutex
	got   []Notification
	err   error
	delay time.Duration
}

func (s *stubNotifier) Notify(ctx context.Context, n Notification) error {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.delay):
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return s.err
}

func (s *stubNotifier) received() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.got...)
}

func TestFanoutHub_NotifyExternal(t *testing.T) {
	stub := &stubNotifier{}
	hub := newTestHub(t, stub)

	hub.NotifyExternal(model.RejectedEvent{PairingID: "p1", Reason: model.RejectDeclined})
	if err := hub.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	got := stub.received()
	if len(got) != 1 || got[0].EventType != model.EventRejected {
		t.Errorf("notifications = %+v, want one rejected", got)
	}
}

func TestFanoutHub_NotifyExternal_DoesNotBlockOrFail(t *testing.T) {
	stub := &stubNotifier{delay: time.Hour, err: errors.New("sink down")}
	hub := newTestHub(t, stub)

	start := time.Now()
	hub.NotifyExternal(model.EndedEvent{PairingID: "p1"})
	if time.Since(start) > 100*time.Millisecond {
		t.Error("NotifyExternal must return immediately")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := hub.Drain(ctx); err != nil {
		t.Fatalf("notification should be cut off by the notify timeout: %v", err)
	}
	if len(stub.received()) != 0 {
		t.Error("timed out notification should not be recorded")
	}
}

func TestFanoutHub_WithPKManager(t *testing.T) {
	env := newTestEnv(t)
	hub := newTestHub(t, nil)
	env.pk.hub = hub
	env.register(t, "a", "b")

	watchA, watchB := hub.Connect(), hub.Connect()
	hub.Subscribe("a", watchA)
	hub.Subscribe("b", watchB)

	pk, err := env.pk.Invite("a", "b", 0)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := env.pk.Accept(pk.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	_, _, _ = env.pk.End(pk.ID, model.EndManual)

	names := func(frames []model.Envelope) []string {
		var out []string
		for _, f := range frames {
			out = append(out, f.Event)
		}
		return out
	}
	gotA := names(drainFrames(watchA))
	gotB := names(drainFrames(watchB))
	if len(gotA) != 2 || gotA[0] != model.EventAccepted || gotA[1] != model.EventEnded {
		t.Errorf("a frames = %v, want [accepted ended]", gotA)
	}
	if len(gotB) != 3 || gotB[0] != model.EventInvite {
		t.Errorf("b frames = %v, want [invite accepted ended]", gotB)
	}
}
