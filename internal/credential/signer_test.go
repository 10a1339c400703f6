package credential

import (
	"errors"
	"testing"
	"time"

	"github.com/psds-microservice/live-pk-service/internal/errs"
)

func TestParseRole(t *testing.T) {
	if ParseRole("subscriber") != RoleSubscriber {
		t.Error("subscriber should map to RoleSubscriber")
	}
	if ParseRole("") != RolePublisher || ParseRole("admin") != RolePublisher {
		t.Error("anything else should map to RolePublisher")
	}
}

func TestSigner_Unconfigured(t *testing.T) {
	s := NewSigner("", "", time.Hour)
	if s.Configured() {
		t.Fatal("Configured should be false without app id and secret")
	}
	_, err := s.Sign("room", 42, RolePublisher, 0)
	if !errors.Is(err, errs.ErrUnconfigured) {
		t.Errorf("err = %v, want ErrUnconfigured", err)
	}
}

func TestSigner_SignAndVerify(t *testing.T) {
	s := NewSigner("app-1", "secret", time.Hour)
	token, err := s.Sign("room-7", 42, RoleSubscriber, 10*time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Channel != "room-7" {
		t.Errorf("channel = %q, want room-7", claims.Channel)
	}
	if claims.Subject != "42" {
		t.Errorf("sub = %q, want 42", claims.Subject)
	}
	if claims.Role != RoleSubscriber {
		t.Errorf("role = %q, want subscriber", claims.Role)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 10*time.Minute {
		t.Errorf("ttl = %v, want 10m", got)
	}
}

func TestSigner_DefaultTTL(t *testing.T) {
	s := NewSigner("app-1", "secret", 30*time.Minute)
	token, err := s.Sign("room", 1, RolePublisher, 0)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 30*time.Minute {
		t.Errorf("ttl = %v, want 30m", got)
	}
}

func TestSigner_RejectsEmptyChannel(t *testing.T) {
	s := NewSigner("app-1", "secret", time.Hour)
	if _, err := s.Sign("", 1, RolePublisher, 0); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestSigner_VerifyRejectsForeignSecret(t *testing.T) {
	token, err := NewSigner("app-1", "secret-a", time.Hour).Sign("room", 1, RolePublisher, 0)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := NewSigner("app-1", "secret-b", time.Hour).Verify(token); err == nil {
		t.Error("Verify should fail for a token signed with another secret")
	}
}

func TestSigner_VerifyRejectsExpired(t *testing.T) {
	s := NewSigner("app-1", "secret", time.Hour)
	token, err := s.Sign("room", 1, RolePublisher, time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := s.Verify(token); err == nil {
		t.Error("Verify should fail for an expired token")
	}
}
