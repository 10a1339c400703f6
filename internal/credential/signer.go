// Package credential issues the opaque join credentials for the media transport.
// A credential is an HS256 JWT scoped to one channel, subject and role.
package credential

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/psds-microservice/live-pk-service/internal/errs"
)

// Role of the subject inside the channel.
type Role string

const (
	RolePublisher  Role = "publisher"
	RoleSubscriber Role = "subscriber"
)

// ParseRole maps "subscriber" to RoleSubscriber and anything else to RolePublisher.
func ParseRole(s string) Role {
	if s == string(RoleSubscriber) {
		return RoleSubscriber
	}
	return RolePublisher
}

// Claims carried by a credential.
type Claims struct {
	Channel string `json:"channel"`
	Role    Role   `json:"role"`
	jwt.RegisteredClaims
}

// Signer signs credentials with the app secret.
type Signer struct {
	appID  string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a signer. Empty appID or secret leaves it unconfigured;
// Sign then fails with ErrUnconfigured.
func NewSigner(appID, secret string, defaultTTL time.Duration) *Signer {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &Signer{appID: appID, secret: []byte(secret), ttl: defaultTTL, now: time.Now}
}

// Configured reports whether signing material is present.
func (s *Signer) Configured() bool {
	return s != nil && s.appID != "" && len(s.secret) > 0
}

// Sign returns a credential for subjectID to join channel with role.
func (s *Signer) Sign(channel string, subjectID int64, role Role, ttl time.Duration) (string, error) {
	if !s.Configured() {
		return "", errs.ErrSignerUnconfigured
	}
	if channel == "" {
		return "", errs.Invalid("channel is required")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now().UTC()
	claims := Claims{
		Channel: channel,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.appID,
			Subject:   strconv.FormatInt(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return signed, nil
}

// Verify parses a credential issued by this signer.
func (s *Signer) Verify(token string) (*Claims, error) {
	if !s.Configured() {
		return nil, errs.ErrSignerUnconfigured
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.appID),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.Join(errs.ErrInvalidArgument, err)
	}
	return claims, nil
}
