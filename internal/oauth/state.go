package oauth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidState = errors.New("oauth: invalid state")

// StateSigner issues the signed state parameter round-tripped through the
// provider's consent screen. It binds the flow to a service and an admin.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{secret: []byte(secret), ttl: 10 * time.Minute}
}

func (s *StateSigner) Issue(service string, adminID uint) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(adminID), 10),
		Audience:  jwt.ClaimStrings{service},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify returns the admin id carried by a state issued for service.
func (s *StateSigner) Verify(state, service string) (uint, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithAudience(service), jwt.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidState
	}
	return uint(id), nil
}
