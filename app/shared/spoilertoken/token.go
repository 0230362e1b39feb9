// Package spoilertoken mints and verifies the signed, expiring tokens that
// gate spoiler log downloads. The seed module mints one when a race is
// recorded; the ops endpoint verifies it before serving the artifact.
package spoilertoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// ErrInvalidToken covers every verification failure; callers get no detail
// beyond "no".
var ErrInvalidToken = errors.New("invalid spoiler token")

// Signer mints and verifies spoiler unlock tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner creates a Signer. ttl bounds how long an unlock link stays live.
func NewSigner(secret []byte, ttl time.Duration) *Signer {
	return &Signer{secret: secret, ttl: ttl}
}

type claims struct {
	RaceID string `json:"race_id"`
	jwt.RegisteredClaims
}

// Mint signs a token unlocking raceID's spoiler until now+ttl.
func (s *Signer) Mint(raceID sharedtypes.RaceID, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RaceID: string(raceID),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign spoiler token: %w", err)
	}
	return signed, nil
}

// Verify checks the token and returns the race it unlocks.
func (s *Signer) Verify(tokenString string) (sharedtypes.RaceID, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || c.RaceID == "" {
		return "", ErrInvalidToken
	}
	return sharedtypes.RaceID(c.RaceID), nil
}
