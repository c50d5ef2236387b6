// Package auth holds the server's credential primitives: adaptive password
// hashing and the signed session cookie value.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/thejerf/abtime"
)

// Claims carries the registered claims plus the server-side session id the
// cookie refers to. Identity and roles never travel in the token.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// TokenIssuer signs and verifies session cookie values with HS256.
type TokenIssuer struct {
	secret   []byte
	validity time.Duration
	clock    abtime.AbstractTime
}

func NewTokenIssuer(secret []byte, validity time.Duration, clock abtime.AbstractTime) *TokenIssuer {
	return &TokenIssuer{secret: secret, validity: validity, clock: clock}
}

// Validity is the lifetime given to every issued token.
func (i *TokenIssuer) Validity() time.Duration { return i.validity }

// GenerateToken returns a signed token bound to sessionID.
func (i *TokenIssuer) GenerateToken(sessionID string) (string, error) {
	now := i.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validity)),
		},
		SessionID: sessionID,
	})

	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetSessionIDFromToken verifies tokenString and returns the session id it
// carries. Expired tokens yield common.ErrTokenExpired, any other defect
// common.ErrInvalidToken.
func (i *TokenIssuer) GetSessionIDFromToken(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.SessionID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.SessionID, nil
}
