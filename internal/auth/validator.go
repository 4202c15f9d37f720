// Package auth admits peers to the websocket listener. Admission is layered
// on top of the wire protocol — the frames themselves carry no credentials —
// so raw TCP links between trusted hosts need none of this.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const audience = "peerdoc"

// Validator validates peer admission tokens and returns parsed claims.
type Validator interface {
	Validate(ctx context.Context, token string) (*Claims, error)
}

type hmacValidator struct {
	secret []byte
}

// NewValidator returns a Validator checking HMAC-signed tokens against the
// shared secret.
func NewValidator(secret string) (Validator, error) {
	if secret == "" {
		return nil, errors.New("peer JWT secret must not be empty")
	}
	return &hmacValidator{secret: []byte(secret)}, nil
}

func (v *hmacValidator) Validate(_ context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithAudience(audience))
	if err != nil {
		return nil, fmt.Errorf("jwt validation failed: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid jwt token")
	}
	return claims, nil
}

// MintToken signs an admission token for repoID with the shared secret.
// Dialing nodes call this before opening a websocket link.
func MintToken(secret string, repoID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RepoID: repoID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign admission token: %w", err)
	}
	return signed, nil
}
