package iam

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// accessClaims are the JWT claims carried by an access token.
type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Type  string `json:"type"`
}

// tokenIssuer issues and verifies HS256 access tokens. The jti claim keys the
// revocation list, so logout can invalidate tokens before their expiry.
type tokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func newTokenIssuer(secret []byte, issuer string, ttl time.Duration) *tokenIssuer {
	return &tokenIssuer{secret: secret, issuer: issuer, ttl: ttl}
}

// issue creates a signed access token for the identity and returns the token,
// its jti, and its expiry.
func (t *tokenIssuer) issue(ident *Identity) (string, uuid.UUID, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(t.ttl)
	jti := uuid.New()

	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   ident.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti.String(),
		},
		Email: ident.Email,
		Type:  "access",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", uuid.Nil, time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, jti, expiresAt, nil
}

// verify parses and validates an access token.
// Returns ErrTokenExpired for expired tokens and ErrTokenNotFound for
// anything else that fails validation: a malformed or forged token is
// indistinguishable from one that was never issued.
func (t *tokenIssuer) verify(tokenStr string) (*accessClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&accessClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenNotFound
	}
	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid || claims.Type != "access" {
		return nil, ErrTokenNotFound
	}
	return claims, nil
}
