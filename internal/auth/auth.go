// Package auth answers "who is signed in".
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

var ErrSignedOut = errors.New("no signed-in user")

// Provider yields the current user's id.
type Provider interface {
	CurrentUserID() (string, error)
}

// Static is a fixed user id from configuration.
type Static string

func (s Static) CurrentUserID() (string, error) {
	if s == "" {
		return "", ErrSignedOut
	}
	return string(s), nil
}

// Token reads the user id from the sub claim of an HS256 session token.
type Token struct {
	token  string
	secret []byte
}

func NewToken(token, secret string) *Token {
	return &Token{token: token, secret: []byte(secret)}
}

func (t *Token) CurrentUserID() (string, error) {
	if t.token == "" {
		return "", ErrSignedOut
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(t.token, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("bad jwt signing method, expected HMAC but got %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("verify session token: %w", err)
	}
	if claims.Subject == "" {
		return "", ErrSignedOut
	}
	return claims.Subject, nil
}

// Sign issues a session token for userID; used by tooling and tests.
func Sign(secret string, claims jwt.RegisteredClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
