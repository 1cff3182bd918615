package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestStatic(t *testing.T) {
	if _, err := Static("").CurrentUserID(); !errors.Is(err, ErrSignedOut) {
		t.Errorf("empty Static error = %v, want ErrSignedOut", err)
	}
	id, err := Static("u1").CurrentUserID()
	if err != nil || id != "u1" {
		t.Errorf("CurrentUserID() = %q, %v", id, err)
	}
}

func TestToken(t *testing.T) {
	valid, err := Sign("s3cret", jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	if err != nil {
		t.Fatal(err)
	}
	expired, _ := Sign("s3cret", jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	noSub, _ := Sign("s3cret", jwt.RegisteredClaims{})

	tests := []struct {
		name    string
		token   string
		secret  string
		want    string
		wantErr bool
	}{
		{"valid", valid, "s3cret", "u1", false},
		{"wrong secret", valid, "other", "", true},
		{"expired", expired, "s3cret", "", true},
		{"no subject", noSub, "s3cret", "", true},
		{"empty", "", "s3cret", "", true},
		{"garbage", "not.a.jwt", "s3cret", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewToken(tt.token, tt.secret).CurrentUserID()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CurrentUserID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CurrentUserID() = %q, want %q", got, tt.want)
			}
		})
	}
}
