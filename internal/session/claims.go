package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/recruitport/recruitport-go/internal/model"
)

// ErrDecode marks a credential whose embedded claims are missing or
// malformed. It is never surfaced to the user; it silently resets the
// session to anonymous.
var ErrDecode = errors.New("malformed credential")

// tokenClaims mirrors the claims the auth service embeds in a
// credential: sub carries the email, id and role are custom claims.
type tokenClaims struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// decodeCredential structurally parses a credential into a Session.
// The client holds no signing secret; signature verification is the
// gateway's job, and every authenticated call is re-checked server
// side. Any missing required claim, or an already-expired credential,
// is a decode failure.
func decodeCredential(credential string, now time.Time) (Session, error) {
	var claims tokenClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(credential, &claims); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if claims.ID == "" || claims.Subject == "" {
		return Session{}, fmt.Errorf("%w: missing identity claims", ErrDecode)
	}
	role := model.Role(claims.Role)
	if !role.Valid() {
		return Session{}, fmt.Errorf("%w: unknown role %q", ErrDecode, claims.Role)
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return Session{}, fmt.Errorf("%w: credential expired", ErrDecode)
	}

	return Session{
		ID:    claims.ID,
		Email: claims.Subject,
		Role:  role,
	}, nil
}
