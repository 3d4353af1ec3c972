package gatewaytest

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/recruitport/recruitport-go/internal/model"
)

var errInvalidToken = errors.New("invalid or expired token")

// tokenClaims is the claim set the auth service embeds in a credential:
// the subject carries the email, id and role are custom claims.
type tokenClaims struct {
	jwt.RegisteredClaims
	ID   string `json:"id"`
	Role string `json:"role"`
}

// mintToken signs a credential for the given user.
func mintToken(u model.User, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		ID:   u.ID,
		Role: string(u.Role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// verifyToken parses and validates a credential, returning its claims.
func verifyToken(tokenString, secret string) (*tokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, errInvalidToken
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}
