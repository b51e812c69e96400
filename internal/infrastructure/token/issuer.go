package token

import (
	"context"
	"errors"
	"time"

	"harmony/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims are the access-token claims the media server checks on connect.
type Claims struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// LocalIssuer mints room-scoped access tokens with a shared HMAC secret.
// Used for self-hosted deployments where no remote token service exists.
type LocalIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewLocalIssuer(secret string, ttl time.Duration) *LocalIssuer {
	return &LocalIssuer{secret: []byte(secret), ttl: ttl}
}

// Request signs a short-lived token granting identity access to roomID.
func (i *LocalIssuer) Request(ctx context.Context, roomID string, identity domain.UserID, displayName string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Room:     roomID,
		Identity: string(identity),
		Name:     displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(identity),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate parses and checks a token produced by Request.
func (i *LocalIssuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
