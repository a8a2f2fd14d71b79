package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the session JWT payload.
type Claims struct {
	PlayerID int64 `json:"player_id"`
	VKID     int64 `json:"vk_id"`
	jwt.RegisteredClaims
}

// GenerateToken signs a session JWT for the given player with the given secret and TTL.
// Every token carries a fresh ID, so two tokens issued in the same second differ.
func GenerateToken(playerID, vkID int64, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		PlayerID: playerID,
		VKID:     vkID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates a JWT string and returns the claims.
func ParseToken(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.PlayerID <= 0 {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// SessionKey is the cache key under which a live session token is stored.
func SessionKey(token string) string { return "session:" + token }
