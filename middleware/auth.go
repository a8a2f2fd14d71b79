package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/vkrpg/cache"
	"github.com/kasuganosora/vkrpg/config"
	"github.com/kasuganosora/vkrpg/identity"
)

const (
	PlayerIDKey = "player_id"
	VKIDKey     = "vk_id"
	TokenKey    = "session_token"

	VKParamsHeader = "X-VK-Params"
)

// PlayerResolver maps a verified external identity to a player id, creating
// the player on first sight.
type PlayerResolver interface {
	ResolveID(ctx context.Context, vkID int64) (int64, error)
}

// Auth accepts either a Bearer session JWT backed by a live cache session, or
// raw VK launch params in X-VK-Params. The latter resolves (or creates) the
// player before the handler runs.
func Auth(sec config.SecurityConfig, c cache.Cache, v *identity.Verifier, players PlayerResolver, log *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if header := ctx.GetHeader("Authorization"); header != "" {
			authBearer(ctx, header, sec, c)
			return
		}
		authLaunchParams(ctx, v, players, log)
	}
}

func authBearer(ctx *gin.Context, header string, sec config.SecurityConfig, c cache.Cache) {
	if !strings.HasPrefix(header, "Bearer ") {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	tokenStr := strings.TrimPrefix(header, "Bearer ")

	claims, err := ParseToken(tokenStr, sec.JWTSecret)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	cacheCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()
	exists, err := c.Exists(cacheCtx, SessionKey(tokenStr))
	if err != nil || !exists {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	ctx.Set(PlayerIDKey, claims.PlayerID)
	ctx.Set(VKIDKey, claims.VKID)
	ctx.Set(TokenKey, tokenStr)
	ctx.Next()
}

func authLaunchParams(ctx *gin.Context, v *identity.Verifier, players PlayerResolver, log *zap.Logger) {
	vkID, err := v.Verify(ctx.GetHeader(VKParamsHeader))
	if err != nil {
		msg := "invalid VK signature"
		if errors.Is(err, identity.ErrMissingParams) {
			msg = "missing VK launch params"
		} else if errors.Is(err, identity.ErrMissingUserID) {
			msg = "missing vk_user_id"
		}
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
		return
	}

	playerID, err := players.ResolveID(ctx.Request.Context(), vkID)
	if err != nil {
		log.Error("resolve player",
			zap.Int64("vk_id", vkID),
			zap.String("trace_id", GetTraceID(ctx)),
			zap.Error(err),
		)
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	ctx.Set(PlayerIDKey, playerID)
	ctx.Set(VKIDKey, vkID)
	ctx.Next()
}

// GetPlayerID retrieves the authenticated player ID from the Gin context.
func GetPlayerID(c *gin.Context) int64 {
	if v, exists := c.Get(PlayerIDKey); exists {
		return v.(int64)
	}
	return 0
}

// GetVKID retrieves the verified external identity from the Gin context.
func GetVKID(c *gin.Context) int64 {
	if v, exists := c.Get(VKIDKey); exists {
		return v.(int64)
	}
	return 0
}

// GetSessionToken returns the Bearer token the request authenticated with, if any.
func GetSessionToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}
