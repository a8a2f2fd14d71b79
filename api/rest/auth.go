package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/vkrpg/cache"
	"github.com/kasuganosora/vkrpg/config"
	mw "github.com/kasuganosora/vkrpg/middleware"
)

// AuthHandler exchanges verified launch params for session tokens.
type AuthHandler struct {
	cache  cache.Cache
	sec    config.SecurityConfig
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{cache: c, sec: sec, logger: logger}
}

// issue signs a token for the authenticated player and stores its session.
func (h *AuthHandler) issue(c *gin.Context) (string, error) {
	playerID := mw.GetPlayerID(c)
	token, err := mw.GenerateToken(playerID, mw.GetVKID(c), h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Set(ctx, mw.SessionKey(token), strconv.FormatInt(playerID, 10), h.sec.JWTTTLH); err != nil {
		return "", err
	}
	return token, nil
}

// Session handles POST /api/auth/session. The route sits behind Auth, so the
// launch params are already verified and the player exists.
func (h *AuthHandler) Session(c *gin.Context) {
	token, err := h.issue(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"player_id":  mw.GetPlayerID(c),
		"expires_in": int64(h.sec.JWTTTLH.Seconds()),
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := mw.GetSessionToken(c)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a session request", "code": CodeInvalidRequest})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Del(ctx, mw.SessionKey(token)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Refresh handles POST /api/auth/refresh: rotates a session token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	old := mw.GetSessionToken(c)
	if old == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a session request", "code": CodeInvalidRequest})
		return
	}
	token, err := h.issue(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(old))
	c.JSON(http.StatusOK, gin.H{"token": token})
}
