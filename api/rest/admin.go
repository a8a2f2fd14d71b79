package rest

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/vkrpg/audit"
	"github.com/kasuganosora/vkrpg/cache"
	"github.com/kasuganosora/vkrpg/game/market"
	"github.com/kasuganosora/vkrpg/game/player"
	"github.com/kasuganosora/vkrpg/scheduler"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	players *player.Service
	pubsub  cache.PubSub
	sched   *scheduler.Scheduler
	audit   *audit.Service
	logger  *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	players *player.Service,
	pubsub cache.PubSub,
	sched *scheduler.Scheduler,
	a *audit.Service,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{players: players, pubsub: pubsub, sched: sched, audit: a, logger: logger}
}

// GetPlayer returns the full profile of any player.
// GET /api/admin/players/:id
func (h *AdminHandler) GetPlayer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.players.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newProfileView(p))
}

type grantPremiumRequest struct {
	Days int `json:"days" binding:"required,min=1,max=3650"`
}

// GrantPremium extends a player's premium status.
// POST /api/admin/players/:id/premium
func (h *AdminHandler) GrantPremium(c *gin.Context) {
	start := time.Now()
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req grantPremiumRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.players.GrantPremium(c.Request.Context(), id, time.Duration(req.Days)*24*time.Hour)
	if err != nil {
		record(h.audit, c, ActionGrantPremium, start, gin.H{"player_id": id, "days": req.Days}, nil, err)
		respondError(c, h.logger, err)
		return
	}
	resp := gin.H{"success": true, "is_premium": p.IsPremium, "premium_until": p.PremiumUntil}
	record(h.audit, c, ActionGrantPremium, start, gin.H{"player_id": id, "days": req.Days}, resp, nil)
	h.logger.Info("premium granted", zap.Int64("player_id", id), zap.Int("days", req.Days))
	c.JSON(http.StatusOK, resp)
}

type announceRequest struct {
	Message string `json:"message" binding:"required,max=500"`
}

// Announce broadcasts a message on the market event stream.
// POST /api/admin/announce
func (h *AdminHandler) Announce(c *gin.Context) {
	start := time.Now()
	var req announceRequest
	if !bindJSON(c, &req) {
		return
	}
	err := market.Publish(c.Request.Context(), h.pubsub, market.Event{
		Type:    market.EventAnnounce,
		Message: req.Message,
	})
	record(h.audit, c, ActionAdminAnnounce, start, req, nil, err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListSchedulerTasks returns names of all registered tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.ListTickers()})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// If adminKey is empty all admin endpoints answer 503, so the server cannot
// be deployed with admin routes open. Set server.admin_key to enable them.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
