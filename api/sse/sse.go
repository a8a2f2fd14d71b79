package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/vkrpg/cache"
	"github.com/kasuganosora/vkrpg/game/market"
)

const defaultKeepalive = 30 * time.Second

// Handler streams marketplace events to browsers.
type Handler struct {
	pubsub    cache.PubSub
	logger    *zap.Logger
	keepalive time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, logger *zap.Logger) *Handler {
	return &Handler{
		pubsub:    pubsub,
		logger:    logger,
		keepalive: defaultKeepalive,
		done:      make(chan struct{}),
	}
}

// Close ends every open stream. http.Server.Shutdown does not cancel
// hijacked or long-lived requests, so register this with RegisterOnShutdown.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ServeMarket handles GET /api/market/events.
// Each message on the market channel becomes one SSE frame named after the
// event type (listed, sold, announce).
func (h *Handler) ServeMarket(c *gin.Context) {
	ctx := c.Request.Context()
	msgCh, unsub, err := h.pubsub.Subscribe(ctx, market.EventsChannel)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", eventName(msg.Payload), msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-ctx.Done():
			return

		case <-h.done:
			return
		}
	}
}

func eventName(payload string) string {
	var ev struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(payload), &ev); err != nil || ev.Type == "" {
		return "message"
	}
	return ev.Type
}
