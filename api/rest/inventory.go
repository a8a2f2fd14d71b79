package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/vkrpg/audit"
	"github.com/kasuganosora/vkrpg/game/item"
	mw "github.com/kasuganosora/vkrpg/middleware"
)

// InventoryHandler handles inventory REST endpoints.
type InventoryHandler struct {
	inv    *item.InventoryService
	audit  *audit.Service
	logger *zap.Logger
}

// NewInventoryHandler creates a new InventoryHandler. a may be nil.
func NewInventoryHandler(inv *item.InventoryService, a *audit.Service, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{inv: inv, audit: a, logger: logger}
}

// List handles GET /api/inventory.
func (h *InventoryHandler) List(c *gin.Context) {
	items, err := h.inv.List(c.Request.Context(), mw.GetPlayerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type addItemRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Icon     string `json:"icon" binding:"max=16"`
	Quantity int    `json:"quantity" binding:"omitempty,min=1,max=9999"`
	Type     string `json:"type" binding:"max=50"`
	Rarity   string `json:"rarity" binding:"max=20"`
}

// Add handles POST /api/inventory/add.
func (h *InventoryHandler) Add(c *gin.Context) {
	start := time.Now()
	var req addItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	it, err := h.inv.AddOrMerge(c.Request.Context(), mw.GetPlayerID(c), item.ItemSpec{
		Name:     req.Name,
		Icon:     req.Icon,
		Quantity: req.Quantity,
		Type:     req.Type,
		Rarity:   req.Rarity,
	})
	record(h.audit, c, ActionInventoryAdd, start, req, it, err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item_id": it.ID, "item": it})
}

// Use handles POST /api/inventory/use/:id, consuming one unit.
func (h *InventoryHandler) Use(c *gin.Context) {
	h.remove(c, 1)
}

type removeItemRequest struct {
	Quantity int `json:"quantity" binding:"omitempty,min=1,max=9999"`
}

// Remove handles POST /api/inventory/remove/:id. The body is optional and
// quantity defaults to 1.
func (h *InventoryHandler) Remove(c *gin.Context) {
	var req removeItemRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	h.remove(c, req.Quantity)
}

func (h *InventoryHandler) remove(c *gin.Context, quantity int) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	left, err := h.inv.Remove(c.Request.Context(), mw.GetPlayerID(c), id, quantity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "remaining": left})
}
