package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/vkrpg/audit"
	"github.com/kasuganosora/vkrpg/game/market"
	mw "github.com/kasuganosora/vkrpg/middleware"
)

// MarketHandler handles marketplace endpoints.
type MarketHandler struct {
	market *market.Service
	audit  *audit.Service
	logger *zap.Logger
}

// NewMarketHandler creates a MarketHandler. a may be nil.
func NewMarketHandler(m *market.Service, a *audit.Service, logger *zap.Logger) *MarketHandler {
	return &MarketHandler{market: m, audit: a, logger: logger}
}

// List handles GET /api/market?skip=&limit=. Public.
func (h *MarketHandler) List(c *gin.Context) {
	skip, ok := queryInt(c, "skip", 0)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	listings, err := h.market.ListActive(c.Request.Context(), skip, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": listings})
}

// Mine handles GET /api/market/my.
func (h *MarketHandler) Mine(c *gin.Context) {
	listings, err := h.market.ListBySeller(c.Request.Context(), mw.GetPlayerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": listings})
}

type sellRequest struct {
	ItemName   string `json:"item_name" binding:"required,max=100"`
	ItemIcon   string `json:"item_icon" binding:"max=16"`
	ItemRarity string `json:"item_rarity" binding:"max=20"`
	Price      int64  `json:"price" binding:"required,min=1,max=1000000000"`
	Quantity   int    `json:"quantity" binding:"omitempty,min=1,max=9999"`
}

// Sell handles POST /api/market/sell.
func (h *MarketHandler) Sell(c *gin.Context) {
	start := time.Now()
	var req sellRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	l, err := h.market.CreateListing(c.Request.Context(), mw.GetPlayerID(c), market.ListingSpec{
		ItemName:   req.ItemName,
		ItemIcon:   req.ItemIcon,
		ItemRarity: req.ItemRarity,
		Price:      req.Price,
		Quantity:   req.Quantity,
	})
	if err != nil {
		record(h.audit, c, ActionMarketSell, start, req, nil, err)
		respondError(c, h.logger, err)
		return
	}
	resp := gin.H{"success": true, "listing_id": l.ID}
	record(h.audit, c, ActionMarketSell, start, req, resp, nil)
	c.JSON(http.StatusOK, resp)
}

// Buy handles POST /api/market/buy/:id.
func (h *MarketHandler) Buy(c *gin.Context) {
	start := time.Now()
	id, ok := pathID(c)
	if !ok {
		return
	}
	req := gin.H{"listing_id": id}
	r, err := h.market.Purchase(c.Request.Context(), mw.GetPlayerID(c), id)
	if err != nil {
		record(h.audit, c, ActionMarketBuy, start, req, nil, err)
		respondError(c, h.logger, err)
		return
	}
	record(h.audit, c, ActionMarketBuy, start, req, gin.H{
		"gold":       r.BuyerGold,
		"total":      r.Total,
		"commission": r.Commission,
		"seller_id":  r.Listing.SellerID,
	}, nil)
	c.JSON(http.StatusOK, gin.H{"success": true, "gold": r.BuyerGold})
}
