package rest

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kasuganosora/vkrpg/audit"
	mw "github.com/kasuganosora/vkrpg/middleware"
)

// Audited actions.
const (
	ActionAddGold       = "player.add_gold"
	ActionSpendGold     = "player.spend_gold"
	ActionAddCrystals   = "player.add_crystals"
	ActionSpendCrystals = "player.spend_crystals"
	ActionBuySkin       = "player.buy_skin"
	ActionMarketSell    = "market.sell"
	ActionMarketBuy     = "market.buy"
	ActionInventoryAdd  = "inventory.add"
	ActionGrantPremium  = "admin.grant_premium"
	ActionAdminAnnounce = "admin.announce"
)

// record writes an audit entry for the current request. Nil a is a no-op.
func record(a *audit.Service, c *gin.Context, action string, start time.Time, req, resp interface{}, err error) {
	if a == nil {
		return
	}
	entry := audit.AuditEntry{
		TraceID:    mw.GetTraceID(c),
		Action:     action,
		Request:    req,
		Response:   resp,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	}
	if id := mw.GetPlayerID(c); id != 0 {
		entry.PlayerID = &id
	}
	if err != nil {
		entry.Error = err.Error()
	}
	a.Log(entry)
}
