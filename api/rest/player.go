package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/vkrpg/audit"
	"github.com/kasuganosora/vkrpg/game/player"
	mw "github.com/kasuganosora/vkrpg/middleware"
	"github.com/kasuganosora/vkrpg/model"
)

// PlayerHandler handles profile and currency endpoints.
type PlayerHandler struct {
	players *player.Service
	audit   *audit.Service
	logger  *zap.Logger
}

// NewPlayerHandler creates a PlayerHandler. a may be nil.
func NewPlayerHandler(players *player.Service, a *audit.Service, logger *zap.Logger) *PlayerHandler {
	return &PlayerHandler{players: players, audit: a, logger: logger}
}

type statsView struct {
	Attack  int   `json:"attack"`
	Defense int   `json:"defense"`
	Gold    int64 `json:"gold"`
}

type weaponView struct {
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Attack int    `json:"attack"`
}

type armorView struct {
	Name    string `json:"name"`
	Icon    string `json:"icon"`
	Defense int    `json:"defense"`
}

type accessoryView struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

type equipmentView struct {
	Weapon    *weaponView    `json:"weapon"`
	Armor     *armorView     `json:"armor"`
	Accessory *accessoryView `json:"accessory"`
}

type profileView struct {
	ID           int64         `json:"id"`
	VKID         int64         `json:"vk_id"`
	Name         string        `json:"name"`
	Level        int           `json:"level"`
	PlayerClass  string        `json:"player_class"`
	Stats        statsView     `json:"stats"`
	Crystals     int64         `json:"crystals"`
	CurrentSkin  string        `json:"current_skin"`
	Equipment    equipmentView `json:"equipment"`
	IsPremium    bool          `json:"is_premium"`
	PremiumUntil *time.Time    `json:"premium_until"`
	OwnedSkins   []string      `json:"owned_skins"`
}

func newProfileView(p *model.Player) profileView {
	v := profileView{
		ID:           p.ID,
		VKID:         p.VKID,
		Name:         p.Name,
		Level:        p.Level,
		PlayerClass:  p.PlayerClass,
		Stats:        statsView{Attack: p.Attack, Defense: p.Defense, Gold: p.Gold},
		Crystals:     p.Crystals,
		CurrentSkin:  p.CurrentSkin,
		IsPremium:    p.IsPremium,
		PremiumUntil: p.PremiumUntil,
		OwnedSkins:   make([]string, 0, len(p.OwnedSkins)),
	}
	if e := p.Equipment; e != nil {
		if e.WeaponName != "" {
			v.Equipment.Weapon = &weaponView{Name: e.WeaponName, Icon: e.WeaponIcon, Attack: e.WeaponAttack}
		}
		if e.ArmorName != "" {
			v.Equipment.Armor = &armorView{Name: e.ArmorName, Icon: e.ArmorIcon, Defense: e.ArmorDefense}
		}
		if e.AccessoryName != "" {
			v.Equipment.Accessory = &accessoryView{Name: e.AccessoryName, Icon: e.AccessoryIcon}
		}
	}
	for _, s := range p.OwnedSkins {
		v.OwnedSkins = append(v.OwnedSkins, s.SkinID)
	}
	return v
}

// Profile handles GET /api/player.
func (h *PlayerHandler) Profile(c *gin.Context) {
	p, err := h.players.Get(c.Request.Context(), mw.GetPlayerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newProfileView(p))
}

type amountRequest struct {
	Amount int64 `json:"amount" binding:"required,min=1,max=1000000000"`
}

type currencyOp struct {
	action   string
	currency player.Currency
	spend    bool
}

func (h *PlayerHandler) currency(op currencyOp) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		var req amountRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()
		id := mw.GetPlayerID(c)

		var (
			p   *model.Player
			err error
		)
		switch {
		case op.spend:
			p, err = h.players.Spend(ctx, id, req.Amount, op.currency)
		case op.currency == player.Crystals:
			p, err = h.players.AdjustCrystals(ctx, id, req.Amount)
		default:
			p, err = h.players.AdjustGold(ctx, id, req.Amount)
		}
		if err != nil {
			record(h.audit, c, op.action, start, req, nil, err)
			respondError(c, h.logger, err)
			return
		}

		resp := gin.H{"success": true}
		if op.currency == player.Crystals {
			resp["crystals"] = p.Crystals
		} else {
			resp["gold"] = p.Gold
		}
		record(h.audit, c, op.action, start, req, resp, nil)
		c.JSON(http.StatusOK, resp)
	}
}

// AddGold handles POST /api/player/add-gold.
func (h *PlayerHandler) AddGold() gin.HandlerFunc {
	return h.currency(currencyOp{action: ActionAddGold, currency: player.Gold})
}

// SpendGold handles POST /api/player/spend-gold.
func (h *PlayerHandler) SpendGold() gin.HandlerFunc {
	return h.currency(currencyOp{action: ActionSpendGold, currency: player.Gold, spend: true})
}

// AddCrystals handles POST /api/player/add-crystals.
func (h *PlayerHandler) AddCrystals() gin.HandlerFunc {
	return h.currency(currencyOp{action: ActionAddCrystals, currency: player.Crystals})
}

// SpendCrystals handles POST /api/player/spend-crystals.
func (h *PlayerHandler) SpendCrystals() gin.HandlerFunc {
	return h.currency(currencyOp{action: ActionSpendCrystals, currency: player.Crystals, spend: true})
}

type buySkinRequest struct {
	SkinID string `json:"skin_id" binding:"required,max=50"`
	Price  int64  `json:"price" binding:"min=0,max=1000000000"`
}

// BuySkin handles POST /api/player/buy-skin.
func (h *PlayerHandler) BuySkin(c *gin.Context) {
	start := time.Now()
	var req buySkinRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.players.BuySkin(c.Request.Context(), mw.GetPlayerID(c), req.SkinID, req.Price)
	if err != nil {
		record(h.audit, c, ActionBuySkin, start, req, nil, err)
		respondError(c, h.logger, err)
		return
	}
	resp := gin.H{"success": true, "skin_id": p.CurrentSkin, "crystals": p.Crystals}
	record(h.audit, c, ActionBuySkin, start, req, resp, nil)
	c.JSON(http.StatusOK, resp)
}

type equipSkinRequest struct {
	SkinID string `json:"skin_id" binding:"required,max=50"`
}

// EquipSkin handles POST /api/player/equip-skin.
func (h *PlayerHandler) EquipSkin(c *gin.Context) {
	var req equipSkinRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.players.EquipSkin(c.Request.Context(), mw.GetPlayerID(c), req.SkinID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "skin_id": p.CurrentSkin})
}
