// Package player owns the Player aggregate: creation with the starter bundle,
// currencies, skins and premium status.
package player

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kasuganosora/vkrpg/config"
	"github.com/kasuganosora/vkrpg/metrics"
	"github.com/kasuganosora/vkrpg/model"
)

// Currency names a Player balance column.
type Currency string

const (
	Gold     Currency = "gold"
	Crystals Currency = "crystals"
)

func (c Currency) valid() bool { return c == Gold || c == Crystals }

// Service handles player profile operations.
type Service struct {
	db     *gorm.DB
	ids    *idCache
	logger *zap.Logger
}

// NewService creates a new player Service.
func NewService(db *gorm.DB, cfg config.GameConfig, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		ids:    newIDCache(cfg.PlayerCacheSize, cfg.PlayerCacheTTL),
		logger: logger,
	}
}

// ResolveOrCreate returns the player keyed by vkID, creating it together
// with its starter bundle on first sight.
func (svc *Service) ResolveOrCreate(ctx context.Context, vkID int64) (*model.Player, error) {
	p, err := svc.getByVKID(ctx, vkID)
	if err == nil {
		svc.ids.put(vkID, p.ID)
		return p, nil
	}
	if !errors.Is(err, ErrPlayerNotFound) {
		return nil, err
	}

	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p = newPlayer(vkID)
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if err := tx.Create(starterEquipment(p.ID)).Error; err != nil {
			return err
		}
		items := starterItems(p.ID)
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		return tx.Create(&model.OwnedSkin{PlayerID: p.ID, SkinID: DefaultSkin}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost the creation race; the winner's bundle is complete.
		if p, err = svc.getByVKID(ctx, vkID); err != nil {
			return nil, err
		}
		svc.ids.put(vkID, p.ID)
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create player %d: %w", vkID, err)
	}

	metrics.PlayersCreated.Inc()
	svc.logger.Info("player created", zap.Int64("vk_id", vkID), zap.Int64("player_id", p.ID))
	svc.ids.put(vkID, p.ID)
	return svc.Get(ctx, p.ID)
}

// ResolveID is ResolveOrCreate for callers that only need the id. Cached.
func (svc *Service) ResolveID(ctx context.Context, vkID int64) (int64, error) {
	if id, ok := svc.ids.get(vkID); ok {
		return id, nil
	}
	p, err := svc.ResolveOrCreate(ctx, vkID)
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

// Get loads a player with equipment and owned skins.
func (svc *Service) Get(ctx context.Context, playerID int64) (*model.Player, error) {
	var p model.Player
	err := svc.db.WithContext(ctx).
		Preload("Equipment").
		Preload("OwnedSkins", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&p, playerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrPlayerNotFound, playerID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (svc *Service) getByVKID(ctx context.Context, vkID int64) (*model.Player, error) {
	var p model.Player
	err := svc.db.WithContext(ctx).
		Preload("Equipment").
		Preload("OwnedSkins", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("vk_id = ?", vkID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: vk id %d", ErrPlayerNotFound, vkID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LockTx loads playerID with a row lock inside tx.
func LockTx(tx *gorm.DB, playerID int64) (*model.Player, error) {
	var p model.Player
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, playerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrPlayerNotFound, playerID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func balance(p *model.Player, c Currency) int64 {
	if c == Crystals {
		return p.Crystals
	}
	return p.Gold
}

func setBalance(tx *gorm.DB, p *model.Player, c Currency, v int64) error {
	if err := tx.Model(p).Update(string(c), v).Error; err != nil {
		return err
	}
	if c == Crystals {
		p.Crystals = v
	} else {
		p.Gold = v
	}
	return nil
}

func (svc *Service) adjust(ctx context.Context, playerID int64, c Currency, delta int64) (*model.Player, error) {
	var out *model.Player
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := LockTx(tx, playerID)
		if err != nil {
			return err
		}
		next := max(balance(p, c)+delta, 0)
		if err := setBalance(tx, p, c, next); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// AdjustGold applies delta to gold; the result never drops below zero.
func (svc *Service) AdjustGold(ctx context.Context, playerID, delta int64) (*model.Player, error) {
	return svc.adjust(ctx, playerID, Gold, delta)
}

// AdjustCrystals applies delta to crystals; the result never drops below zero.
func (svc *Service) AdjustCrystals(ctx context.Context, playerID, delta int64) (*model.Player, error) {
	return svc.adjust(ctx, playerID, Crystals, delta)
}

// Spend deducts amount of currency, failing with ErrInsufficientFunds and no
// change when the balance is short.
func (svc *Service) Spend(ctx context.Context, playerID, amount int64, c Currency) (*model.Player, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	if !c.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCurrency, c)
	}
	var out *model.Player
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := LockTx(tx, playerID)
		if err != nil {
			return err
		}
		cur := balance(p, c)
		if cur < amount {
			return fmt.Errorf("%w: have %d %s, need %d", ErrInsufficientFunds, cur, c, amount)
		}
		if err := setBalance(tx, p, c, cur-amount); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// BuySkin charges price crystals, records ownership and wears the skin. A
// skin the player already owns is worn without charge.
func (svc *Service) BuySkin(ctx context.Context, playerID int64, skinID string, price int64) (*model.Player, error) {
	if price < 0 {
		return nil, ErrInvalidAmount
	}
	var out *model.Player
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := LockTx(tx, playerID)
		if err != nil {
			return err
		}
		owned, err := ownsSkin(tx, playerID, skinID)
		if err != nil {
			return err
		}
		if !owned {
			if p.Crystals < price {
				return fmt.Errorf("%w: have %d crystals, need %d", ErrInsufficientFunds, p.Crystals, price)
			}
			if err := setBalance(tx, p, Crystals, p.Crystals-price); err != nil {
				return err
			}
			if err := tx.Create(&model.OwnedSkin{PlayerID: playerID, SkinID: skinID}).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(p).Update("current_skin", skinID).Error; err != nil {
			return err
		}
		p.CurrentSkin = skinID
		out = p
		return nil
	})
	return out, err
}

// EquipSkin wears an owned skin.
func (svc *Service) EquipSkin(ctx context.Context, playerID int64, skinID string) (*model.Player, error) {
	var out *model.Player
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := LockTx(tx, playerID)
		if err != nil {
			return err
		}
		owned, err := ownsSkin(tx, playerID, skinID)
		if err != nil {
			return err
		}
		if !owned {
			return fmt.Errorf("%w: %q", ErrSkinNotOwned, skinID)
		}
		if err := tx.Model(p).Update("current_skin", skinID).Error; err != nil {
			return err
		}
		p.CurrentSkin = skinID
		out = p
		return nil
	})
	return out, err
}

func ownsSkin(tx *gorm.DB, playerID int64, skinID string) (bool, error) {
	var n int64
	err := tx.Model(&model.OwnedSkin{}).
		Where("player_id = ? AND skin_id = ?", playerID, skinID).
		Count(&n).Error
	return n > 0, err
}

// GrantPremium extends premium by d, starting from the current expiry if it
// is still in the future.
func (svc *Service) GrantPremium(ctx context.Context, playerID int64, d time.Duration) (*model.Player, error) {
	if d <= 0 {
		return nil, ErrInvalidAmount
	}
	var out *model.Player
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := LockTx(tx, playerID)
		if err != nil {
			return err
		}
		from := time.Now()
		if p.IsPremium && p.PremiumUntil != nil && p.PremiumUntil.After(from) {
			from = *p.PremiumUntil
		}
		until := from.Add(d)
		if err := tx.Model(p).Updates(map[string]any{
			"is_premium":    true,
			"premium_until": until,
		}).Error; err != nil {
			return err
		}
		p.IsPremium = true
		p.PremiumUntil = &until
		out = p
		return nil
	})
	return out, err
}

// ExpirePremium clears premium for every player whose expiry is at or
// before now. Returns the number of players changed.
func (svc *Service) ExpirePremium(ctx context.Context, now time.Time) (int64, error) {
	res := svc.db.WithContext(ctx).Model(&model.Player{}).
		Where("is_premium = ? AND premium_until IS NOT NULL AND premium_until <= ?", true, now).
		Updates(map[string]any{"is_premium": false, "premium_until": nil})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		metrics.PremiumExpired.Add(float64(res.RowsAffected))
		svc.logger.Info("premium expired", zap.Int64("players", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
