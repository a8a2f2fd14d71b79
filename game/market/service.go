// Package market implements the player-to-player marketplace. A listing is
// created Active and becomes Inactive exactly once, when it is bought.
package market

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kasuganosora/vkrpg/cache"
	"github.com/kasuganosora/vkrpg/config"
	"github.com/kasuganosora/vkrpg/game/item"
	"github.com/kasuganosora/vkrpg/game/player"
	"github.com/kasuganosora/vkrpg/metrics"
	"github.com/kasuganosora/vkrpg/model"
)

// ListingSpec describes what a seller puts up for sale. Blank icon and
// rarity are taken from the seller's inventory row.
type ListingSpec struct {
	ItemName   string
	ItemIcon   string
	ItemRarity string
	Price      int64
	Quantity   int
}

// ListingView is a listing with its seller's display name.
type ListingView struct {
	model.MarketListing
	SellerName string `json:"seller_name"`
}

// Receipt describes a completed purchase.
type Receipt struct {
	Listing      model.MarketListing
	Total        int64
	SellerCredit int64
	Commission   int64
	BuyerGold    int64
}

// Service handles market operations.
type Service struct {
	db       *gorm.DB
	cache    cache.Cache
	events   cache.PubSub
	rate     decimal.Decimal
	pageSize int
	maxPage  int
	lockTTL  time.Duration
	logger   *zap.Logger
}

// NewService creates a market Service.
func NewService(db *gorm.DB, c cache.Cache, ps cache.PubSub, cfg config.MarketConfig, logger *zap.Logger) *Service {
	svc := &Service{
		db:       db,
		cache:    c,
		events:   ps,
		rate:     cfg.Commission(),
		pageSize: cfg.DefaultPageSize,
		maxPage:  cfg.MaxPageSize,
		lockTTL:  cfg.LockTTL,
		logger:   logger,
	}
	if svc.pageSize <= 0 {
		svc.pageSize = 50
	}
	if svc.maxPage < svc.pageSize {
		svc.maxPage = svc.pageSize
	}
	if svc.lockTTL <= 0 {
		svc.lockTTL = 10 * time.Second
	}
	return svc
}

// ListActive returns active listings, newest first.
func (svc *Service) ListActive(ctx context.Context, skip, limit int) ([]ListingView, error) {
	if limit <= 0 {
		limit = svc.pageSize
	}
	limit = min(limit, svc.maxPage)
	skip = max(skip, 0)

	var rows []model.MarketListing
	err := svc.db.WithContext(ctx).
		Preload("Seller").
		Where("is_active = ?", true).
		Order("created_at DESC, id DESC").
		Offset(skip).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]ListingView, 0, len(rows))
	for _, l := range rows {
		v := ListingView{MarketListing: l}
		if l.Seller != nil {
			v.SellerName = l.Seller.Name
		}
		out = append(out, v)
	}
	return out, nil
}

// ListBySeller returns every listing the seller created, sold ones included.
func (svc *Service) ListBySeller(ctx context.Context, sellerID int64) ([]model.MarketListing, error) {
	rows := []model.MarketListing{}
	err := svc.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

// CreateListing moves spec.Quantity units from the seller's inventory into a
// new active listing in one transaction.
func (svc *Service) CreateListing(ctx context.Context, sellerID int64, spec ListingSpec) (*model.MarketListing, error) {
	if spec.Quantity <= 0 || spec.Price <= 0 {
		return nil, ErrInvalidListing
	}

	var listing *model.MarketListing
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := item.FindByNameTx(tx, sellerID, spec.ItemName)
		if errors.Is(err, item.ErrItemNotFound) {
			return fmt.Errorf("%w: no %q in inventory", ErrInsufficientStock, spec.ItemName)
		}
		if err != nil {
			return err
		}
		if inv.Quantity < spec.Quantity {
			return fmt.Errorf("%w: have %d %q, listing %d", ErrInsufficientStock, inv.Quantity, spec.ItemName, spec.Quantity)
		}

		listing = &model.MarketListing{
			SellerID:   sellerID,
			ItemName:   inv.Name,
			ItemIcon:   spec.ItemIcon,
			ItemRarity: spec.ItemRarity,
			ItemType:   inv.ItemType,
			Price:      spec.Price,
			Quantity:   spec.Quantity,
			IsActive:   true,
		}
		if listing.ItemIcon == "" {
			listing.ItemIcon = inv.Icon
		}
		if listing.ItemRarity == "" {
			listing.ItemRarity = inv.Rarity
		}

		if _, err := item.RemoveTx(tx, inv, spec.Quantity); err != nil {
			return err
		}
		return tx.Create(listing).Error
	})
	if err != nil {
		return nil, err
	}

	metrics.ListingsCreated.Inc()
	svc.publish(ctx, Event{
		Type:      EventListed,
		ListingID: listing.ID,
		ItemName:  listing.ItemName,
		ItemIcon:  listing.ItemIcon,
		Price:     listing.Price,
		Quantity:  listing.Quantity,
		SellerID:  sellerID,
	})
	return listing, nil
}

// Purchase buys the whole listing for buyerID. At most one purchase of a
// listing succeeds; every later attempt gets ErrListingNotFound.
func (svc *Service) Purchase(ctx context.Context, buyerID, listingID int64) (*Receipt, error) {
	r, err := svc.purchase(ctx, buyerID, listingID)
	metrics.Purchases.WithLabelValues(purchaseResult(err)).Inc()
	if err != nil {
		return nil, err
	}

	metrics.GoldVolume.Add(float64(r.Total))
	metrics.CommissionSunk.Add(float64(r.Commission))
	svc.logger.Info("listing sold",
		zap.Int64("listing_id", listingID),
		zap.Int64("buyer_id", buyerID),
		zap.Int64("seller_id", r.Listing.SellerID),
		zap.Int64("total", r.Total),
		zap.Int64("commission", r.Commission),
	)
	svc.publish(ctx, Event{
		Type:      EventSold,
		ListingID: listingID,
		ItemName:  r.Listing.ItemName,
		ItemIcon:  r.Listing.ItemIcon,
		Price:     r.Listing.Price,
		Quantity:  r.Listing.Quantity,
		SellerID:  r.Listing.SellerID,
		BuyerID:   buyerID,
	})
	return r, nil
}

func (svc *Service) purchase(ctx context.Context, buyerID, listingID int64) (*Receipt, error) {
	var active model.MarketListing
	err := svc.db.WithContext(ctx).Select("id").
		Where("id = ? AND is_active = ?", listingID, true).
		First(&active).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrListingNotFound, listingID)
	}
	if err != nil {
		return nil, err
	}

	key := lockKey(listingID)
	token := uuid.NewString()
	ok, err := svc.cache.SetNX(ctx, key, token, svc.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrListingBusy, listingID)
	}
	defer svc.unlock(ctx, key, token)

	var r *Receipt
	run := func() error {
		return svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			r, err = svc.purchaseTx(tx, buyerID, listingID)
			return err
		})
	}
	err = run()
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent grant created the buyer's first row for this item
		// between our lookup and insert; the retry merges into it.
		svc.logger.Debug("purchase retry after inventory insert race",
			zap.Int64("listing_id", listingID), zap.Int64("buyer_id", buyerID))
		err = run()
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (svc *Service) purchaseTx(tx *gorm.DB, buyerID, listingID int64) (*Receipt, error) {
	var l model.MarketListing
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_active = ?", listingID, true).
		First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrListingNotFound, listingID)
	}
	if err != nil {
		return nil, err
	}

	// Ascending id order, so two purchases between the same pair of players
	// lock in the same order.
	ids := []int64{buyerID, l.SellerID}
	slices.Sort(ids)
	ids = slices.Compact(ids)
	locked := make(map[int64]*model.Player, len(ids))
	for _, id := range ids {
		p, err := player.LockTx(tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = p
	}
	buyer := locked[buyerID]

	total := l.Total()
	if buyer.Gold < total {
		return nil, fmt.Errorf("%w: have %d gold, need %d", player.ErrInsufficientFunds, buyer.Gold, total)
	}
	credit := SellerCredit(total, svc.rate)

	res := tx.Model(&model.Player{}).
		Where("id = ? AND gold >= ?", buyerID, total).
		Update("gold", gorm.Expr("gold - ?", total))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: need %d gold", player.ErrInsufficientFunds, total)
	}
	if err := tx.Model(&model.Player{}).
		Where("id = ?", l.SellerID).
		Update("gold", gorm.Expr("gold + ?", credit)).Error; err != nil {
		return nil, err
	}

	if _, err := item.AddOrMergeTx(tx, buyerID, item.ItemSpec{
		Name:     l.ItemName,
		Icon:     l.ItemIcon,
		Quantity: l.Quantity,
		Type:     l.ItemType,
		Rarity:   l.ItemRarity,
	}); err != nil {
		return nil, err
	}

	now := time.Now()
	res = tx.Model(&model.MarketListing{}).
		Where("id = ? AND is_active = ?", l.ID, true).
		Updates(map[string]any{"is_active": false, "buyer_id": buyerID, "sold_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrListingNotFound, listingID)
	}

	l.IsActive = false
	l.BuyerID = &buyerID
	l.SoldAt = &now

	buyerGold := buyer.Gold - total
	if buyerID == l.SellerID {
		buyerGold += credit
	}
	return &Receipt{
		Listing:      l,
		Total:        total,
		SellerCredit: credit,
		Commission:   total - credit,
		BuyerGold:    buyerGold,
	}, nil
}

func (svc *Service) unlock(ctx context.Context, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if _, err := svc.cache.DelIfValue(ctx, key, token); err != nil {
		svc.logger.Warn("release market lock", zap.String("key", key), zap.Error(err))
	}
}

func (svc *Service) publish(ctx context.Context, ev Event) {
	if svc.events == nil {
		return
	}
	if err := Publish(ctx, svc.events, ev); err != nil {
		svc.logger.Warn("publish market event", zap.String("type", ev.Type), zap.Error(err))
	}
}

func lockKey(listingID int64) string {
	return "lock:market:listing:" + strconv.FormatInt(listingID, 10)
}

func purchaseResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ErrListingNotFound):
		return metrics.ResultUnavailable
	case errors.Is(err, ErrListingBusy):
		return metrics.ResultBusy
	case errors.Is(err, player.ErrInsufficientFunds):
		return metrics.ResultInsufficient
	default:
		return metrics.ResultError
	}
}
