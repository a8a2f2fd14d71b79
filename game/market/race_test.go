package market_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kasuganosora/vkrpg/cache"
	"github.com/kasuganosora/vkrpg/config"
	"github.com/kasuganosora/vkrpg/game/item"
	"github.com/kasuganosora/vkrpg/game/market"
	"github.com/kasuganosora/vkrpg/model"
)

// noLockCache grants every SetNX, leaving the database as the only guard.
type noLockCache struct{ cache.Cache }

func (noLockCache) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return true, nil
}

func TestConcurrentPurchaseWithoutCacheLock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := market.NewService(e.db, noLockCache{e.cache}, e.ps, config.MarketConfig{
		CommissionRate:  "0.05",
		DefaultPageSize: 50,
		MaxPageSize:     100,
		LockTTL:         5 * time.Second,
	}, zap.NewNop())

	seller := e.newPlayer(t, 1)
	l, err := svc.CreateListing(ctx, seller.ID, market.ListingSpec{ItemName: "Health Potion", Price: 10, Quantity: 2})
	require.NoError(t, err)

	const n = 6
	buyers := make([]*model.Player, n)
	for i := range buyers {
		buyers[i] = e.newPlayer(t, int64(200+i))
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range buyers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Purchase(ctx, buyers[i].ID, l.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	var winner int64
	var totalGold int64
	for i, err := range errs {
		if err == nil {
			wins++
			winner = buyers[i].ID
		} else {
			assert.ErrorIs(t, err, market.ErrListingNotFound)
		}
		totalGold += e.gold(t, buyers[i].ID)
	}
	require.Equal(t, 1, wins)
	assert.Equal(t, int64(n*100-20), totalGold, "exactly one buyer debited once")
	assert.Equal(t, int64(119), e.gold(t, seller.ID))
	assert.Equal(t, 7, e.quantity(t, winner, "Health Potion"))

	var sold model.MarketListing
	require.NoError(t, e.db.First(&sold, l.ID).Error)
	assert.False(t, sold.IsActive)
	require.NotNil(t, sold.BuyerID)
	assert.Equal(t, winner, *sold.BuyerID)
}

func TestPurchaseRetriesInventoryInsertRace(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seller := e.newPlayer(t, 1)
	buyer := e.newPlayer(t, 2)

	_, err := e.inv.AddOrMerge(ctx, seller.ID, item.ItemSpec{Name: "Iron Ore", Icon: "⛏️", Quantity: 3})
	require.NoError(t, err)
	l, err := e.market.CreateListing(ctx, seller.ID, market.ListingSpec{ItemName: "Iron Ore", Price: 5, Quantity: 3})
	require.NoError(t, err)

	// The buyer's first insert of the item collides once, as if another
	// request had just created the row.
	var armed atomic.Bool
	armed.Store(true)
	require.NoError(t, e.db.Callback().Create().Before("gorm:create").
		Register("test:inventory_collision", func(db *gorm.DB) {
			if db.Statement.Schema == nil || db.Statement.Schema.Table != "inventory_items" {
				return
			}
			if armed.CompareAndSwap(true, false) {
				_ = db.AddError(gorm.ErrDuplicatedKey)
			}
		}))

	r, err := e.market.Purchase(ctx, buyer.ID, l.ID)
	require.NoError(t, err)
	assert.False(t, armed.Load(), "collision was injected")
	assert.Equal(t, int64(85), r.BuyerGold)
	assert.Equal(t, int64(85), e.gold(t, buyer.ID), "debited once across the retry")
	assert.Equal(t, int64(114), e.gold(t, seller.ID))
	assert.Equal(t, 3, e.quantity(t, buyer.ID, "Iron Ore"))
}
