package rest_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/vkrpg/api/rest"
	"github.com/kasuganosora/vkrpg/model"
)

func sell(t *testing.T, e *env, vkID int64, body map[string]interface{}) int64 {
	t.Helper()
	w := postJSON(e.r, "/api/market/sell", body, as(vkID)...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return int64(decode(t, w)["listing_id"].(float64))
}

func goldOf(t *testing.T, e *env, vkID int64) int64 {
	t.Helper()
	w := get(e.r, "/api/player", as(vkID)...)
	require.Equal(t, http.StatusOK, w.Code)
	return int64(decode(t, w)["stats"].(map[string]interface{})["gold"].(float64))
}

func TestMarketSellAndBuy(t *testing.T) {
	e := newEnv(t)
	id := sell(t, e, 1, map[string]interface{}{"item_name": "Wood", "price": 5, "quantity": 10})
	assert.EqualValues(t, 10, inventoryItems(t, e, 1)["Wood"]["quantity"])

	w := get(e.r, "/api/market")
	require.Equal(t, http.StatusOK, w.Code)
	listings := decode(t, w)["listings"].([]interface{})
	require.Len(t, listings, 1)
	l := listings[0].(map[string]interface{})
	assert.Equal(t, "Wood", l["item_name"])
	assert.Equal(t, "Player 1", l["seller_name"])
	assert.Equal(t, "🪵", l["item_icon"])

	w = postJSON(e.r, fmt.Sprintf("/api/market/buy/%d", id), nil, as(2)...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 50, decode(t, w)["gold"])

	assert.EqualValues(t, 147, goldOf(t, e, 1))
	assert.EqualValues(t, 30, inventoryItems(t, e, 2)["Wood"]["quantity"])

	w = get(e.r, "/api/market")
	assert.Empty(t, decode(t, w)["listings"])
}

func TestMarketBuyTwice(t *testing.T) {
	e := newEnv(t)
	id := sell(t, e, 1, map[string]interface{}{"item_name": "Food", "price": 1})
	path := fmt.Sprintf("/api/market/buy/%d", id)

	require.Equal(t, http.StatusOK, postJSON(e.r, path, nil, as(2)...).Code)
	w := postJSON(e.r, path, nil, as(3)...)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "listing_unavailable", decode(t, w)["code"])
	assert.EqualValues(t, 100, goldOf(t, e, 3))
}

func TestMarketBuyInsufficientGold(t *testing.T) {
	e := newEnv(t)
	id := sell(t, e, 1, map[string]interface{}{"item_name": "Wood", "price": 20, "quantity": 10})

	w := postJSON(e.r, fmt.Sprintf("/api/market/buy/%d", id), nil, as(2)...)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "insufficient_funds", decode(t, w)["code"])
	assert.EqualValues(t, 100, goldOf(t, e, 2))

	w = get(e.r, "/api/market")
	assert.Len(t, decode(t, w)["listings"], 1)
}

func TestMarketBuyBusy(t *testing.T) {
	e := newEnv(t)
	id := sell(t, e, 1, map[string]interface{}{"item_name": "Wood", "price": 1})

	ok, err := e.cache.SetNX(context.Background(), fmt.Sprintf("lock:market:listing:%d", id), "other", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	w := postJSON(e.r, fmt.Sprintf("/api/market/buy/%d", id), nil, as(2)...)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "listing_busy", decode(t, w)["code"])
}

func TestMarketSellValidation(t *testing.T) {
	e := newEnv(t)
	for _, body := range []map[string]interface{}{
		{"price": 5},
		{"item_name": "Wood"},
		{"item_name": "Wood", "price": 0},
		{"item_name": "Wood", "price": 5, "quantity": -1},
	} {
		w := postJSON(e.r, "/api/market/sell", body, as(1)...)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %v", body)
	}
}

func TestMarketSellInsufficientStock(t *testing.T) {
	e := newEnv(t)
	w := postJSON(e.r, "/api/market/sell", map[string]interface{}{"item_name": "Wood", "price": 1, "quantity": 21}, as(1)...)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "insufficient_stock", decode(t, w)["code"])

	w = postJSON(e.r, "/api/market/sell", map[string]interface{}{"item_name": "Gem", "price": 1}, as(1)...)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarketMine(t *testing.T) {
	e := newEnv(t)
	sell(t, e, 1, map[string]interface{}{"item_name": "Wood", "price": 2})
	sell(t, e, 2, map[string]interface{}{"item_name": "Food", "price": 2})

	w := get(e.r, "/api/market/my", as(1)...)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode(t, w)["listings"].([]interface{})
	require.Len(t, mine, 1)
	assert.Equal(t, "Wood", mine[0].(map[string]interface{})["item_name"])
}

func TestMarketListPaging(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 3; i++ {
		sell(t, e, 1, map[string]interface{}{"item_name": "Wood", "price": i + 1})
	}
	w := get(e.r, "/api/market?skip=1&limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["listings"], 1)

	assert.Equal(t, http.StatusBadRequest, get(e.r, "/api/market?limit=-1").Code)
	assert.Equal(t, http.StatusBadRequest, get(e.r, "/api/market?skip=x").Code)
}

func TestMarketBuyIsAudited(t *testing.T) {
	e := newEnv(t)
	id := sell(t, e, 1, map[string]interface{}{"item_name": "Wood", "price": 1})
	require.Equal(t, http.StatusOK, postJSON(e.r, fmt.Sprintf("/api/market/buy/%d", id), nil, as(2)...).Code)
	require.Equal(t, http.StatusBadRequest, postJSON(e.r, fmt.Sprintf("/api/market/buy/%d", id), nil, as(3)...).Code)

	e.audit.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, e.db.Where("action = ?", rest.ActionMarketBuy).Order("id").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Empty(t, logs[0].Error)
	assert.Contains(t, string(logs[0].Response), `"commission"`)
	assert.NotEmpty(t, logs[1].Error)

	var sells int64
	require.NoError(t, e.db.Model(&model.AuditLog{}).Where("action = ?", rest.ActionMarketSell).Count(&sells).Error)
	assert.EqualValues(t, 1, sells)
}
