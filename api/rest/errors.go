package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/vkrpg/game/item"
	"github.com/kasuganosora/vkrpg/game/market"
	"github.com/kasuganosora/vkrpg/game/player"
	mw "github.com/kasuganosora/vkrpg/middleware"
)

// Error codes returned next to the human readable message.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeInsufficientFunds  = "insufficient_funds"
	CodeInsufficientStock  = "insufficient_stock"
	CodeNotFound           = "not_found"
	CodeSkinNotOwned       = "skin_not_owned"
	CodeListingUnavailable = "listing_unavailable"
	CodeListingBusy        = "listing_busy"
	CodeInternal           = "internal"
)

type apiError struct {
	status  int
	code    string
	message string
}

var errorTable = []struct {
	target error
	apiError
}{
	{player.ErrInsufficientFunds, apiError{http.StatusBadRequest, CodeInsufficientFunds, "insufficient funds"}},
	{market.ErrInsufficientStock, apiError{http.StatusBadRequest, CodeInsufficientStock, "not enough items"}},
	{market.ErrInvalidListing, apiError{http.StatusBadRequest, CodeInvalidRequest, "price and quantity must be positive"}},
	{item.ErrInvalidQuantity, apiError{http.StatusBadRequest, CodeInvalidRequest, "quantity must be positive"}},
	{player.ErrInvalidAmount, apiError{http.StatusBadRequest, CodeInvalidRequest, "amount must not be negative"}},
	{player.ErrPlayerNotFound, apiError{http.StatusNotFound, CodeNotFound, "player not found"}},
	{item.ErrItemNotFound, apiError{http.StatusNotFound, CodeNotFound, "item not found"}},
	{player.ErrSkinNotOwned, apiError{http.StatusBadRequest, CodeSkinNotOwned, "skin not owned"}},
	{market.ErrListingNotFound, apiError{http.StatusBadRequest, CodeListingUnavailable, "listing is not available"}},
	{market.ErrListingBusy, apiError{http.StatusConflict, CodeListingBusy, "listing is being purchased, retry"}},
}

func classify(err error) apiError {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e.apiError
		}
	}
	return apiError{http.StatusInternalServerError, CodeInternal, "internal error"}
}

// respondError maps a service error onto a status and JSON body. Unknown
// errors are logged and hidden behind a 500.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	e := classify(err)
	if e.status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("trace_id", mw.GetTraceID(c)),
			zap.Int64("player_id", mw.GetPlayerID(c)),
			zap.Error(err),
		)
		_ = c.Error(err)
	}
	c.JSON(e.status, gin.H{"error": e.message, "code": e.code})
}
