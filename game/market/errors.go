package market

import "errors"

var (
	// ErrListingNotFound covers both missing and already sold listings.
	ErrListingNotFound   = errors.New("market: listing not available")
	ErrListingBusy       = errors.New("market: listing is being purchased")
	ErrInsufficientStock = errors.New("market: insufficient stock")
	ErrInvalidListing    = errors.New("market: price and quantity must be positive")
)
