package player

import "errors"

var (
	ErrPlayerNotFound    = errors.New("player: not found")
	ErrInsufficientFunds = errors.New("player: insufficient funds")
	ErrSkinNotOwned      = errors.New("player: skin not owned")
	ErrInvalidAmount     = errors.New("player: amount must not be negative")
	ErrUnknownCurrency   = errors.New("player: unknown currency")
)
