package engine

import "errors"

var (
	// State errors
	ErrPaused      = errors.New("trading is paused")
	ErrNotOwner    = errors.New("caller is not the position owner")
	ErrNotProxy    = errors.New("caller holds no live proxy grant")
	ErrIsLimit     = errors.New("id refers to a pending limit order")
	ErrNotLimit    = errors.New("id does not refer to a pending limit order")
	ErrLimitNotMet = errors.New("attested price has not reached the trigger")
	ErrLimitNotSet = errors.New("requested exit bound is not set")

	// Validation errors
	ErrNoPrice     = errors.New("trigger price is zero")
	ErrBadStopLoss = errors.New("exit bound on the wrong side of price")
	ErrNotVault    = errors.New("vault is not in the allowed set")
	ErrBadDeposit  = errors.New("vault deposit credit mismatch")
	ErrBadWithdraw = errors.New("vault withdrawal debit mismatch")

	// Risk errors
	ErrWaitDelay            = errors.New("minimum action delay not elapsed")
	ErrNotLiquidatable      = errors.New("margin loss below liquidation threshold")
	ErrLiquidatable         = errors.New("change would leave position liquidatable")
	ErrCloseToMaxPnL        = errors.New("unrealized profit too close to max-win cap")
	ErrResourcePriceTooHigh = errors.New("execution price exceeds configured ceiling")
)
