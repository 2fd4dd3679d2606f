package event

import (
	"github.com/ethereum/go-ethereum/common"
)

// MarginAdjusted is emitted by add-margin and remove-margin. Leverage is
// recomputed so notional is preserved.
type MarginAdjusted struct {
	PositionID  int64
	Trader      common.Address
	Pair        int64
	Added       bool
	Delta       int64
	NewMargin   int64
	NewLeverage int64
}

func (e *MarginAdjusted) EventType() EventType { return EventTypeMarginAdjusted }
func (e *MarginAdjusted) PairID() int64        { return e.Pair }

// TpSlUpdated is emitted when an open position's exit triggers change.
type TpSlUpdated struct {
	PositionID int64
	Trader     common.Address
	Pair       int64
	TakeProfit int64
	StopLoss   int64
}

func (e *TpSlUpdated) EventType() EventType { return EventTypeTpSlUpdated }
func (e *TpSlUpdated) PairID() int64        { return e.Pair }

// FundingAccrued is emitted when lazy funding interest is folded into a
// position during settlement.
type FundingAccrued struct {
	PositionID int64
	Pair       int64
	Delta      int64 // signed accrued interest since last accrual
	Elapsed    int64 // seconds covered by this accrual
}

func (e *FundingAccrued) EventType() EventType { return EventTypeFundingAccrued }
func (e *FundingAccrued) PairID() int64        { return e.Pair }
