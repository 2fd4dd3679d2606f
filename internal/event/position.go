package event

import (
	"github.com/ethereum/go-ethereum/common"
)

// PositionOpened is emitted for market opens and limit-order executions.
type PositionOpened struct {
	PositionID int64
	Trader     common.Address
	Pair       int64
	Long       bool
	Margin     int64 // Fixed-point: amount scale (decimal_precision=6, scale=1_000_000)
	Leverage   int64 // Fixed-point: leverage scale (decimal_precision=6, scale=1_000_000)
	OpenPrice  int64 // Fixed-point: price scale (decimal_precision=8, scale=100_000_000)
	TakeProfit int64
	StopLoss   int64
	Asset      common.Address
	FromLimit  bool
}

func (e *PositionOpened) EventType() EventType { return EventTypePositionOpened }
func (e *PositionOpened) PairID() int64        { return e.Pair }

// PositionClosed covers full and partial closes, market or TP/SL.
type PositionClosed struct {
	PositionID   int64
	Trader       common.Address
	Pair         int64
	ClosePrice   int64
	ClosePercent int64 // Fixed-point: rate scale (1e10 = 100%)
	Payout       int64
	Full         bool
}

func (e *PositionClosed) EventType() EventType { return EventTypePositionClosed }
func (e *PositionClosed) PairID() int64        { return e.Pair }

// PositionIncreased is emitted when margin is added at a new blended price.
type PositionIncreased struct {
	PositionID  int64
	Trader      common.Address
	Pair        int64
	AddedMargin int64
	NewMargin   int64
	NewPrice    int64
}

func (e *PositionIncreased) EventType() EventType { return EventTypePositionIncreased }
func (e *PositionIncreased) PairID() int64        { return e.Pair }

// PositionLiquidated is emitted when margin loss crosses the pair threshold.
type PositionLiquidated struct {
	PositionID int64
	Trader     common.Address
	Liquidator common.Address
	Pair       int64
	MarkPrice  int64
	Margin     int64
}

func (e *PositionLiquidated) EventType() EventType { return EventTypePositionLiquidated }
func (e *PositionLiquidated) PairID() int64        { return e.Pair }
