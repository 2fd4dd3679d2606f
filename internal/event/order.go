package event

import (
	"github.com/ethereum/go-ethereum/common"
)

// LimitOrderPlaced is emitted when a limit or stop entry order is accepted.
type LimitOrderPlaced struct {
	OrderID  int64
	Trader   common.Address
	Pair     int64
	Long     bool
	Margin   int64
	Leverage int64
	Trigger  int64 // Fixed-point: price scale
	Stop     bool  // stop-entry rather than limit-entry
}

func (e *LimitOrderPlaced) EventType() EventType { return EventTypeLimitOrderPlaced }
func (e *LimitOrderPlaced) PairID() int64        { return e.Pair }

// LimitOrderExecuted is emitted when a keeper fills a pending order. The
// resulting position reuses the order id.
type LimitOrderExecuted struct {
	OrderID   int64
	Trader    common.Address
	Executor  common.Address
	Pair      int64
	FillPrice int64
	BotFee    int64
}

func (e *LimitOrderExecuted) EventType() EventType { return EventTypeLimitOrderExecuted }
func (e *LimitOrderExecuted) PairID() int64        { return e.Pair }

// LimitOrderCancelled is emitted when the owner withdraws a pending order.
type LimitOrderCancelled struct {
	OrderID        int64
	Trader         common.Address
	Pair           int64
	RefundedMargin int64
}

func (e *LimitOrderCancelled) EventType() EventType { return EventTypeLimitOrderCancelled }
func (e *LimitOrderCancelled) PairID() int64        { return e.Pair }
