package event

import (
	"github.com/ethereum/go-ethereum/common"
)

// FeesDistributed records the fee split applied to a trade.
type FeesDistributed struct {
	PositionID int64
	Trader     common.Address
	Pair       int64
	Protocol   int64
	Burn       int64
	Referral   int64
	Bot        int64
	Referrer   common.Address
	OnOpen     bool
}

func (e *FeesDistributed) EventType() EventType { return EventTypeFeesDistributed }
func (e *FeesDistributed) PairID() int64        { return e.Pair }

// PairParamUpdate records an admin change to a pair's trading parameters.
type PairParamUpdate struct {
	Pair  int64
	Field string
	Value int64
}

func (e *PairParamUpdate) EventType() EventType { return EventTypePairParamUpdate }
func (e *PairParamUpdate) PairID() int64        { return e.Pair }
