package position

import (
	"github.com/ethereum/go-ethereum/common"
)

// OrderKind tags pending orders. Zero is reserved so an unset kind is
// always rejected.
type OrderKind int32

const (
	KindNone OrderKind = iota
	KindLimit
	KindStop
)

func (k OrderKind) String() string {
	switch k {
	case KindLimit:
		return "Limit"
	case KindStop:
		return "Stop"
	default:
		return "None"
	}
}

// Position is one executed leveraged trade. Amounts carry amount scale,
// prices price scale, leverage leverage scale; AccInterest is signed and may
// go negative as funding accrues against the position.
type Position struct {
	ID          int64
	Owner       common.Address
	PairID      int64
	Long        bool
	Margin      int64
	Leverage    int64
	OpenPrice   int64
	TakeProfit  int64 // 0 = unset
	StopLoss    int64 // 0 = unset
	AccInterest int64
	Asset       common.Address // settlement asset backing the margin
	RefCode     common.Hash    // bound at creation, immutable

	CreatedAt int64
	UpdatedAt int64 // last modifying action, drives delay windows
	AccruedAt int64 // last lazy funding accrual
}

// Notional returns margin·leverage in amount scale.
func (p *Position) Notional() int64 {
	return notional(p.Margin, p.Leverage)
}

// LimitOrder is a pending instruction to open a position once price crosses
// the trigger. Execution consumes the order and creates a Position under the
// same id; the two never coexist.
type LimitOrder struct {
	ID         int64
	Owner      common.Address
	PairID     int64
	Long       bool
	Margin     int64
	Leverage   int64
	Kind       OrderKind
	Trigger    int64
	TakeProfit int64
	StopLoss   int64
	Asset      common.Address
	RefCode    common.Hash

	CreatedAt int64
	UpdatedAt int64
}

func (o *LimitOrder) Notional() int64 {
	return notional(o.Margin, o.Leverage)
}
