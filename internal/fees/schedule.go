package fees

import (
	"errors"

	"MarginSettle/internal/fixedpoint"
)

var ErrBadSchedule = errors.New("fee schedule outside protocol bounds")

// Schedule is one set of fixed-point fee rate components (rate scale).
// The trader is charged protocol + burn on notional; referral, bot, and the
// referred-trader discount are carved out of the protocol share.
type Schedule struct {
	Protocol int64
	Burn     int64
	Referral int64
	Bot      int64
	Discount int64 // rebate for referred traders
}

// MaxTotalFee bounds total extraction per event at 5% of notional.
const MaxTotalFee = 5 * fixedpoint.OnePercent

// Validate rejects schedules where the protocol share cannot cover its
// carve-outs, or where total extraction exceeds the protocol-wide bound.
func (s Schedule) Validate() error {
	if s.Protocol < 0 || s.Burn < 0 || s.Referral < 0 || s.Bot < 0 || s.Discount < 0 {
		return ErrBadSchedule
	}
	if s.Protocol < s.Referral+s.Bot+s.Discount {
		return ErrBadSchedule
	}
	if s.Protocol+s.Burn > MaxTotalFee {
		return ErrBadSchedule
	}
	return nil
}
