package fees

import (
	"MarginSettle/internal/fixedpoint"

	"github.com/ethereum/go-ethereum/common"
)

// Breakdown is the result of a fee computation on one settlement event.
// Total = Protocol + Burn + Referral + Bot; the trader is charged Total and
// Referral/Bot/Discount come out of the protocol share.
type Breakdown struct {
	Protocol int64
	Burn     int64
	Referral int64
	Bot      int64
	Total    int64

	Referrer common.Address
}

// Engine owns the open/close schedules and referral accounting.
type Engine struct {
	open      Schedule
	close     Schedule
	referrals *Referrals
}

func NewEngine() *Engine {
	return &Engine{
		referrals: NewReferrals(),
	}
}

// SetSchedule installs a validated schedule for opens or closes.
func (e *Engine) SetSchedule(isOpen bool, s Schedule) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if isOpen {
		e.open = s
	} else {
		e.close = s
	}
	return nil
}

// Schedule returns the active schedule for opens or closes.
func (e *Engine) Schedule(isOpen bool) Schedule {
	if isOpen {
		return e.open
	}
	return e.close
}

func (e *Engine) Referrals() *Referrals {
	return e.referrals
}

// Quote previews the fee split without binding the trader's referral. The
// amounts match what Compute would charge for the same inputs, so callers
// can validate before moving collateral.
func (e *Engine) Quote(notional int64, trader common.Address, code common.Hash, isOpen, withBot bool) Breakdown {
	s := e.Schedule(isOpen)

	b := Breakdown{
		Protocol: fixedpoint.MulDivRate(notional, s.Protocol),
		Burn:     fixedpoint.MulDivRate(notional, s.Burn),
	}

	referrer := e.referrals.Referrer(trader)
	if referrer == (common.Address{}) {
		if owner := e.referrals.CodeOwner(code); owner != trader {
			referrer = owner
		}
	}
	var discount int64
	if referrer != (common.Address{}) {
		b.Referral = fixedpoint.MulDivRate(notional, s.Referral)
		b.Referrer = referrer
		discount = fixedpoint.MulDivRate(notional, s.Discount)
	}

	if withBot {
		b.Bot = fixedpoint.MulDivRate(notional, s.Bot)
	}

	b.Protocol -= b.Referral + b.Bot + discount
	if b.Protocol < 0 {
		b.Protocol = 0
	}

	b.Total = b.Protocol + b.Burn + b.Referral + b.Bot
	return b
}

// Compute splits the fees charged on a notional amount. The referral code is
// resolved and locked on first use (see Referrals.Bind); a referred trader
// pays the discounted total while the referrer is credited the referral
// share. withBot=false suppresses the executor incentive (self-triggered,
// same-instant actions earn no bot fee).
func (e *Engine) Compute(notional int64, trader common.Address, code common.Hash, isOpen, withBot bool) Breakdown {
	s := e.Schedule(isOpen)

	b := Breakdown{
		Protocol: fixedpoint.MulDivRate(notional, s.Protocol),
		Burn:     fixedpoint.MulDivRate(notional, s.Burn),
	}

	referrer := e.referrals.Bind(trader, code)
	var discount int64
	if referrer != (common.Address{}) {
		b.Referral = fixedpoint.MulDivRate(notional, s.Referral)
		b.Referrer = referrer
		discount = fixedpoint.MulDivRate(notional, s.Discount)
	}

	if withBot {
		b.Bot = fixedpoint.MulDivRate(notional, s.Bot)
	}

	// Referral, bot and discount are carved out of the protocol share.
	b.Protocol -= b.Referral + b.Bot + discount
	if b.Protocol < 0 {
		b.Protocol = 0
	}

	b.Total = b.Protocol + b.Burn + b.Referral + b.Bot
	return b
}
