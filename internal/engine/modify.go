package engine

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"MarginSettle/internal/event"
	"MarginSettle/internal/fixedpoint"
	"MarginSettle/internal/oracle"
	"MarginSettle/internal/position"
)

// AddMargin deposits additional collateral into an open position. Notional
// is preserved: leverage is recomputed down and re-checked against pair
// bounds.
func (e *Engine) AddMargin(caller common.Address, id, amount int64, vaultAddr common.Address, att oracle.PriceData, sig []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	now := e.now()

	p, err := e.openPosition(id)
	if err != nil {
		return e.reject("add_margin", err)
	}
	if err := e.authorize(caller, p.Owner, now); err != nil {
		return e.reject("add_margin", err)
	}
	pair, err := e.pairs.PairConfig(p.PairID)
	if err != nil {
		return e.reject("add_margin", err)
	}

	price, _, err := e.verifier.Verify(att, sig, p.PairID, now)
	if err != nil {
		return e.reject("add_margin", err)
	}

	e.settleFunding(p, now)
	if e.closeToMaxPnL(p, price) {
		return e.reject("add_margin", ErrCloseToMaxPnL)
	}

	// Bounds pre-check before collateral moves.
	newLev := fixedpoint.AdjustedLeverage(p.Margin, p.Leverage, p.Margin+amount)
	if newLev < pair.MinLeverage || newLev > pair.MaxLeverage {
		return e.reject("add_margin", position.ErrBadLeverage)
	}

	credited, err := e.depositMargin(vaultAddr, p.Asset, amount, p.Owner)
	if err != nil {
		return e.reject("add_margin", err)
	}
	newMargin := p.Margin + credited
	newLev = fixedpoint.AdjustedLeverage(p.Margin, p.Leverage, newMargin)
	if err := e.ledger.UpdateMargin(id, newMargin, newLev, pair.MinLeverage, pair.MaxLeverage, now); err != nil {
		return e.reject("add_margin", err)
	}

	e.emit(&event.MarginAdjusted{
		PositionID:  id,
		Trader:      p.Owner,
		Pair:        p.PairID,
		Added:       true,
		Delta:       credited,
		NewMargin:   newMargin,
		NewLeverage: newLev,
	})
	e.log.Info().
		Int64("position_id", id).
		Int64("added", credited).
		Int64("new_leverage", newLev).
		Msg("margin added")
	e.observe("add_margin", start)
	return nil
}

// RemoveMargin withdraws collateral from an open position, preserving
// notional. Rejected if the higher leverage leaves pair bounds or the
// position would be immediately liquidatable at the attested price.
func (e *Engine) RemoveMargin(caller common.Address, id, amount int64, vaultAddr common.Address, att oracle.PriceData, sig []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	now := e.now()

	p, err := e.openPosition(id)
	if err != nil {
		return e.reject("remove_margin", err)
	}
	if err := e.authorize(caller, p.Owner, now); err != nil {
		return e.reject("remove_margin", err)
	}
	pair, err := e.pairs.PairConfig(p.PairID)
	if err != nil {
		return e.reject("remove_margin", err)
	}

	price, _, err := e.verifier.Verify(att, sig, p.PairID, now)
	if err != nil {
		return e.reject("remove_margin", err)
	}

	e.settleFunding(p, now)
	if e.closeToMaxPnL(p, price) {
		return e.reject("remove_margin", ErrCloseToMaxPnL)
	}

	newMargin := p.Margin - amount
	if newMargin <= 0 {
		return e.reject("remove_margin", position.ErrBadLeverage)
	}
	newLev := fixedpoint.AdjustedLeverage(p.Margin, p.Leverage, newMargin)
	if newLev < pair.MinLeverage || newLev > pair.MaxLeverage {
		return e.reject("remove_margin", position.ErrBadLeverage)
	}
	loss := fixedpoint.MarginLossFraction(newMargin, newLev, p.OpenPrice, price, p.Long, p.AccInterest)
	if loss >= pair.LiqThreshold {
		return e.reject("remove_margin", ErrLiquidatable)
	}

	if err := e.checkSettlementFunds(vaultAddr, amount, amount); err != nil {
		return e.reject("remove_margin", err)
	}

	if err := e.ledger.UpdateMargin(id, newMargin, newLev, pair.MinLeverage, pair.MaxLeverage, now); err != nil {
		return e.reject("remove_margin", err)
	}
	if err := e.withdrawPayout(vaultAddr, p.Asset, amount, p.Owner); err != nil {
		return e.reject("remove_margin", err)
	}

	e.emit(&event.MarginAdjusted{
		PositionID:  id,
		Trader:      p.Owner,
		Pair:        p.PairID,
		Added:       false,
		Delta:       amount,
		NewMargin:   newMargin,
		NewLeverage: newLev,
	})
	e.log.Info().
		Int64("position_id", id).
		Int64("removed", amount).
		Int64("new_leverage", newLev).
		Msg("margin removed")
	e.observe("remove_margin", start)
	return nil
}

// AddToPosition grows an open position at the current attested price. The
// open price becomes the size-weighted blend of old and new; leverage and
// accrued interest are unchanged. Open fees apply to the added slice.
func (e *Engine) AddToPosition(caller common.Address, id, amount int64, vaultAddr common.Address, att oracle.PriceData, sig []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	now := e.now()

	if e.paused {
		return e.reject("add_to_position", ErrPaused)
	}
	p, err := e.openPosition(id)
	if err != nil {
		return e.reject("add_to_position", err)
	}
	if err := e.authorize(caller, p.Owner, now); err != nil {
		return e.reject("add_to_position", err)
	}
	if _, err := e.pairs.Pair(p.PairID); err != nil {
		return e.reject("add_to_position", err)
	}

	price, spread, err := e.verifier.Verify(att, sig, p.PairID, now)
	if err != nil {
		return e.reject("add_to_position", err)
	}

	e.settleFunding(p, now)
	if e.closeToMaxPnL(p, price) {
		return e.reject("add_to_position", ErrCloseToMaxPnL)
	}

	quote := e.fees.Quote(fixedpoint.Notional(amount, p.Leverage), p.Owner, p.RefCode, true, false)
	if amount-quote.Total <= 0 {
		return e.reject("add_to_position", position.ErrBelowMinPositionSize)
	}

	credited, err := e.depositMargin(vaultAddr, p.Asset, amount, p.Owner)
	if err != nil {
		return e.reject("add_to_position", err)
	}
	bd := e.fees.Compute(fixedpoint.Notional(credited, p.Leverage), p.Owner, p.RefCode, true, false)
	netAdd := credited - bd.Total
	if netAdd <= 0 {
		// Unwind the deposit so the rejection leaves the books unchanged.
		if err := e.withdrawPayout(vaultAddr, p.Asset, credited, p.Owner); err != nil {
			e.bookError("deposit_refund", err)
		}
		return e.reject("add_to_position", position.ErrBelowMinPositionSize)
	}
	e.distributeFees(bd, caller, id, p.PairID, p.Owner, true)

	spreadPrice := fixedpoint.ApplySpread(price, spread, p.Long)
	newPrice := fixedpoint.BlendedOpenPrice(p.Margin, p.Leverage, p.OpenPrice, netAdd, p.Leverage, spreadPrice)
	if err := e.ledger.IncreasePosition(id, netAdd, newPrice, now); err != nil {
		return e.reject("add_to_position", err)
	}
	e.pairs.AddOI(p.PairID, p.Asset, p.Long, fixedpoint.Notional(netAdd, p.Leverage))

	e.emit(&event.PositionIncreased{
		PositionID:  id,
		Trader:      p.Owner,
		Pair:        p.PairID,
		AddedMargin: netAdd,
		NewMargin:   p.Margin,
		NewPrice:    newPrice,
	})
	e.log.Info().
		Int64("position_id", id).
		Int64("added", netAdd).
		Int64("blended_price", newPrice).
		Msg("position increased")
	e.observe("add_to_position", start)
	return nil
}

// UpdateTpSl moves an open position's take-profit or stop-loss. A non-zero
// bound must sit on the correct side of the attested price; zero clears the
// bound without needing an attestation.
func (e *Engine) UpdateTpSl(caller common.Address, id int64, takeProfit bool, value int64, att oracle.PriceData, sig []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	now := e.now()

	p, err := e.openPosition(id)
	if err != nil {
		return e.reject("update_tpsl", err)
	}
	if err := e.authorize(caller, p.Owner, now); err != nil {
		return e.reject("update_tpsl", err)
	}

	if value != 0 {
		price, _, err := e.verifier.Verify(att, sig, p.PairID, now)
		if err != nil {
			return e.reject("update_tpsl", err)
		}
		var tp, sl int64
		if takeProfit {
			tp = value
		} else {
			sl = value
		}
		if err := checkExitBounds(p.Long, price, tp, sl); err != nil {
			return e.reject("update_tpsl", err)
		}
	}

	if err := e.ledger.UpdateTpSl(id, takeProfit, value, now); err != nil {
		return e.reject("update_tpsl", err)
	}

	e.emit(&event.TpSlUpdated{
		PositionID: id,
		Trader:     p.Owner,
		Pair:       p.PairID,
		TakeProfit: p.TakeProfit,
		StopLoss:   p.StopLoss,
	})
	e.observe("update_tpsl", start)
	return nil
}
