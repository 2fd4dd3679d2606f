package engine

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"MarginSettle/internal/event"
	"MarginSettle/internal/fixedpoint"
	"MarginSettle/internal/oracle"
	"MarginSettle/internal/position"
)

// openPosition resolves id to an open position, mapping a pending order to
// ErrIsLimit.
func (e *Engine) openPosition(id int64) (*position.Position, error) {
	if p, ok := e.ledger.Position(id); ok {
		return p, nil
	}
	if _, ok := e.ledger.LimitOrder(id); ok {
		return nil, ErrIsLimit
	}
	return nil, position.ErrNotFound
}

// settleClose realizes PnL on the closed margin slice, nets the close fees
// out of the payout, shrinks or removes the position, and pays the owner.
// Everything that can fail the operation is checked before the first state
// mutation, so a rejected close leaves position, OI, and books untouched.
func (e *Engine) settleClose(p *position.Position, percent, closePrice int64, executor, vaultAddr common.Address, withBot bool, now int64) (int64, error) {
	closedMargin := fixedpoint.MulDivRate(p.Margin, percent)
	closedInterest := fixedpoint.MulDivRate(p.AccInterest, percent)
	closedNotional := fixedpoint.Notional(closedMargin, p.Leverage)

	payout := fixedpoint.Payout(closedMargin, p.Leverage, p.OpenPrice, closePrice, p.Long, closedInterest)
	payout = fixedpoint.CappedPayout(payout, closedMargin, e.maxWinPercent)

	full := percent == fixedpoint.RateConfig.Scale
	if !full {
		remaining := p.Margin - closedMargin
		if remaining < 0 {
			return 0, position.ErrBadClosePercent
		}
		if remaining > 0 && fixedpoint.Notional(remaining, p.Leverage) < e.pairs.MinPositionSize(p.Asset) {
			return 0, position.ErrBelowMinPositionSize
		}
	}

	// Referral binding at open makes Compute idempotent here, so running it
	// before the checks below cannot leak state on rejection.
	bd := e.fees.Compute(closedNotional, p.Owner, p.RefCode, false, withBot)
	if payout >= bd.Total {
		payout -= bd.Total
	} else {
		// A near-total loss cannot fund the full split; the remainder
		// all goes to the protocol.
		bd.Protocol = payout
		bd.Burn, bd.Referral, bd.Bot = 0, 0, 0
		bd.Total = payout
		payout = 0
	}

	// The unpaid share of the closed margin stays with the protocol.
	residual := closedMargin - payout - bd.Total
	outflow := payout + bd.Total
	if residual > 0 {
		outflow += residual
	}
	if err := e.checkSettlementFunds(vaultAddr, payout, outflow); err != nil {
		return 0, err
	}

	if full {
		if _, err := e.ledger.RemovePosition(p.ID); err != nil {
			return 0, err
		}
	} else {
		minSize := e.pairs.MinPositionSize(p.Asset)
		if err := e.ledger.ReduceForPartialClose(p.ID, closedMargin, closedInterest, minSize, now); err != nil {
			return 0, err
		}
	}
	e.pairs.RemoveOI(p.PairID, p.Asset, p.Long, closedNotional)

	e.distributeFees(bd, executor, p.ID, p.PairID, p.Owner, false)
	if residual > 0 {
		if err := e.book.Transfer(e.settleAsset, e.account, e.treasury, residual); err != nil {
			e.bookError("residual", err)
		}
	}

	if err := e.withdrawPayout(vaultAddr, p.Asset, payout, p.Owner); err != nil {
		return 0, err
	}

	e.emit(&event.PositionClosed{
		PositionID:   p.ID,
		Trader:       p.Owner,
		Pair:         p.PairID,
		ClosePrice:   closePrice,
		ClosePercent: percent,
		Payout:       payout,
		Full:         full,
	})
	return payout, nil
}

// ClosePosition closes the given fraction of an open position at the
// attested price. Owner-driven; proxy grants apply.
func (e *Engine) ClosePosition(caller common.Address, id, percent int64, vaultAddr common.Address, att oracle.PriceData, sig []byte) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	now := e.now()

	p, err := e.openPosition(id)
	if err != nil {
		return 0, e.reject("close", err)
	}
	if err := e.authorize(caller, p.Owner, now); err != nil {
		return 0, e.reject("close", err)
	}
	if err := position.CheckClosePercent(percent); err != nil {
		return 0, e.reject("close", err)
	}
	if now-p.UpdatedAt < e.timeDelay {
		return 0, e.reject("close", ErrWaitDelay)
	}

	price, spread, err := e.verifier.Verify(att, sig, p.PairID, now)
	if err != nil {
		if e.metrics != nil {
			e.metrics.AttestationsRejected.WithLabelValues(err.Error()).Inc()
		}
		return 0, e.reject("close", err)
	}
	closePrice := fixedpoint.ApplySpread(price, spread, !p.Long)

	e.settleFunding(p, now)
	payout, err := e.settleClose(p, percent, closePrice, caller, vaultAddr, false, now)
	if err != nil {
		return 0, e.reject("close", err)
	}

	e.log.Info().
		Int64("position_id", id).
		Int64("percent", percent).
		Int64("close_price", closePrice).
		Int64("payout", payout).
		Msg("position closed")
	e.observe("close", start)
	return payout, nil
}

// LimitClose fully closes a position once its TP or SL bound is reached.
// Permissionless: any executor may trigger it and earn the bot fee.
func (e *Engine) LimitClose(caller common.Address, id int64, takeProfit bool, vaultAddr common.Address, att oracle.PriceData, sig []byte, resourcePrice int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	now := e.now()

	if err := e.checkResourcePrice(resourcePrice); err != nil {
		return 0, e.reject("limit_close", err)
	}
	p, err := e.openPosition(id)
	if err != nil {
		return 0, e.reject("limit_close", err)
	}

	var bound int64
	if takeProfit {
		bound = p.TakeProfit
	} else {
		bound = p.StopLoss
	}
	if bound == 0 {
		return 0, e.reject("limit_close", ErrLimitNotSet)
	}
	if now-p.UpdatedAt < e.timeDelay {
		return 0, e.reject("limit_close", ErrWaitDelay)
	}

	price, spread, err := e.verifier.Verify(att, sig, p.PairID, now)
	if err != nil {
		if e.metrics != nil {
			e.metrics.AttestationsRejected.WithLabelValues(err.Error()).Inc()
		}
		return 0, e.reject("limit_close", err)
	}

	// TP triggers on the profitable side, SL on the loss side.
	reached := false
	switch {
	case takeProfit && p.Long:
		reached = price >= bound
	case takeProfit && !p.Long:
		reached = price <= bound
	case !takeProfit && p.Long:
		reached = price <= bound
	default:
		reached = price >= bound
	}
	if !reached {
		return 0, e.reject("limit_close", ErrLimitNotMet)
	}

	// TP fills at the bound (guaranteed); SL fills at market with spread.
	closePrice := bound
	if !takeProfit {
		closePrice = fixedpoint.ApplySpread(price, spread, !p.Long)
	}

	e.settleFunding(p, now)
	withBot := now > p.UpdatedAt
	payout, err := e.settleClose(p, fixedpoint.RateConfig.Scale, closePrice, caller, vaultAddr, withBot, now)
	if err != nil {
		return 0, e.reject("limit_close", err)
	}

	e.log.Info().
		Int64("position_id", id).
		Bool("take_profit", takeProfit).
		Int64("close_price", closePrice).
		Int64("payout", payout).
		Msg("position closed at bound")
	e.observe("limit_close", start)
	return payout, nil
}

// Liquidate destroys a position whose margin loss has crossed the pair's
// threshold. The caller earns the bot share of the close schedule; the
// remaining margin goes to the protocol.
func (e *Engine) Liquidate(caller common.Address, id int64, att oracle.PriceData, sig []byte, resourcePrice int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	now := e.now()

	if err := e.checkResourcePrice(resourcePrice); err != nil {
		return e.reject("liquidate", err)
	}
	p, err := e.openPosition(id)
	if err != nil {
		return e.reject("liquidate", err)
	}

	price, _, err := e.verifier.Verify(att, sig, p.PairID, now)
	if err != nil {
		if e.metrics != nil {
			e.metrics.AttestationsRejected.WithLabelValues(err.Error()).Inc()
		}
		return e.reject("liquidate", err)
	}

	pair, err := e.pairs.PairConfig(p.PairID)
	if err != nil {
		return e.reject("liquidate", err)
	}

	e.settleFunding(p, now)
	loss := fixedpoint.MarginLossFraction(p.Margin, p.Leverage, p.OpenPrice, price, p.Long, p.AccInterest)
	if loss < pair.LiqThreshold {
		return e.reject("liquidate", ErrNotLiquidatable)
	}

	if _, err := e.ledger.RemovePosition(id); err != nil {
		return e.reject("liquidate", err)
	}
	e.pairs.RemoveOI(p.PairID, p.Asset, p.Long, p.Notional())

	// Liquidation reward: the close schedule's bot share on notional,
	// bounded by the margin actually held. No referral credit here.
	reward := fixedpoint.MulDivRate(p.Notional(), e.fees.Schedule(false).Bot)
	if reward > p.Margin {
		reward = p.Margin
	}
	if reward > 0 {
		if err := e.book.Transfer(e.settleAsset, e.account, caller, reward); err != nil {
			e.bookError("liq_reward", err)
		}
	}
	if rest := p.Margin - reward; rest > 0 {
		if err := e.book.Transfer(e.settleAsset, e.account, e.treasury, rest); err != nil {
			e.bookError("liq_rest", err)
		}
	}

	e.emit(&event.PositionLiquidated{
		PositionID: id,
		Trader:     p.Owner,
		Liquidator: caller,
		Pair:       p.PairID,
		MarkPrice:  price,
		Margin:     p.Margin,
	})
	if e.metrics != nil {
		e.metrics.Liquidations.WithLabelValues(pairLabel(p.PairID)).Inc()
	}
	e.log.Info().
		Int64("position_id", id).
		Int64("mark_price", price).
		Int64("loss_fraction", loss).
		Msg("position liquidated")
	e.observe("liquidate", start)
	return nil
}
