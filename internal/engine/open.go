package engine

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"MarginSettle/internal/event"
	"MarginSettle/internal/fixedpoint"
	"MarginSettle/internal/oracle"
	"MarginSettle/internal/position"
)

// TradeRequest describes a market or pending open. Kind is KindNone for a
// market order; limit and stop orders carry a trigger price.
type TradeRequest struct {
	Trader      common.Address
	PairID      int64
	Long        bool
	Margin      int64 // margin-asset units
	Leverage    int64
	TakeProfit  int64
	StopLoss    int64
	Kind        position.OrderKind
	Trigger     int64
	MarginAsset common.Address
	Vault       common.Address
	RefCode     common.Hash
}

// checkExitBounds validates TP strictly on the profitable side of refPrice
// and SL strictly on the loss side. Zero means unset.
func checkExitBounds(long bool, refPrice, takeProfit, stopLoss int64) error {
	if takeProfit != 0 {
		if long && takeProfit <= refPrice {
			return ErrBadStopLoss
		}
		if !long && takeProfit >= refPrice {
			return ErrBadStopLoss
		}
	}
	if stopLoss != 0 {
		if long && stopLoss >= refPrice {
			return ErrBadStopLoss
		}
		if !long && stopLoss <= refPrice {
			return ErrBadStopLoss
		}
	}
	return nil
}

// OpenPosition opens a market position at the attested price with spread
// applied against the trader. Open fees come out of the deposited margin.
func (e *Engine) OpenPosition(caller common.Address, req TradeRequest, att oracle.PriceData, sig []byte) (*position.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	now := e.now()

	if e.paused {
		return nil, e.reject("open", ErrPaused)
	}
	if err := e.authorize(caller, req.Trader, now); err != nil {
		return nil, e.reject("open", err)
	}
	pair, err := e.pairs.Pair(req.PairID)
	if err != nil {
		return nil, e.reject("open", err)
	}
	if err := e.pairs.CheckMargin(req.MarginAsset); err != nil {
		return nil, e.reject("open", err)
	}
	if req.Leverage < pair.MinLeverage || req.Leverage > pair.MaxLeverage {
		return nil, e.reject("open", position.ErrBadLeverage)
	}

	price, spread, err := e.verifier.Verify(att, sig, req.PairID, now)
	if err != nil {
		if e.metrics != nil {
			e.metrics.AttestationsRejected.WithLabelValues(err.Error()).Inc()
		}
		return nil, e.reject("open", err)
	}
	openPrice := fixedpoint.ApplySpread(price, spread, req.Long)
	if err := checkExitBounds(req.Long, openPrice, req.TakeProfit, req.StopLoss); err != nil {
		return nil, e.reject("open", err)
	}

	// Validate sizes on the quoted fee before any collateral moves.
	quote := e.fees.Quote(fixedpoint.Notional(req.Margin, req.Leverage), req.Trader, req.RefCode, true, false)
	if req.Margin-quote.Total <= 0 {
		return nil, e.reject("open", position.ErrBelowMinPositionSize)
	}
	minSize := e.pairs.MinPositionSize(req.MarginAsset)
	if fixedpoint.Notional(req.Margin-quote.Total, req.Leverage) < minSize {
		return nil, e.reject("open", position.ErrBelowMinPositionSize)
	}

	credited, err := e.depositMargin(req.Vault, req.MarginAsset, req.Margin, req.Trader)
	if err != nil {
		return nil, e.reject("open", err)
	}

	bd := e.fees.Compute(fixedpoint.Notional(credited, req.Leverage), req.Trader, req.RefCode, true, false)
	posMargin := credited - bd.Total
	if posMargin <= 0 {
		// Unwind the deposit so the rejection leaves the books unchanged.
		if err := e.withdrawPayout(req.Vault, req.MarginAsset, credited, req.Trader); err != nil {
			e.bookError("deposit_refund", err)
		}
		return nil, e.reject("open", position.ErrBelowMinPositionSize)
	}
	e.distributeFees(bd, caller, 0, req.PairID, req.Trader, true)

	p := e.ledger.CreatePosition(position.Position{
		Owner:      req.Trader,
		PairID:     req.PairID,
		Long:       req.Long,
		Margin:     posMargin,
		Leverage:   req.Leverage,
		OpenPrice:  openPrice,
		TakeProfit: req.TakeProfit,
		StopLoss:   req.StopLoss,
		Asset:      req.MarginAsset,
		RefCode:    req.RefCode,
		CreatedAt:  now,
		UpdatedAt:  now,
		AccruedAt:  now,
	})
	e.pairs.AddOI(req.PairID, req.MarginAsset, req.Long, p.Notional())

	e.emit(&event.PositionOpened{
		PositionID: p.ID,
		Trader:     p.Owner,
		Pair:       p.PairID,
		Long:       p.Long,
		Margin:     p.Margin,
		Leverage:   p.Leverage,
		OpenPrice:  p.OpenPrice,
		TakeProfit: p.TakeProfit,
		StopLoss:   p.StopLoss,
		Asset:      p.Asset,
	})
	e.log.Info().
		Int64("position_id", p.ID).
		Int64("pair", p.PairID).
		Bool("long", p.Long).
		Int64("margin", p.Margin).
		Int64("leverage", p.Leverage).
		Int64("open_price", p.OpenPrice).
		Msg("position opened")
	e.observe("open", start)
	return p, nil
}

// CreateLimitOrder escrows margin for a limit or stop entry. Fees are
// charged at execution time, not here.
func (e *Engine) CreateLimitOrder(caller common.Address, req TradeRequest) (*position.LimitOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	now := e.now()

	if e.paused {
		return nil, e.reject("limit_create", ErrPaused)
	}
	if err := e.authorize(caller, req.Trader, now); err != nil {
		return nil, e.reject("limit_create", err)
	}
	if req.Kind == position.KindNone {
		return nil, e.reject("limit_create", ErrNotLimit)
	}
	if req.Trigger <= 0 {
		return nil, e.reject("limit_create", ErrNoPrice)
	}
	pair, err := e.pairs.Pair(req.PairID)
	if err != nil {
		return nil, e.reject("limit_create", err)
	}
	if err := e.pairs.CheckMargin(req.MarginAsset); err != nil {
		return nil, e.reject("limit_create", err)
	}
	if req.Leverage < pair.MinLeverage || req.Leverage > pair.MaxLeverage {
		return nil, e.reject("limit_create", position.ErrBadLeverage)
	}
	if err := checkExitBounds(req.Long, req.Trigger, req.TakeProfit, req.StopLoss); err != nil {
		return nil, e.reject("limit_create", err)
	}
	if fixedpoint.Notional(req.Margin, req.Leverage) < e.pairs.MinPositionSize(req.MarginAsset) {
		return nil, e.reject("limit_create", position.ErrBelowMinPositionSize)
	}

	credited, err := e.depositMargin(req.Vault, req.MarginAsset, req.Margin, req.Trader)
	if err != nil {
		return nil, e.reject("limit_create", err)
	}

	o := e.ledger.CreateLimitOrder(position.LimitOrder{
		Owner:      req.Trader,
		PairID:     req.PairID,
		Long:       req.Long,
		Margin:     credited,
		Leverage:   req.Leverage,
		Kind:       req.Kind,
		Trigger:    req.Trigger,
		TakeProfit: req.TakeProfit,
		StopLoss:   req.StopLoss,
		Asset:      req.MarginAsset,
		RefCode:    req.RefCode,
		CreatedAt:  now,
		UpdatedAt:  now,
	})

	e.emit(&event.LimitOrderPlaced{
		OrderID:  o.ID,
		Trader:   o.Owner,
		Pair:     o.PairID,
		Long:     o.Long,
		Margin:   o.Margin,
		Leverage: o.Leverage,
		Trigger:  o.Trigger,
		Stop:     o.Kind == position.KindStop,
	})
	e.log.Info().
		Int64("order_id", o.ID).
		Int64("pair", o.PairID).
		Str("kind", o.Kind.String()).
		Int64("trigger", o.Trigger).
		Msg("limit order placed")
	e.observe("limit_create", start)
	return o, nil
}

// triggerMet checks the attested price against the trigger for the order
// kind and direction, within the configured tolerance band. A zero band
// disables the far-side check.
func (e *Engine) triggerMet(o *position.LimitOrder, price int64) bool {
	band := fixedpoint.MulDivRate(o.Trigger, e.limitPriceRange)

	// Limit entries fill when price crosses to the favorable side of the
	// trigger; stop entries when it crosses to the adverse side.
	favorable := o.Long == (o.Kind == position.KindLimit)
	if favorable {
		if price > o.Trigger {
			return false
		}
		return e.limitPriceRange == 0 || price >= o.Trigger-band
	}
	if price < o.Trigger {
		return false
	}
	return e.limitPriceRange == 0 || price <= o.Trigger+band
}

// ExecuteLimitOrder converts a pending order into an open position at the
// attested price. Limit fills get the better of trigger and market; stop
// fills take the market price. The executor earns the bot fee only if at
// least one second has passed since the order was placed.
func (e *Engine) ExecuteLimitOrder(caller common.Address, id int64, att oracle.PriceData, sig []byte, resourcePrice int64) (*position.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	now := e.now()

	if e.paused {
		return nil, e.reject("limit_execute", ErrPaused)
	}
	if err := e.checkResourcePrice(resourcePrice); err != nil {
		return nil, e.reject("limit_execute", err)
	}
	if _, ok := e.ledger.Position(id); ok {
		return nil, e.reject("limit_execute", ErrNotLimit)
	}
	o, ok := e.ledger.LimitOrder(id)
	if !ok {
		return nil, e.reject("limit_execute", position.ErrNotFound)
	}
	pair, err := e.pairs.Pair(o.PairID)
	if err != nil {
		return nil, e.reject("limit_execute", err)
	}

	price, spread, err := e.verifier.Verify(att, sig, o.PairID, now)
	if err != nil {
		if e.metrics != nil {
			e.metrics.AttestationsRejected.WithLabelValues(err.Error()).Inc()
		}
		return nil, e.reject("limit_execute", err)
	}
	if !e.triggerMet(o, price) {
		return nil, e.reject("limit_execute", ErrLimitNotMet)
	}

	spreadPrice := fixedpoint.ApplySpread(price, spread, o.Long)
	fill := spreadPrice
	if o.Kind == position.KindLimit {
		// Guaranteed execution price: the better of trigger and market.
		if o.Long && o.Trigger < fill {
			fill = o.Trigger
		}
		if !o.Long && o.Trigger > fill {
			fill = o.Trigger
		}
	}

	// A TP already at or past the fill could never trigger; clear it
	// rather than fail the execution.
	tp := o.TakeProfit
	if tp != 0 && ((o.Long && tp <= fill) || (!o.Long && tp >= fill)) {
		tp = 0
	}

	if o.Leverage < pair.MinLeverage || o.Leverage > pair.MaxLeverage {
		return nil, e.reject("limit_execute", position.ErrBadLeverage)
	}

	withBot := now > o.UpdatedAt
	bd := e.fees.Quote(fixedpoint.Notional(o.Margin, o.Leverage), o.Owner, o.RefCode, true, withBot)
	posMargin := o.Margin - bd.Total
	if posMargin <= 0 {
		return nil, e.reject("limit_execute", position.ErrBelowMinPositionSize)
	}
	if fixedpoint.Notional(posMargin, o.Leverage) < e.pairs.MinPositionSize(o.Asset) {
		return nil, e.reject("limit_execute", position.ErrBelowMinPositionSize)
	}

	bd = e.fees.Compute(fixedpoint.Notional(o.Margin, o.Leverage), o.Owner, o.RefCode, true, withBot)
	p, err := e.ledger.ExecuteLimitOrder(id, fill, tp, now)
	if err != nil {
		return nil, e.reject("limit_execute", err)
	}
	if err := e.ledger.UpdateMargin(id, posMargin, o.Leverage, pair.MinLeverage, pair.MaxLeverage, now); err != nil {
		return nil, e.reject("limit_execute", err)
	}
	e.distributeFees(bd, caller, p.ID, p.PairID, p.Owner, true)
	e.pairs.AddOI(p.PairID, p.Asset, p.Long, fixedpoint.Notional(posMargin, p.Leverage))

	e.emit(&event.LimitOrderExecuted{
		OrderID:   id,
		Trader:    p.Owner,
		Executor:  caller,
		Pair:      p.PairID,
		FillPrice: fill,
		BotFee:    bd.Bot,
	})
	e.emit(&event.PositionOpened{
		PositionID: p.ID,
		Trader:     p.Owner,
		Pair:       p.PairID,
		Long:       p.Long,
		Margin:     posMargin,
		Leverage:   p.Leverage,
		OpenPrice:  fill,
		TakeProfit: tp,
		StopLoss:   p.StopLoss,
		Asset:      p.Asset,
		FromLimit:  true,
	})
	e.log.Info().
		Int64("order_id", id).
		Int64("fill_price", fill).
		Bool("bot_fee", withBot).
		Msg("limit order executed")
	e.observe("limit_execute", start)
	return p, nil
}

// CancelLimitOrder refunds the escrowed margin and removes the order.
func (e *Engine) CancelLimitOrder(caller common.Address, id int64, vaultAddr common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	now := e.now()

	if _, ok := e.ledger.Position(id); ok {
		return e.reject("limit_cancel", ErrNotLimit)
	}
	o, ok := e.ledger.LimitOrder(id)
	if !ok {
		return e.reject("limit_cancel", position.ErrNotFound)
	}
	if err := e.authorize(caller, o.Owner, now); err != nil {
		return e.reject("limit_cancel", err)
	}
	if err := e.withdrawPayout(vaultAddr, o.Asset, o.Margin, o.Owner); err != nil {
		return e.reject("limit_cancel", err)
	}
	e.ledger.RemoveLimitOrder(id)

	e.emit(&event.LimitOrderCancelled{
		OrderID:        id,
		Trader:         o.Owner,
		Pair:           o.PairID,
		RefundedMargin: o.Margin,
	})
	e.log.Info().Int64("order_id", id).Msg("limit order cancelled")
	e.observe("limit_cancel", start)
	return nil
}
