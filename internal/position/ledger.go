package position

import (
	"errors"

	"MarginSettle/internal/fixedpoint"
)

var (
	ErrNotFound             = errors.New("no such position or order")
	ErrBadLeverage          = errors.New("leverage outside pair bounds")
	ErrBadClosePercent      = errors.New("close percent outside (0, 100%]")
	ErrBelowMinPositionSize = errors.New("remaining position below minimum size")
)

func notional(margin, leverage int64) int64 {
	return fixedpoint.Notional(margin, leverage)
}

// Ledger owns the canonical set of open positions and pending limit orders.
// Positions and orders share one monotonic id space; an id refers to exactly
// one of the two at any time. All mutation goes through the ledger so the
// per-position invariants live here, not in callers.
type Ledger struct {
	nextID    int64
	positions map[int64]*Position
	orders    map[int64]*LimitOrder
	byPair    map[int64][]int64 // open position ids per pair
}

func NewLedger() *Ledger {
	return &Ledger{
		nextID:    1,
		positions: make(map[int64]*Position),
		orders:    make(map[int64]*LimitOrder),
		byPair:    make(map[int64][]int64),
	}
}

// CreatePosition assigns the next id and records the position as open.
func (l *Ledger) CreatePosition(p Position) *Position {
	p.ID = l.nextID
	l.nextID++
	return l.insertPosition(p)
}

func (l *Ledger) insertPosition(p Position) *Position {
	stored := p
	l.positions[p.ID] = &stored
	l.byPair[p.PairID] = append(l.byPair[p.PairID], p.ID)
	return &stored
}

// CreateLimitOrder assigns the next id and records the pending order.
func (l *Ledger) CreateLimitOrder(o LimitOrder) *LimitOrder {
	o.ID = l.nextID
	l.nextID++
	stored := o
	l.orders[o.ID] = &stored
	return &stored
}

// ExecuteLimitOrder atomically removes the order and creates a position
// under the same id at the given execution price. The TP carried over from
// the order must already be sanitized by the caller.
func (l *Ledger) ExecuteLimitOrder(id, execPrice, takeProfit, now int64) (*Position, error) {
	o, ok := l.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(l.orders, id)

	return l.insertPosition(Position{
		ID:         o.ID,
		Owner:      o.Owner,
		PairID:     o.PairID,
		Long:       o.Long,
		Margin:     o.Margin,
		Leverage:   o.Leverage,
		OpenPrice:  execPrice,
		TakeProfit: takeProfit,
		StopLoss:   o.StopLoss,
		Asset:      o.Asset,
		RefCode:    o.RefCode,
		CreatedAt:  now,
		UpdatedAt:  now,
		AccruedAt:  now,
	}), nil
}

// RemoveLimitOrder deletes a pending order (cancel path).
func (l *Ledger) RemoveLimitOrder(id int64) (*LimitOrder, error) {
	o, ok := l.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(l.orders, id)
	return o, nil
}

// RemovePosition deletes an open position (full close / liquidation).
func (l *Ledger) RemovePosition(id int64) (*Position, error) {
	p, ok := l.positions[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(l.positions, id)

	ids := l.byPair[p.PairID]
	for i, pid := range ids {
		if pid == id {
			l.byPair[p.PairID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return p, nil
}

// Position looks up an open position by id.
func (l *Ledger) Position(id int64) (*Position, bool) {
	p, ok := l.positions[id]
	return p, ok
}

// LimitOrder looks up a pending order by id.
func (l *Ledger) LimitOrder(id int64) (*LimitOrder, bool) {
	o, ok := l.orders[id]
	return o, ok
}

// OpenPositions returns the open position ids for a pair.
func (l *Ledger) OpenPositions(pairID int64) []int64 {
	ids := l.byPair[pairID]
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

// CountByPair returns the number of open positions on a pair.
func (l *Ledger) CountByPair(pairID int64) int {
	return len(l.byPair[pairID])
}

// PendingOrders returns the number of pending limit orders.
func (l *Ledger) PendingOrders() int {
	return len(l.orders)
}

// OpenCount returns the number of open positions across all pairs.
func (l *Ledger) OpenCount() int {
	return len(l.positions)
}

// UpdateMargin replaces a position's margin and leverage after an
// add/remove-margin operation. The caller supplies the pair's leverage
// bounds; a recomputed leverage outside them fails before any mutation.
func (l *Ledger) UpdateMargin(id, newMargin, newLeverage, minLev, maxLev, now int64) error {
	p, ok := l.positions[id]
	if !ok {
		return ErrNotFound
	}
	if newLeverage < minLev || newLeverage > maxLev {
		return ErrBadLeverage
	}
	p.Margin = newMargin
	p.Leverage = newLeverage
	p.UpdatedAt = now
	return nil
}

// IncreasePosition grows a position's margin at a new blended open price.
// Leverage and accrued interest are untouched.
func (l *Ledger) IncreasePosition(id, addedMargin, newOpenPrice, now int64) error {
	p, ok := l.positions[id]
	if !ok {
		return ErrNotFound
	}
	p.Margin += addedMargin
	p.OpenPrice = newOpenPrice
	p.UpdatedAt = now
	return nil
}

// ReduceForPartialClose shrinks a position by the closed margin slice.
// Leverage, open price, and the remaining share of accrued interest stay
// untouched. The remainder must be zero or at least the minimum size.
func (l *Ledger) ReduceForPartialClose(id, closedMargin, closedInterest, minSize, now int64) error {
	p, ok := l.positions[id]
	if !ok {
		return ErrNotFound
	}

	remaining := p.Margin - closedMargin
	if remaining < 0 {
		return ErrBadClosePercent
	}
	if remaining > 0 && notional(remaining, p.Leverage) < minSize {
		return ErrBelowMinPositionSize
	}

	p.Margin = remaining
	p.AccInterest -= closedInterest
	p.UpdatedAt = now
	return nil
}

// UpdateTpSl sets the take-profit or stop-loss bound.
func (l *Ledger) UpdateTpSl(id int64, takeProfit bool, price, now int64) error {
	p, ok := l.positions[id]
	if !ok {
		return ErrNotFound
	}
	if takeProfit {
		p.TakeProfit = price
	} else {
		p.StopLoss = price
	}
	p.UpdatedAt = now
	return nil
}

// ApplyInterest folds a lazy funding accrual into the position.
func (l *Ledger) ApplyInterest(id, delta, accruedAt int64) error {
	p, ok := l.positions[id]
	if !ok {
		return ErrNotFound
	}
	p.AccInterest += delta
	p.AccruedAt = accruedAt
	return nil
}

// CheckClosePercent validates a rate-scale close fraction.
func CheckClosePercent(percent int64) error {
	if percent <= 0 || percent > fixedpoint.RateConfig.Scale {
		return ErrBadClosePercent
	}
	return nil
}
