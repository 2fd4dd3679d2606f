package position_test

import (
	"errors"
	"testing"

	"MarginSettle/internal/fixedpoint"
	"MarginSettle/internal/position"

	"github.com/ethereum/go-ethereum/common"
)

var (
	owner = common.HexToAddress("0x0000000000000000000000000000000000000011")
	asset = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func openPosition() position.Position {
	return position.Position{
		Owner:     owner,
		PairID:    0,
		Long:      true,
		Margin:    1_000 * fixedpoint.AmountConfig.Scale,
		Leverage:  5 * fixedpoint.LeverageConfig.Scale,
		OpenPrice: 10_000 * fixedpoint.PriceConfig.Scale,
		Asset:     asset,
		CreatedAt: 2_000_000_000,
		UpdatedAt: 2_000_000_000,
		AccruedAt: 2_000_000_000,
	}
}

func TestCreatePosition_MonotonicIDs(t *testing.T) {
	l := position.NewLedger()

	p1 := l.CreatePosition(openPosition())
	p2 := l.CreatePosition(openPosition())

	if p1.ID != 1 || p2.ID != 2 {
		t.Errorf("ids: got %d, %d", p1.ID, p2.ID)
	}
	if l.CountByPair(0) != 2 {
		t.Errorf("count: got %d", l.CountByPair(0))
	}
}

func TestLimitOrder_SharesIDSpace(t *testing.T) {
	l := position.NewLedger()

	p := l.CreatePosition(openPosition())
	o := l.CreateLimitOrder(position.LimitOrder{
		Owner: owner, Kind: position.KindLimit,
		Margin: 100 * fixedpoint.AmountConfig.Scale, Leverage: 2 * fixedpoint.LeverageConfig.Scale,
	})

	if o.ID != p.ID+1 {
		t.Errorf("order id: got %d, want %d", o.ID, p.ID+1)
	}

	// An id refers to exactly one of the two
	if _, ok := l.Position(o.ID); ok {
		t.Error("order id resolves as position")
	}
	if _, ok := l.LimitOrder(p.ID); ok {
		t.Error("position id resolves as order")
	}
}

func TestExecuteLimitOrder_ConsumesSameID(t *testing.T) {
	l := position.NewLedger()
	o := l.CreateLimitOrder(position.LimitOrder{
		Owner: owner, PairID: 0, Long: true, Kind: position.KindLimit,
		Margin:   1_000 * fixedpoint.AmountConfig.Scale,
		Leverage: 5 * fixedpoint.LeverageConfig.Scale,
		Trigger:  9_500 * fixedpoint.PriceConfig.Scale,
		Asset:    asset,
	})

	execPrice := 9_400 * fixedpoint.PriceConfig.Scale
	p, err := l.ExecuteLimitOrder(o.ID, execPrice, 0, 2_000_000_100)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if p.ID != o.ID {
		t.Errorf("position id: got %d, want %d", p.ID, o.ID)
	}
	if p.OpenPrice != execPrice {
		t.Errorf("open price: got %d, want %d", p.OpenPrice, execPrice)
	}
	if _, ok := l.LimitOrder(o.ID); ok {
		t.Error("executed order still pending")
	}
	if l.PendingOrders() != 0 {
		t.Errorf("pending orders: got %d", l.PendingOrders())
	}
}

func TestRemovePosition(t *testing.T) {
	l := position.NewLedger()
	p := l.CreatePosition(openPosition())

	if _, err := l.RemovePosition(p.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := l.Position(p.ID); ok {
		t.Error("removed position still present")
	}
	if l.CountByPair(0) != 0 {
		t.Errorf("pair index not cleaned: %d", l.CountByPair(0))
	}

	if _, err := l.RemovePosition(p.ID); !errors.Is(err, position.ErrNotFound) {
		t.Errorf("double-remove: got %v, want ErrNotFound", err)
	}
}

// ============================================================================
// Test: invariant enforcement
// ============================================================================

func TestUpdateMargin_LeverageBounds(t *testing.T) {
	l := position.NewLedger()
	p := l.CreatePosition(openPosition())

	minLev := int64(2 * fixedpoint.LeverageConfig.Scale)
	maxLev := int64(100 * fixedpoint.LeverageConfig.Scale)

	// Doubling margin halves leverage to 2.5x — fine
	newMargin := 2 * p.Margin
	newLev := fixedpoint.AdjustedLeverage(p.Margin, p.Leverage, newMargin)
	if err := l.UpdateMargin(p.ID, newMargin, newLev, minLev, maxLev, 2_000_000_100); err != nil {
		t.Fatalf("update margin: %v", err)
	}

	got, _ := l.Position(p.ID)
	if got.Margin != newMargin || got.Leverage != newLev {
		t.Errorf("margin/leverage: got %d/%d", got.Margin, got.Leverage)
	}

	// Quadrupling from there lands at 0.625x — below min
	again := 4 * newMargin
	tooLow := fixedpoint.AdjustedLeverage(newMargin, newLev, again)
	err := l.UpdateMargin(p.ID, again, tooLow, minLev, maxLev, 2_000_000_200)
	if !errors.Is(err, position.ErrBadLeverage) {
		t.Errorf("got %v, want ErrBadLeverage", err)
	}

	// Failed update leaves the position unchanged
	got, _ = l.Position(p.ID)
	if got.Margin != newMargin {
		t.Errorf("failed update mutated margin: %d", got.Margin)
	}
}

func TestReduceForPartialClose(t *testing.T) {
	l := position.NewLedger()
	p := l.CreatePosition(openPosition())

	half := p.Margin / 2
	minSize := int64(100 * fixedpoint.AmountConfig.Scale)

	if err := l.ReduceForPartialClose(p.ID, half, 0, minSize, 2_000_000_100); err != nil {
		t.Fatalf("partial close: %v", err)
	}

	got, _ := l.Position(p.ID)
	if got.Margin != half {
		t.Errorf("remaining margin: got %d, want %d", got.Margin, half)
	}
	if got.Leverage != p.Leverage || got.OpenPrice != p.OpenPrice {
		t.Error("partial close must not touch leverage or open price")
	}
}

func TestReduceForPartialClose_MinSizeFloor(t *testing.T) {
	l := position.NewLedger()
	p := l.CreatePosition(openPosition())

	// Leaves a 1-unit remainder far below min size
	almostAll := p.Margin - fixedpoint.AmountConfig.Scale
	minSize := int64(100 * fixedpoint.AmountConfig.Scale)

	err := l.ReduceForPartialClose(p.ID, almostAll, 0, minSize, 2_000_000_100)
	if !errors.Is(err, position.ErrBelowMinPositionSize) {
		t.Errorf("got %v, want ErrBelowMinPositionSize", err)
	}

	// Reducing to exactly zero is a full close, always allowed
	if err := l.ReduceForPartialClose(p.ID, p.Margin, 0, minSize, 2_000_000_100); err != nil {
		t.Errorf("full reduce: %v", err)
	}
}

func TestCheckClosePercent(t *testing.T) {
	full := fixedpoint.RateConfig.Scale

	if err := position.CheckClosePercent(full); err != nil {
		t.Errorf("100%% close: %v", err)
	}
	if err := position.CheckClosePercent(full / 2); err != nil {
		t.Errorf("50%% close: %v", err)
	}
	if err := position.CheckClosePercent(0); !errors.Is(err, position.ErrBadClosePercent) {
		t.Errorf("0%%: got %v", err)
	}
	if err := position.CheckClosePercent(full + 1); !errors.Is(err, position.ErrBadClosePercent) {
		t.Errorf(">100%%: got %v", err)
	}
}

func TestApplyInterest(t *testing.T) {
	l := position.NewLedger()
	p := l.CreatePosition(openPosition())

	if err := l.ApplyInterest(p.ID, -42, 2_000_000_100); err != nil {
		t.Fatalf("apply interest: %v", err)
	}
	got, _ := l.Position(p.ID)
	if got.AccInterest != -42 {
		t.Errorf("acc interest: got %d", got.AccInterest)
	}
	if got.AccruedAt != 2_000_000_100 {
		t.Errorf("accrued at: got %d", got.AccruedAt)
	}
}
