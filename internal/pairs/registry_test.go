package pairs_test

import (
	"errors"
	"testing"

	"MarginSettle/internal/fixedpoint"
	"MarginSettle/internal/pairs"

	"github.com/ethereum/go-ethereum/common"
)

var asset = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func btcPair() pairs.Pair {
	return pairs.Pair{
		ID:          0,
		Name:        "BTC/USD",
		Tradable:    true,
		MinLeverage: fixedpoint.LeverageConfig.Scale,
		MaxLeverage: 100 * fixedpoint.LeverageConfig.Scale,
	}
}

func TestPair_Lookup(t *testing.T) {
	r := pairs.NewRegistry()
	r.AddPair(btcPair())

	p, err := r.Pair(0)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if p.Name != "BTC/USD" {
		t.Errorf("got %q", p.Name)
	}
	if p.LiqThreshold != pairs.DefaultLiqThreshold {
		t.Errorf("default liq threshold not applied: %d", p.LiqThreshold)
	}
}

func TestPair_UnknownOrUntradable(t *testing.T) {
	r := pairs.NewRegistry()

	if _, err := r.Pair(99); !errors.Is(err, pairs.ErrNotAllowed) {
		t.Errorf("unknown pair: got %v, want ErrNotAllowed", err)
	}

	p := btcPair()
	p.Tradable = false
	r.AddPair(p)
	if _, err := r.Pair(0); !errors.Is(err, pairs.ErrNotAllowed) {
		t.Errorf("untradable pair: got %v, want ErrNotAllowed", err)
	}
}

func TestCheckMargin(t *testing.T) {
	r := pairs.NewRegistry()

	if err := r.CheckMargin(asset); !errors.Is(err, pairs.ErrMarginNotAllowed) {
		t.Errorf("got %v, want ErrMarginNotAllowed", err)
	}

	r.SetAllowedMargin(asset, true)
	if err := r.CheckMargin(asset); err != nil {
		t.Errorf("allow-listed asset rejected: %v", err)
	}

	r.SetAllowedMargin(asset, false)
	if err := r.CheckMargin(asset); !errors.Is(err, pairs.ErrMarginNotAllowed) {
		t.Errorf("removed asset should be rejected again, got %v", err)
	}
}

// ============================================================================
// Test: open interest
// ============================================================================

func TestOI_AddAndRemove(t *testing.T) {
	r := pairs.NewRegistry()
	r.AddPair(btcPair())

	r.AddOI(0, asset, true, 5_000)
	r.AddOI(0, asset, false, 2_000)

	long, short := r.OpenInterest(0, asset)
	if long != 5_000 || short != 2_000 {
		t.Fatalf("oi: got long=%d short=%d", long, short)
	}

	// Closing half the long side removes exactly that fraction
	r.RemoveOI(0, asset, true, 2_500)
	long, _ = r.OpenInterest(0, asset)
	if long != 2_500 {
		t.Errorf("long oi after partial remove: got %d, want 2500", long)
	}
}

func TestOI_ClampsAtZero(t *testing.T) {
	r := pairs.NewRegistry()
	r.AddOI(0, asset, true, 1_000)

	r.RemoveOI(0, asset, true, 1_500)
	long, _ := r.OpenInterest(0, asset)
	if long != 0 {
		t.Errorf("oi should clamp at zero, got %d", long)
	}

	// Removing from an untouched counter is a no-op, not a fault
	r.RemoveOI(1, asset, false, 100)
	_, short := r.OpenInterest(1, asset)
	if short != 0 {
		t.Errorf("untouched oi: got %d", short)
	}
}

func TestOI_PerAssetIsolation(t *testing.T) {
	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	r := pairs.NewRegistry()

	r.AddOI(0, asset, true, 1_000)
	r.AddOI(0, other, true, 9_000)

	long, _ := r.OpenInterest(0, asset)
	if long != 1_000 {
		t.Errorf("oi leaked across assets: got %d", long)
	}
}
