package fees_test

import (
	"errors"
	"testing"

	"MarginSettle/internal/fees"
	"MarginSettle/internal/fixedpoint"

	"github.com/ethereum/go-ethereum/common"
)

var (
	trader   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	referrer = common.HexToAddress("0x0000000000000000000000000000000000000002")
	rival    = common.HexToAddress("0x0000000000000000000000000000000000000003")

	codeA = common.BytesToHash([]byte("code-a"))
	codeB = common.BytesToHash([]byte("code-b"))
)

func testSchedule() fees.Schedule {
	return fees.Schedule{
		Protocol: 30_000_000, // 0.3%
		Burn:     10_000_000,
		Referral: 10_000_000,
		Bot:      10_000_000,
		Discount: 10_000_000,
	}
}

// ============================================================================
// Test: schedule validation
// ============================================================================

func TestSchedule_Validate(t *testing.T) {
	if err := testSchedule().Validate(); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}

	// Protocol share cannot cover its carve-outs
	bad := testSchedule()
	bad.Protocol = 10_000_000
	if err := bad.Validate(); !errors.Is(err, fees.ErrBadSchedule) {
		t.Errorf("thin protocol share: got %v, want ErrBadSchedule", err)
	}

	// Total extraction above the protocol bound
	greedy := testSchedule()
	greedy.Protocol = fees.MaxTotalFee
	greedy.Burn = fixedpoint.OnePercent
	if err := greedy.Validate(); !errors.Is(err, fees.ErrBadSchedule) {
		t.Errorf("extraction above bound: got %v, want ErrBadSchedule", err)
	}

	neg := testSchedule()
	neg.Burn = -1
	if err := neg.Validate(); !errors.Is(err, fees.ErrBadSchedule) {
		t.Errorf("negative rate: got %v, want ErrBadSchedule", err)
	}
}

func TestSetSchedule_RejectsInvalid(t *testing.T) {
	e := fees.NewEngine()
	bad := testSchedule()
	bad.Protocol = 0
	if err := e.SetSchedule(true, bad); err == nil {
		t.Fatal("invalid schedule accepted")
	}
	if got := e.Schedule(true); got != (fees.Schedule{}) {
		t.Errorf("rejected schedule leaked into state: %+v", got)
	}
}

// ============================================================================
// Test: fee splits
// ============================================================================

func TestCompute_UnreferredTrader(t *testing.T) {
	e := fees.NewEngine()
	if err := e.SetSchedule(true, testSchedule()); err != nil {
		t.Fatal(err)
	}

	notional := int64(10_000 * fixedpoint.AmountConfig.Scale)
	b := e.Compute(notional, trader, common.Hash{}, true, true)

	// 0.3% protocol minus 0.1% bot carve-out, 0.1% burn, no referral
	if b.Referral != 0 || b.Referrer != (common.Address{}) {
		t.Errorf("unreferred trade credited a referral: %+v", b)
	}
	wantBot := int64(10 * fixedpoint.AmountConfig.Scale)
	if b.Bot != wantBot {
		t.Errorf("bot share: got %d, want %d", b.Bot, wantBot)
	}
	wantProtocol := int64(20 * fixedpoint.AmountConfig.Scale)
	if b.Protocol != wantProtocol {
		t.Errorf("protocol share: got %d, want %d", b.Protocol, wantProtocol)
	}
	if b.Total != b.Protocol+b.Burn+b.Referral+b.Bot {
		t.Errorf("total mismatch: %+v", b)
	}
}

func TestCompute_ReferredTraderGetsDiscount(t *testing.T) {
	e := fees.NewEngine()
	if err := e.SetSchedule(true, testSchedule()); err != nil {
		t.Fatal(err)
	}
	if err := e.Referrals().CreateCode(referrer, codeA); err != nil {
		t.Fatal(err)
	}

	notional := int64(10_000 * fixedpoint.AmountConfig.Scale)

	plain := e.Compute(notional, rival, common.Hash{}, true, true)
	referred := e.Compute(notional, trader, codeA, true, true)

	if referred.Referrer != referrer {
		t.Fatalf("referrer not credited: %+v", referred)
	}
	wantReferral := int64(10 * fixedpoint.AmountConfig.Scale)
	if referred.Referral != wantReferral {
		t.Errorf("referral share: got %d, want %d", referred.Referral, wantReferral)
	}
	// The referred trader pays less in total than an unreferred one
	if referred.Total >= plain.Total {
		t.Errorf("discount not applied: referred=%d plain=%d", referred.Total, plain.Total)
	}
}

func TestCompute_BotSuppressed(t *testing.T) {
	e := fees.NewEngine()
	if err := e.SetSchedule(false, testSchedule()); err != nil {
		t.Fatal(err)
	}

	notional := int64(10_000 * fixedpoint.AmountConfig.Scale)
	b := e.Compute(notional, trader, common.Hash{}, false, false)
	if b.Bot != 0 {
		t.Errorf("suppressed bot share: got %d", b.Bot)
	}
}

// ============================================================================
// Test: referral lock
// ============================================================================

func TestReferralLock_FirstCodeWins(t *testing.T) {
	e := fees.NewEngine()
	if err := e.SetSchedule(true, testSchedule()); err != nil {
		t.Fatal(err)
	}

	r := e.Referrals()
	if err := r.CreateCode(referrer, codeA); err != nil {
		t.Fatal(err)
	}
	if err := r.CreateCode(rival, codeB); err != nil {
		t.Fatal(err)
	}

	first := e.Compute(1_000_000, trader, codeA, true, true)
	if first.Referrer != referrer {
		t.Fatalf("first trade referrer: got %s", first.Referrer)
	}

	// A later trade referencing a different code still credits the original
	second := e.Compute(1_000_000, trader, codeB, true, true)
	if second.Referrer != referrer {
		t.Errorf("lock not honored: got %s, want %s", second.Referrer, referrer)
	}
}

func TestReferrals_CreateOnce(t *testing.T) {
	r := fees.NewReferrals()
	if err := r.CreateCode(referrer, codeA); err != nil {
		t.Fatal(err)
	}
	if err := r.CreateCode(rival, codeA); !errors.Is(err, fees.ErrCodeTaken) {
		t.Errorf("got %v, want ErrCodeTaken", err)
	}
	if r.CodeOwner(codeA) != referrer {
		t.Errorf("code owner overwritten")
	}
}

func TestReferrals_UnknownCodeBindsNothing(t *testing.T) {
	r := fees.NewReferrals()
	if got := r.Bind(trader, codeB); got != (common.Address{}) {
		t.Errorf("unknown code bound %s", got)
	}
	if r.Referrer(trader) != (common.Address{}) {
		t.Errorf("trader locked to unknown code")
	}
}

func TestReferrals_SelfReferralIgnored(t *testing.T) {
	r := fees.NewReferrals()
	if err := r.CreateCode(trader, codeA); err != nil {
		t.Fatal(err)
	}
	if got := r.Bind(trader, codeA); got != (common.Address{}) {
		t.Errorf("self-referral bound %s", got)
	}
}
