package engine

import (
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"MarginSettle/internal/event"
	"MarginSettle/internal/fees"
	"MarginSettle/internal/fixedpoint"
	"MarginSettle/internal/observability"
	"MarginSettle/internal/oracle"
	"MarginSettle/internal/pairs"
	"MarginSettle/internal/position"
	"MarginSettle/internal/vault"
)

// proxyGrant is a time-bound delegation: delegate may act for the granting
// owner while now < expiry.
type proxyGrant struct {
	delegate common.Address
	expiry   int64
}

// Engine is the settlement state machine. Every public operation runs under
// one mutex: validation and the mutation it guards are atomic with respect
// to other callers, and a failed call leaves no partial state.
type Engine struct {
	mu sync.Mutex

	log     zerolog.Logger
	metrics *observability.Metrics

	verifier *oracle.Verifier
	pairs    *pairs.Registry
	fees     *fees.Engine
	ledger   *position.Ledger
	book     *vault.Book

	// Engine's own book account: escrowed margin and undistributed fees.
	account     common.Address
	settleAsset common.Address
	treasury    common.Address

	vaults  map[common.Address]vault.Vault
	proxies map[common.Address]proxyGrant

	paused           bool
	maxWinPercent    int64 // rate scale, 0 = uncapped
	timeDelay        int64 // seconds between position-modifying actions
	limitPriceRange  int64 // rate scale tolerance band around triggers
	maxResourcePrice int64 // 0 = no ceiling

	now func() int64

	outbound chan<- event.Envelope
}

// Config carries the engine's construction-time wiring.
type Config struct {
	Account       common.Address
	SettleAsset   common.Address
	Treasury      common.Address
	MaxWinPercent int64
	TimeDelay     int64
	// LimitPriceRange bounds how far past a trigger an execution may land.
	LimitPriceRange  int64
	MaxResourcePrice int64

	// Now overrides the engine clock (unix seconds). Nil = wall clock.
	Now func() int64

	// Outbound receives settlement events after each applied operation.
	// Nil disables emission; a full channel drops rather than blocks.
	Outbound chan<- event.Envelope

	Metrics *observability.Metrics
}

func New(cfg Config, verifier *oracle.Verifier, registry *pairs.Registry, feeEngine *fees.Engine, book *vault.Book) *Engine {
	now := cfg.Now
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	return &Engine{
		log:              observability.NewLogger("engine"),
		metrics:          cfg.Metrics,
		verifier:         verifier,
		pairs:            registry,
		fees:             feeEngine,
		ledger:           position.NewLedger(),
		book:             book,
		account:          cfg.Account,
		settleAsset:      cfg.SettleAsset,
		treasury:         cfg.Treasury,
		vaults:           make(map[common.Address]vault.Vault),
		proxies:          make(map[common.Address]proxyGrant),
		maxWinPercent:    cfg.MaxWinPercent,
		timeDelay:        cfg.TimeDelay,
		limitPriceRange:  cfg.LimitPriceRange,
		maxResourcePrice: cfg.MaxResourcePrice,
		now:              now,
		outbound:         cfg.Outbound,
	}
}

// Verifier exposes the attestation verifier for signer-set administration.
func (e *Engine) Verifier() *oracle.Verifier { return e.verifier }

// Pairs exposes the risk registry for pair administration.
func (e *Engine) Pairs() *pairs.Registry { return e.pairs }

// Fees exposes the fee engine for schedule administration.
func (e *Engine) Fees() *fees.Engine { return e.fees }

// Ledger exposes read access to positions and orders.
func (e *Engine) Ledger() *position.Ledger { return e.ledger }

// ============================================================
// Proxy authorization
// ============================================================

// ApproveProxy grants delegate the right to act for owner until expiry.
func (e *Engine) ApproveProxy(owner, delegate common.Address, expiry int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.proxies[owner] = proxyGrant{delegate: delegate, expiry: expiry}
	e.log.Info().
		Str("owner", owner.Hex()).
		Str("delegate", delegate.Hex()).
		Int64("expiry", expiry).
		Msg("proxy approved")
}

// RevokeProxy removes owner's grant, if any.
func (e *Engine) RevokeProxy(owner common.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.proxies, owner)
}

// authorize checks caller == owner or a live proxy grant. Expiry is lazy:
// now >= expiry simply fails the check, no sweep needed. A caller that is
// the granted delegate but expired gets ErrNotProxy; a stranger gets
// ErrNotOwner.
func (e *Engine) authorize(caller, owner common.Address, now int64) error {
	if caller == owner {
		return nil
	}
	g, ok := e.proxies[owner]
	if !ok || g.delegate != caller {
		return ErrNotOwner
	}
	if now >= g.expiry {
		return ErrNotProxy
	}
	return nil
}

// ============================================================
// Parameter administration
// ============================================================

func (e *Engine) SetPaused(paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = paused
	e.log.Warn().Bool("paused", paused).Msg("pause flag changed")
}

// SetMaxWinPercent sets the payout cap relative to margin (rate scale).
// Zero disables the cap.
func (e *Engine) SetMaxWinPercent(p int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxWinPercent = p
}

// SetTimeDelay sets the minimum seconds between position-modifying actions.
func (e *Engine) SetTimeDelay(seconds int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeDelay = seconds
}

// SetLimitPriceRange sets the trigger tolerance band (rate scale).
func (e *Engine) SetLimitPriceRange(band int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.limitPriceRange = band
}

// SetMaxResourcePrice sets the execution-price ceiling. Zero disables it.
func (e *Engine) SetMaxResourcePrice(ceiling int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxResourcePrice = ceiling
}

// SetAllowedVault adds or removes a vault from the allowed set.
func (e *Engine) SetAllowedVault(addr common.Address, v vault.Vault) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v == nil {
		delete(e.vaults, addr)
		return
	}
	e.vaults[addr] = v
}

func (e *Engine) SetTreasury(addr common.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.treasury = addr
}

// ============================================================
// Shared helpers (callers hold e.mu)
// ============================================================

// checkResourcePrice blunts priority-fee races among competing executors.
func (e *Engine) checkResourcePrice(resourcePrice int64) error {
	if e.maxResourcePrice > 0 && resourcePrice > e.maxResourcePrice {
		return ErrResourcePriceTooHigh
	}
	return nil
}

// depositMargin moves collateral in through an allowed vault and verifies
// the credited settlement amount against the engine's own balance delta.
func (e *Engine) depositMargin(vaultAddr, asset common.Address, amount int64, payer common.Address) (int64, error) {
	v, ok := e.vaults[vaultAddr]
	if !ok {
		return 0, ErrNotVault
	}
	before := e.book.Balance(e.settleAsset, e.account)
	credited, err := v.Deposit(asset, amount, payer)
	if err != nil {
		return 0, err
	}
	if credited <= 0 || e.book.Balance(e.settleAsset, e.account)-before != credited {
		return 0, ErrBadDeposit
	}
	return credited, nil
}

// withdrawPayout moves collateral out through an allowed vault with the
// mirror-image delta check.
func (e *Engine) withdrawPayout(vaultAddr, asset common.Address, amount int64, payee common.Address) error {
	if amount == 0 {
		return nil
	}
	v, ok := e.vaults[vaultAddr]
	if !ok {
		return ErrNotVault
	}
	before := e.book.Balance(e.settleAsset, e.account)
	if err := v.Withdraw(asset, amount, payee); err != nil {
		return err
	}
	if before-e.book.Balance(e.settleAsset, e.account) != amount {
		return ErrBadWithdraw
	}
	return nil
}

// checkSettlementFunds validates a settlement's outgoing legs before any
// state is touched: the vault handle must exist when a payout will move
// through it, and the engine account must cover the total outflow. After
// this passes the only way the withdrawal can fail is the delta guard.
func (e *Engine) checkSettlementFunds(vaultAddr common.Address, payout, outflow int64) error {
	if payout > 0 {
		if _, ok := e.vaults[vaultAddr]; !ok {
			return ErrNotVault
		}
	}
	if outflow > 0 && e.book.Balance(e.settleAsset, e.account) < outflow {
		return vault.ErrInsufficient
	}
	return nil
}

// bookError records a failed internal book movement. A leg that was not
// pre-checked has no caller to fail; the books must be reconciled from the
// event log.
func (e *Engine) bookError(leg string, err error) {
	e.log.Error().Err(err).Str("leg", leg).Msg("book transfer failed")
	if e.metrics != nil {
		e.metrics.BookErrors.WithLabelValues(leg).Inc()
	}
}

// settleFunding folds the lazily-accrued funding interest into the position.
func (e *Engine) settleFunding(p *position.Position, now int64) {
	elapsed := now - p.AccruedAt
	if elapsed <= 0 {
		return
	}
	pair, err := e.pairs.PairConfig(p.PairID)
	if err != nil || pair.BaseFundingRate == 0 {
		return
	}
	delta := fixedpoint.FundingDelta(p.Margin, p.Leverage, pair.BaseFundingRate, elapsed)
	if delta == 0 {
		return
	}
	e.ledger.ApplyInterest(p.ID, delta, now)
	e.emit(&event.FundingAccrued{
		PositionID: p.ID,
		Pair:       p.PairID,
		Delta:      delta,
		Elapsed:    elapsed,
	})
	if e.metrics != nil {
		e.metrics.FundingAccrued.WithLabelValues(pairLabel(p.PairID)).Inc()
	}
}

// distributeFees settles a computed breakdown out of the engine account.
func (e *Engine) distributeFees(bd fees.Breakdown, executor common.Address, posID, pairID int64, trader common.Address, onOpen bool) {
	if bd.Protocol > 0 {
		if err := e.book.Transfer(e.settleAsset, e.account, e.treasury, bd.Protocol); err != nil {
			e.bookError("protocol", err)
		}
	}
	if bd.Burn > 0 {
		if err := e.book.Burn(e.settleAsset, e.account, bd.Burn); err != nil {
			e.bookError("burn", err)
		}
	}
	if bd.Referral > 0 {
		if err := e.book.Transfer(e.settleAsset, e.account, bd.Referrer, bd.Referral); err != nil {
			e.bookError("referral", err)
		}
	}
	if bd.Bot > 0 {
		if err := e.book.Transfer(e.settleAsset, e.account, executor, bd.Bot); err != nil {
			e.bookError("bot", err)
		}
	}
	if bd.Total > 0 {
		e.emit(&event.FeesDistributed{
			PositionID: posID,
			Trader:     trader,
			Pair:       pairID,
			Protocol:   bd.Protocol,
			Burn:       bd.Burn,
			Referral:   bd.Referral,
			Bot:        bd.Bot,
			Referrer:   bd.Referrer,
			OnOpen:     onOpen,
		})
	}
	if e.metrics != nil {
		e.metrics.FeesCollected.WithLabelValues("protocol").Add(float64(bd.Protocol))
		e.metrics.FeesCollected.WithLabelValues("burn").Add(float64(bd.Burn))
		e.metrics.FeesCollected.WithLabelValues("referral").Add(float64(bd.Referral))
		e.metrics.FeesCollected.WithLabelValues("bot").Add(float64(bd.Bot))
	}
}

// emit publishes an event without blocking the settlement path.
func (e *Engine) emit(payload event.Event) {
	if e.outbound == nil {
		return
	}
	env := event.Wrap(payload, time.Unix(e.now(), 0).UTC())
	select {
	case e.outbound <- env:
	default:
		if e.metrics != nil {
			e.metrics.PublishDrops.Inc()
		}
		e.log.Warn().
			Str("event_type", env.Type.String()).
			Msg("outbound channel full, event dropped")
	}
}

func (e *Engine) observe(op string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.OpsApplied.WithLabelValues(op).Inc()
	e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	e.metrics.OpenPositions.Set(float64(e.ledger.OpenCount()))
	e.metrics.PendingOrders.Set(float64(e.ledger.PendingOrders()))
}

func (e *Engine) reject(op string, err error) error {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, err.Error()).Inc()
	}
	return err
}

func pairLabel(pairID int64) string {
	return strconv.FormatInt(pairID, 10)
}

// closeToMaxPnL rejects margin mutations once the current payout sits within
// one whole-margin step of the cap, so a trader cannot restructure the
// position to dodge it.
func (e *Engine) closeToMaxPnL(p *position.Position, price int64) bool {
	if e.maxWinPercent == 0 {
		return false
	}
	payout := fixedpoint.Payout(p.Margin, p.Leverage, p.OpenPrice, price, p.Long, p.AccInterest)
	threshold := fixedpoint.MulDivRate(p.Margin, e.maxWinPercent-fixedpoint.RateConfig.Scale)
	return payout >= threshold
}
