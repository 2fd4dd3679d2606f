package pairs

import (
	"errors"

	"MarginSettle/internal/fixedpoint"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotAllowed       = errors.New("pair not enabled for trading")
	ErrMarginNotAllowed = errors.New("margin asset not allow-listed")
	ErrUnknownPair      = errors.New("unknown pair")
)

// Pair holds per-asset trading configuration. Leverage bounds carry leverage
// scale, the funding rate and liquidation threshold rate scale.
type Pair struct {
	ID              int64
	Name            string // e.g. "BTC/USD"
	Tradable        bool
	MinLeverage     int64
	MaxLeverage     int64
	BaseFundingRate int64 // annualized
	LiqThreshold    int64 // margin-loss fraction triggering liquidation
}

// openInterest is the pair × settlement-asset OI counter pair.
type openInterest struct {
	Long  int64
	Short int64
}

type oiKey struct {
	pair  int64
	asset common.Address
}

// Registry owns pair configuration, the margin-asset allow-list, per-asset
// minimum position sizes, and live open-interest counters. It is mutated only
// under the engine's single-writer discipline.
type Registry struct {
	pairs         map[int64]*Pair
	oi            map[oiKey]*openInterest
	allowedMargin map[common.Address]bool
	minPosSize    map[common.Address]int64
}

func NewRegistry() *Registry {
	return &Registry{
		pairs:         make(map[int64]*Pair),
		oi:            make(map[oiKey]*openInterest),
		allowedMargin: make(map[common.Address]bool),
		minPosSize:    make(map[common.Address]int64),
	}
}

// DefaultLiqThreshold is a 90% margin-loss liquidation trigger.
const DefaultLiqThreshold = 90 * fixedpoint.OnePercent

// AddPair registers or replaces a pair configuration.
func (r *Registry) AddPair(p Pair) {
	cp := p
	if cp.LiqThreshold == 0 {
		cp.LiqThreshold = DefaultLiqThreshold
	}
	r.pairs[p.ID] = &cp
}

// Pair returns the config for a tradable pair.
func (r *Registry) Pair(id int64) (*Pair, error) {
	p, ok := r.pairs[id]
	if !ok || !p.Tradable {
		return nil, ErrNotAllowed
	}
	return p, nil
}

// PairConfig returns the config regardless of tradability (admin reads).
func (r *Registry) PairConfig(id int64) (*Pair, error) {
	p, ok := r.pairs[id]
	if !ok {
		return nil, ErrUnknownPair
	}
	return p, nil
}

// SetTradable pauses or resumes a single pair.
func (r *Registry) SetTradable(id int64, tradable bool) error {
	p, ok := r.pairs[id]
	if !ok {
		return ErrUnknownPair
	}
	p.Tradable = tradable
	return nil
}

// SetLeverageBounds updates a pair's leverage window.
func (r *Registry) SetLeverageBounds(id, minLev, maxLev int64) error {
	p, ok := r.pairs[id]
	if !ok {
		return ErrUnknownPair
	}
	p.MinLeverage = minLev
	p.MaxLeverage = maxLev
	return nil
}

// SetBaseFundingRate updates a pair's annualized funding rate.
func (r *Registry) SetBaseFundingRate(id, rate int64) error {
	p, ok := r.pairs[id]
	if !ok {
		return ErrUnknownPair
	}
	p.BaseFundingRate = rate
	return nil
}

// SetAllowedMargin allow-lists (or removes) a settlement asset.
func (r *Registry) SetAllowedMargin(asset common.Address, allowed bool) {
	if allowed {
		r.allowedMargin[asset] = true
	} else {
		delete(r.allowedMargin, asset)
	}
}

// CheckMargin fails unless the settlement asset is allow-listed.
func (r *Registry) CheckMargin(asset common.Address) error {
	if !r.allowedMargin[asset] {
		return ErrMarginNotAllowed
	}
	return nil
}

// SetMinPositionSize sets the minimum notional per settlement asset.
func (r *Registry) SetMinPositionSize(asset common.Address, size int64) {
	r.minPosSize[asset] = size
}

func (r *Registry) MinPositionSize(asset common.Address) int64 {
	return r.minPosSize[asset]
}

// AddOI credits open interest for one side of a pair.
func (r *Registry) AddOI(pair int64, asset common.Address, long bool, notional int64) {
	key := oiKey{pair: pair, asset: asset}
	oi, ok := r.oi[key]
	if !ok {
		oi = &openInterest{}
		r.oi[key] = oi
	}
	if long {
		oi.Long += notional
	} else {
		oi.Short += notional
	}
}

// RemoveOI debits open interest, clamped at zero. Rounding drift in partial
// closes must never surface as a spurious fault here.
func (r *Registry) RemoveOI(pair int64, asset common.Address, long bool, notional int64) {
	oi, ok := r.oi[oiKey{pair: pair, asset: asset}]
	if !ok {
		return
	}
	if long {
		oi.Long -= notional
		if oi.Long < 0 {
			oi.Long = 0
		}
	} else {
		oi.Short -= notional
		if oi.Short < 0 {
			oi.Short = 0
		}
	}
}

// OpenInterest returns the (long, short) counters for a pair × asset.
func (r *Registry) OpenInterest(pair int64, asset common.Address) (int64, int64) {
	oi, ok := r.oi[oiKey{pair: pair, asset: asset}]
	if !ok {
		return 0, 0
	}
	return oi.Long, oi.Short
}
