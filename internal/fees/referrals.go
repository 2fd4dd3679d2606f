package fees

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrCodeTaken   = errors.New("referral code already exists")
	ErrUnknownCode = errors.New("referral code does not exist")
)

// Referrals maps opaque codes to their owners and tracks the lifetime
// referrer lock per trader. A trader's binding is set by the first trade that
// references a live code and never changes afterwards.
type Referrals struct {
	codes  map[common.Hash]common.Address
	locked map[common.Address]common.Address
}

func NewReferrals() *Referrals {
	return &Referrals{
		codes:  make(map[common.Hash]common.Address),
		locked: make(map[common.Address]common.Address),
	}
}

// CreateCode registers a code for an owner. Codes are create-once.
func (r *Referrals) CreateCode(owner common.Address, code common.Hash) error {
	if code == (common.Hash{}) {
		return ErrUnknownCode
	}
	if _, taken := r.codes[code]; taken {
		return ErrCodeTaken
	}
	r.codes[code] = owner
	return nil
}

// CodeOwner resolves a code, zero address if it doesn't exist.
func (r *Referrals) CodeOwner(code common.Hash) common.Address {
	return r.codes[code]
}

// Referrer returns the trader's locked referrer, zero address if unbound.
func (r *Referrals) Referrer(trader common.Address) common.Address {
	return r.locked[trader]
}

// Bind resolves the supplied code and locks the trader to its owner on first
// use. An already-locked trader keeps the original referrer no matter what
// code the trade carries; unknown or empty codes bind nothing. Self-referral
// is ignored. Returns the effective referrer for this trade.
func (r *Referrals) Bind(trader common.Address, code common.Hash) common.Address {
	if ref, ok := r.locked[trader]; ok {
		return ref
	}

	if code == (common.Hash{}) {
		return common.Address{}
	}
	owner, ok := r.codes[code]
	if !ok || owner == trader {
		return common.Address{}
	}

	r.locked[trader] = owner
	return owner
}
