package oracle

import (
	"errors"

	"MarginSettle/internal/fixedpoint"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrBadSignature       = errors.New("attestation signature invalid")
	ErrUnauthorizedSigner = errors.New("signer is not an enabled oracle node")
	ErrExpiredSignature   = errors.New("attestation signature expired")
	ErrFutureSignature    = errors.New("attestation signed in the future")
	ErrMarketClosed       = errors.New("market closed")
	ErrZeroPrice          = errors.New("attested price is zero")
	ErrWrongPair          = errors.New("attestation pair does not match request")
	ErrReferenceMismatch  = errors.New("attested price outside reference tolerance")
)

// ReferencePriceFeed supplies an external cross-check price for a pair.
// A returned value of zero means the feed is unavailable and the check
// is skipped rather than failed.
type ReferencePriceFeed interface {
	LatestPrice(pairID int64) int64
}

// Verifier validates signed price attestations. It owns the permitted signer
// set, the signature validity window, and the optional reference-feed
// cross-check. Validation is pure: no state changes on any path.
type Verifier struct {
	nodes            map[common.Address]bool
	validWindow      int64 // seconds
	referenceFeed    ReferencePriceFeed
	referenceEnabled bool
	referenceBand    int64 // rate scale, tolerance around the reference price
}

const defaultValidWindow = 120

// DefaultReferenceBand allows ±2% around the reference price.
const DefaultReferenceBand = 2 * fixedpoint.OnePercent

func NewVerifier() *Verifier {
	return &Verifier{
		nodes:         make(map[common.Address]bool),
		validWindow:   defaultValidWindow,
		referenceBand: DefaultReferenceBand,
	}
}

// SetNode enables or disables an oracle node address.
func (v *Verifier) SetNode(node common.Address, enabled bool) {
	if enabled {
		v.nodes[node] = true
	} else {
		delete(v.nodes, node)
	}
}

// IsNode reports whether the address is an enabled oracle node.
func (v *Verifier) IsNode(node common.Address) bool {
	return v.nodes[node]
}

// SetValidWindow sets the attestation validity window in seconds.
func (v *Verifier) SetValidWindow(seconds int64) {
	v.validWindow = seconds
}

func (v *Verifier) ValidWindow() int64 {
	return v.validWindow
}

// SetReferenceFeed installs (or clears, with nil) the reference price feed.
func (v *Verifier) SetReferenceFeed(feed ReferencePriceFeed) {
	v.referenceFeed = feed
}

// SetReferenceEnabled toggles the reference cross-check.
func (v *Verifier) SetReferenceEnabled(enabled bool) {
	v.referenceEnabled = enabled
}

func (v *Verifier) ReferenceEnabled() bool {
	return v.referenceEnabled
}

// SetReferenceBand sets the tolerance band (rate scale) around the reference.
func (v *Verifier) SetReferenceBand(band int64) {
	v.referenceBand = band
}

// Verify validates an attestation against the given pair and wall-clock time
// and returns the attested price and spread. All failures are synchronous
// and leave no state behind.
func (v *Verifier) Verify(data PriceData, sig []byte, pairID int64, now int64) (price, spread int64, err error) {
	signer, recErr := RecoverSigner(data, sig)
	if recErr != nil || signer != data.Provider {
		return 0, 0, ErrBadSignature
	}

	if !v.nodes[signer] {
		return 0, 0, ErrUnauthorizedSigner
	}

	if data.Timestamp > now {
		return 0, 0, ErrFutureSignature
	}
	if now-data.Timestamp > v.validWindow {
		return 0, 0, ErrExpiredSignature
	}

	if data.PairID != pairID {
		return 0, 0, ErrWrongPair
	}
	if data.IsClosed {
		return 0, 0, ErrMarketClosed
	}
	if data.Price == 0 {
		return 0, 0, ErrZeroPrice
	}

	if v.referenceEnabled && v.referenceFeed != nil {
		ref := v.referenceFeed.LatestPrice(pairID)
		// Zero reference = feed unavailable, skip rather than fail
		if ref != 0 {
			band := fixedpoint.MulDivRate(ref, v.referenceBand)
			if data.Price < ref-band || data.Price > ref+band {
				return 0, 0, ErrReferenceMismatch
			}
		}
	}

	return data.Price, data.Spread, nil
}
