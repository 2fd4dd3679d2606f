package oracle

import (
	"crypto/ecdsa"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// PriceData is a signed price attestation from an oracle node.
// Prices carry PriceConfig scale, the spread RateConfig scale.
type PriceData struct {
	Provider  common.Address
	IsClosed  bool
	PairID    int64
	Price     int64
	Spread    int64
	Timestamp int64 // unix seconds at signing
}

// Hash returns the Keccak-256 digest of the canonical attestation encoding.
// The encoding is fixed-width so two attestations collide only if every
// field matches.
func (p PriceData) Hash() []byte {
	buf := make([]byte, 0, 20+1+8*4)
	buf = append(buf, p.Provider.Bytes()...)

	if p.IsClosed {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	buf = binary.BigEndian.AppendUint64(buf, uint64(p.PairID))
	buf = binary.BigEndian.AppendUint64(buf, uint64(p.Price))
	buf = binary.BigEndian.AppendUint64(buf, uint64(p.Spread))
	buf = binary.BigEndian.AppendUint64(buf, uint64(p.Timestamp))

	return ethcrypto.Keccak256(buf)
}

// Sign produces a detached secp256k1 signature over the attestation hash.
// Used by node tooling and tests; the engine only ever verifies.
func Sign(p PriceData, key *ecdsa.PrivateKey) ([]byte, error) {
	return ethcrypto.Sign(p.Hash(), key)
}

// RecoverSigner recovers the address that signed the attestation.
func RecoverSigner(p PriceData, sig []byte) (common.Address, error) {
	pub, err := ethcrypto.SigToPub(p.Hash(), sig)
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
