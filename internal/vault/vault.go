package vault

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotAllowedInVault = errors.New("asset not listed in vault")
	ErrInsufficient      = errors.New("insufficient balance")
)

// Vault converts deposited collateral to and from the internal settlement
// asset. Custody mechanics live behind this interface; the engine verifies
// every reported credit against its own balance delta and never trusts a
// vault implementation blindly.
type Vault interface {
	// Asset is the settlement asset this vault mints.
	Asset() common.Address

	// Deposit converts amount of token from payer into settlement units
	// credited to the engine, returning the credited amount.
	Deposit(token common.Address, amount int64, payer common.Address) (int64, error)

	// Withdraw converts settlement units back into token paid to payee.
	Withdraw(token common.Address, amount int64, payee common.Address) error
}

type balanceKey struct {
	asset  common.Address
	holder common.Address
}

// Book is the in-process collateral ledger: per-asset, per-holder int64
// balances. One book is shared by the engine and its vaults so a deposit's
// effect is observable as a balance delta.
type Book struct {
	balances map[balanceKey]int64
}

func NewBook() *Book {
	return &Book{balances: make(map[balanceKey]int64)}
}

func (b *Book) Balance(asset, holder common.Address) int64 {
	return b.balances[balanceKey{asset: asset, holder: holder}]
}

func (b *Book) Credit(asset, holder common.Address, amount int64) {
	b.balances[balanceKey{asset: asset, holder: holder}] += amount
}

func (b *Book) Debit(asset, holder common.Address, amount int64) error {
	key := balanceKey{asset: asset, holder: holder}
	if b.balances[key] < amount {
		return ErrInsufficient
	}
	b.balances[key] -= amount
	return nil
}

// Transfer moves settlement units between holders.
func (b *Book) Transfer(asset, from, to common.Address, amount int64) error {
	if err := b.Debit(asset, from, amount); err != nil {
		return err
	}
	b.Credit(asset, to, amount)
	return nil
}

// Burn destroys settlement units held by a holder (burn fee share).
func (b *Book) Burn(asset, holder common.Address, amount int64) error {
	return b.Debit(asset, holder, amount)
}

// SettlementVault is the standard vault: listed collateral tokens convert
// 1:1 into the settlement asset credited to the engine's book account.
type SettlementVault struct {
	asset  common.Address
	engine common.Address
	listed map[common.Address]bool
	book   *Book
}

func NewSettlementVault(asset, engine common.Address, book *Book) *SettlementVault {
	return &SettlementVault{
		asset:  asset,
		engine: engine,
		listed: make(map[common.Address]bool),
		book:   book,
	}
}

func (v *SettlementVault) Asset() common.Address {
	return v.asset
}

// ListToken allows a collateral token for deposit/withdrawal.
func (v *SettlementVault) ListToken(token common.Address) {
	v.listed[token] = true
}

// DelistToken removes a collateral token.
func (v *SettlementVault) DelistToken(token common.Address) {
	delete(v.listed, token)
}

func (v *SettlementVault) IsListed(token common.Address) bool {
	return v.listed[token]
}

func (v *SettlementVault) Deposit(token common.Address, amount int64, payer common.Address) (int64, error) {
	if !v.listed[token] {
		return 0, ErrNotAllowedInVault
	}
	v.book.Credit(v.asset, v.engine, amount)
	return amount, nil
}

func (v *SettlementVault) Withdraw(token common.Address, amount int64, payee common.Address) error {
	if !v.listed[token] {
		return ErrNotAllowedInVault
	}
	if err := v.book.Debit(v.asset, v.engine, amount); err != nil {
		return err
	}
	v.book.Credit(token, payee, amount)
	return nil
}
