package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Account holds the fungible balances for one address, keyed by token
// address. The zero token address is the native asset. Module vaults (mixer
// custody, lending pool) are ordinary accounts under well-known addresses so
// every unit in the system is visible on this ledger.
type Account struct {
	Balances map[common.Address]*big.Int `json:"balances"`
}

// NewAccount returns an account with an initialised balance map.
func NewAccount() *Account {
	return &Account{Balances: make(map[common.Address]*big.Int)}
}

// Balance returns the recorded balance for token, treating absent entries as
// zero. The returned value is never nil.
func (a *Account) Balance(token common.Address) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	if bal, ok := a.Balances[token]; ok && bal != nil {
		return bal
	}
	return big.NewInt(0)
}

// SetBalance records the balance for token, dropping zero entries so account
// encodings stay compact.
func (a *Account) SetBalance(token common.Address, amount *big.Int) {
	if a.Balances == nil {
		a.Balances = make(map[common.Address]*big.Int)
	}
	if amount == nil || amount.Sign() == 0 {
		delete(a.Balances, token)
		return
	}
	a.Balances[token] = new(big.Int).Set(amount)
}

// Clone returns a deep copy so callers can mutate freely before persisting.
func (a *Account) Clone() *Account {
	clone := NewAccount()
	if a == nil {
		return clone
	}
	for token, bal := range a.Balances {
		if bal != nil {
			clone.Balances[token] = new(big.Int).Set(bal)
		}
	}
	return clone
}
