package pricing

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"mixlend/native/tokens"
)

// ErrNoQuote is returned when an oracle has no price for a token.
var ErrNoQuote = errors.New("pricing: no quote for token")

// Oracle quotes the value of one whole token in 1e18-scaled quote units.
// The ledger only ever compares values produced by the same oracle, so the
// quote currency is opaque to it.
type Oracle interface {
	PriceWad(token common.Address) (*big.Int, error)
}

// StaticOracle serves the flat demo quotes carried in the token registry.
// A production deployment would swap in a feed-backed implementation; the
// ledger holds only this interface.
type StaticOracle struct {
	registry *tokens.Registry
}

// NewStaticOracle wraps a token registry as an Oracle.
func NewStaticOracle(registry *tokens.Registry) *StaticOracle {
	return &StaticOracle{registry: registry}
}

// PriceWad returns the registry quote for the token.
func (o *StaticOracle) PriceWad(token common.Address) (*big.Int, error) {
	if o == nil || o.registry == nil {
		return nil, ErrNoQuote
	}
	tok, ok := o.registry.ByAddress(token)
	if !ok || tok.PriceWad == nil || tok.PriceWad.Sign() <= 0 {
		return nil, ErrNoQuote
	}
	return new(big.Int).Set(tok.PriceWad), nil
}

// ValueWad converts an integer token amount into a 1e18-scaled value using
// the oracle quote: amount * price / 10^decimals.
func ValueWad(oracle Oracle, tok tokens.Token, amount *big.Int) (*big.Int, error) {
	if oracle == nil {
		return nil, ErrNoQuote
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, errors.New("pricing: amount must be non-negative")
	}
	price, err := oracle.PriceWad(tok.Address)
	if err != nil {
		return nil, err
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(tok.Decimals)), nil)
	value := new(big.Int).Mul(amount, price)
	return value.Quo(value, scale), nil
}
