package lendingpool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Loan is a single disbursement from the pool, keyed by a monotonically
// increasing identifier. Repaid is set exactly once and is terminal; there is
// no interest accrual, the outstanding amount is the disbursed principal.
type Loan struct {
	ID               uint64         `json:"id"`
	Borrower         common.Address `json:"borrower"`
	Token            common.Address `json:"token"`
	Amount           *big.Int       `json:"amount"`
	Collateral       [32]byte       `json:"collateral"`
	CollateralAmount *big.Int       `json:"collateralAmount"`
	Repaid           bool           `json:"repaid"`
}

// Clone returns a deep copy so callers can safely mutate the copy without
// affecting the stored instance.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Amount != nil {
		clone.Amount = new(big.Int).Set(l.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if l.CollateralAmount != nil {
		clone.CollateralAmount = new(big.Int).Set(l.CollateralAmount)
	} else {
		clone.CollateralAmount = big.NewInt(0)
	}
	return &clone
}
