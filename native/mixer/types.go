package mixer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Deposit is the record stored under a commitment hash. A deposit is created
// at most once; Withdrawn is set exactly once and is terminal, Locked toggles
// while the deposit backs an open loan. A commitment with no stored record
// simply does not exist — callers receive nil, never a zero-amount record.
type Deposit struct {
	Token     common.Address `json:"token"`
	Amount    *big.Int       `json:"amount"`
	Withdrawn bool           `json:"withdrawn"`
	Locked    bool           `json:"locked"`
}

// Clone returns a deep copy so callers can safely mutate the copy without
// affecting the stored instance.
func (d *Deposit) Clone() *Deposit {
	if d == nil {
		return nil
	}
	clone := *d
	if d.Amount != nil {
		clone.Amount = new(big.Int).Set(d.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}
