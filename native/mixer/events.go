package mixer

import (
	"github.com/ethereum/go-ethereum/common"

	"mixlend/core/types"
	mixcrypto "mixlend/crypto"
)

const (
	EventTypeDeposited = "mixer.deposited"
	EventTypeWithdrawn = "mixer.withdrawn"
	EventTypeLocked    = "mixer.locked"
	EventTypeUnlocked  = "mixer.unlocked"
)

// NewDepositedEvent returns the canonical payload for a recorded deposit.
func NewDepositedEvent(commitment [32]byte, dep *Deposit) *types.Event {
	return newDepositEvent(EventTypeDeposited, commitment, dep, nil)
}

// NewWithdrawnEvent returns the canonical payload for a completed withdrawal.
func NewWithdrawnEvent(commitment [32]byte, dep *Deposit, recipient common.Address) *types.Event {
	return newDepositEvent(EventTypeWithdrawn, commitment, dep, &recipient)
}

// NewLockedEvent returns the canonical payload emitted when a deposit is
// locked as collateral.
func NewLockedEvent(commitment [32]byte, dep *Deposit) *types.Event {
	return newDepositEvent(EventTypeLocked, commitment, dep, nil)
}

// NewUnlockedEvent returns the canonical payload emitted when collateral is
// released.
func NewUnlockedEvent(commitment [32]byte, dep *Deposit) *types.Event {
	return newDepositEvent(EventTypeUnlocked, commitment, dep, nil)
}

func newDepositEvent(eventType string, commitment [32]byte, dep *Deposit, recipient *common.Address) *types.Event {
	attrs := map[string]string{
		"commitment": mixcrypto.FormatHash32(commitment),
	}
	if dep != nil {
		attrs["token"] = dep.Token.Hex()
		if dep.Amount != nil {
			attrs["amount"] = dep.Amount.String()
		}
	}
	if recipient != nil {
		attrs["recipient"] = recipient.Hex()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
