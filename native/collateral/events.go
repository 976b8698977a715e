package collateral

import (
	"strconv"

	"mixlend/core/types"
	mixcrypto "mixlend/crypto"
)

const (
	EventTypeLocked   = "collateral.locked"
	EventTypeUnlocked = "collateral.unlocked"
)

// NewLockedEvent returns the canonical payload emitted when a commitment is
// locked behind a loan.
func NewLockedEvent(lock *Lock) *types.Event { return newLockEvent(EventTypeLocked, lock) }

// NewUnlockedEvent returns the canonical payload emitted when a commitment is
// released.
func NewUnlockedEvent(lock *Lock) *types.Event { return newLockEvent(EventTypeUnlocked, lock) }

func newLockEvent(eventType string, lock *Lock) *types.Event {
	attrs := map[string]string{}
	if lock != nil {
		attrs["commitment"] = mixcrypto.FormatHash32(lock.Commitment)
		attrs["loanId"] = strconv.FormatUint(lock.LoanID, 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
