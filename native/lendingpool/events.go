package lendingpool

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"mixlend/core/types"
	mixcrypto "mixlend/crypto"
)

const (
	EventTypeFunded   = "lending.funded"
	EventTypeBorrowed = "lending.borrowed"
	EventTypeRepaid   = "lending.repaid"
)

// NewFundedEvent returns the canonical payload for a reserve top-up.
func NewFundedEvent(from common.Address, token common.Address, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"from":  from.Hex(),
		"token": token.Hex(),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypeFunded, Attributes: attrs}
}

// NewBorrowedEvent returns the canonical payload for a loan disbursement.
func NewBorrowedEvent(loan *Loan) *types.Event {
	return newLoanEvent(EventTypeBorrowed, loan)
}

// NewRepaidEvent returns the canonical payload for a settled loan.
func NewRepaidEvent(loan *Loan) *types.Event {
	return newLoanEvent(EventTypeRepaid, loan)
}

func newLoanEvent(eventType string, loan *Loan) *types.Event {
	attrs := map[string]string{}
	if loan != nil {
		attrs["loanId"] = strconv.FormatUint(loan.ID, 10)
		attrs["borrower"] = loan.Borrower.Hex()
		attrs["token"] = loan.Token.Hex()
		attrs["collateral"] = mixcrypto.FormatHash32(loan.Collateral)
		if loan.Amount != nil {
			attrs["amount"] = loan.Amount.String()
		}
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
