package rpc

import (
	"errors"
	"net/http"

	"mixlend/core"
	"mixlend/native/collateral"
	nativecommon "mixlend/native/common"
	"mixlend/native/lendingpool"
	"mixlend/native/mixer"
)

// Application error codes. Each precondition failure keeps its own code so
// tooling can tell "need more liquidity" from "wrong secret" from "already
// used" without string matching.
const (
	codeBadArgs                = -32040
	codeDuplicateCommitment    = -32041
	codeValueMismatch          = -32042
	codeNotFound               = -32043
	codeAlreadyWithdrawn       = -32044
	codeAlreadyLocked          = -32045
	codeNotLocked              = -32046
	codeNullifierSpent         = -32047
	codeInsufficientLiquidity  = -32048
	codeInsufficientCollateral = -32049
	codePartialRepayment       = -32050
	codeAlreadyRepaid          = -32051
	codeInsufficientBalance    = -32052
	codeModulePaused           = -32053
)

var ledgerErrorCodes = []struct {
	err  error
	code int
}{
	{mixer.ErrDuplicateCommitment, codeDuplicateCommitment},
	{mixer.ErrValueMismatch, codeValueMismatch},
	{mixer.ErrAlreadyWithdrawn, codeAlreadyWithdrawn},
	{mixer.ErrAlreadyLocked, codeAlreadyLocked},
	{mixer.ErrNotLocked, codeNotLocked},
	{mixer.ErrNullifierSpent, codeNullifierSpent},
	{mixer.ErrNotFound, codeNotFound},
	{mixer.ErrInsufficientBalance, codeInsufficientBalance},
	{mixer.ErrBadArgs, codeBadArgs},
	{lendingpool.ErrInsufficientLiquidity, codeInsufficientLiquidity},
	{lendingpool.ErrPartialRepayment, codePartialRepayment},
	{lendingpool.ErrAlreadyRepaid, codeAlreadyRepaid},
	{lendingpool.ErrNotFound, codeNotFound},
	{lendingpool.ErrInsufficientBalance, codeInsufficientBalance},
	{lendingpool.ErrBadArgs, codeBadArgs},
	{collateral.ErrInsufficientCollateral, codeInsufficientCollateral},
	{collateral.ErrNotFound, codeNotFound},
	{collateral.ErrBadArgs, codeBadArgs},
	{core.ErrBadArgs, codeBadArgs},
	{nativecommon.ErrModulePaused, codeModulePaused},
}

// writeLedgerError maps a ledger error onto its application code. Unknown
// errors surface as a generic server error.
func writeLedgerError(w http.ResponseWriter, id interface{}, err error) {
	for _, entry := range ledgerErrorCodes {
		if errors.Is(err, entry.err) {
			writeError(w, http.StatusBadRequest, id, entry.code, err.Error(), nil)
			return
		}
	}
	writeError(w, http.StatusInternalServerError, id, codeServerError, err.Error(), nil)
}
