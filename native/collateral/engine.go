package collateral

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "mixlend/native/common"
	"mixlend/native/lendingpool"
	"mixlend/native/mixer"
	"mixlend/native/pricing"
	"mixlend/native/tokens"
)

var (
	errNilState   = errors.New("collateral engine: state not configured")
	errNilLedgers = errors.New("collateral engine: ledgers not configured")

	// ErrBadArgs covers zero addresses, zero amounts and unrecognized tokens.
	ErrBadArgs = errors.New("collateral engine: bad args")
	// ErrNotFound signals a missing commitment or an absent active lock.
	ErrNotFound = errors.New("collateral engine: no active lock for commitment")
	// ErrInsufficientCollateral rejects a borrow above the LTV-derived limit.
	ErrInsufficientCollateral = errors.New("collateral engine: borrow exceeds collateral limit")
)

const moduleName = "collateral"

var basisPoints = big.NewInt(10_000)

type engineState interface {
	GetLock(commitment [32]byte) (*Lock, error)
	PutLock(lock *Lock) error
}

// depositLedger is the slice of the mixer engine the lock manager drives.
type depositLedger interface {
	GetDeposit(commitment [32]byte) (*mixer.Deposit, error)
	Lock(commitment [32]byte) (*mixer.Deposit, error)
	Unlock(commitment [32]byte) (*mixer.Deposit, error)
}

// loanBook is the slice of the lending pool the lock manager drives.
type loanBook interface {
	BorrowFor(borrower common.Address, token common.Address, amount *big.Int, collateral [32]byte, collateralAmount *big.Int) (*lendingpool.Loan, error)
	Repay(from common.Address, loanID uint64, amount *big.Int) (*lendingpool.Loan, error)
}

// Engine orchestrates borrowing against mixer deposits: it locks the deposit,
// enforces the loan-to-value ceiling and instructs the loan book, keeping the
// cross-reference between commitment and loan.
type Engine struct {
	state    engineState
	deposits depositLedger
	loans    loanBook
	registry *tokens.Registry
	oracle   pricing.Oracle
	params   RiskParameters
	pauses   nativecommon.PauseView
}

// NewEngine constructs a collateral manager over the given ledgers.
func NewEngine(deposits depositLedger, loans loanBook, registry *tokens.Registry, oracle pricing.Oracle, params RiskParameters) *Engine {
	return &Engine{
		deposits: deposits,
		loans:    loans,
		registry: registry,
		oracle:   oracle,
		params:   params,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Params returns the configured risk parameters.
func (e *Engine) Params() RiskParameters { return e.params }

// LockAndBorrow locks the deposit behind commitment as collateral and
// disburses borrowAmount of borrowToken from the pool. The requested borrow
// value must not exceed the deposit's value times the LTV ceiling; exactly at
// the limit succeeds.
func (e *Engine) LockAndBorrow(borrower common.Address, commitment [32]byte, borrowToken common.Address, borrowAmount *big.Int) (*lendingpool.Loan, *mixer.Deposit, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if e.deposits == nil || e.loans == nil {
		return nil, nil, errNilLedgers
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	if borrower == (common.Address{}) || commitment == ([32]byte{}) {
		return nil, nil, ErrBadArgs
	}
	if borrowAmount == nil || borrowAmount.Sign() <= 0 {
		return nil, nil, ErrBadArgs
	}
	if !e.registry.Recognized(borrowToken) {
		return nil, nil, ErrBadArgs
	}

	dep, err := e.deposits.GetDeposit(commitment)
	if err != nil {
		return nil, nil, err
	}
	if dep == nil {
		return nil, nil, mixer.ErrNotFound
	}
	if dep.Withdrawn {
		return nil, nil, mixer.ErrAlreadyWithdrawn
	}
	if dep.Locked {
		return nil, nil, mixer.ErrAlreadyLocked
	}
	if existing, err := e.state.GetLock(commitment); err != nil {
		return nil, nil, err
	} else if existing != nil && existing.Active {
		return nil, nil, mixer.ErrAlreadyLocked
	}

	if err := e.checkLTV(dep, borrowToken, borrowAmount); err != nil {
		return nil, nil, err
	}

	locked, err := e.deposits.Lock(commitment)
	if err != nil {
		return nil, nil, err
	}
	loan, err := e.loans.BorrowFor(borrower, borrowToken, borrowAmount, commitment, dep.Amount)
	if err != nil {
		return nil, nil, err
	}
	if err := e.state.PutLock(&Lock{Commitment: commitment, LoanID: loan.ID, Active: true}); err != nil {
		return nil, nil, err
	}
	return loan, locked, nil
}

// RepayAndUnlock settles the loan backing the commitment in full and releases
// the deposit. Partial repayment is not modeled: the amount must cover the
// outstanding principal.
func (e *Engine) RepayAndUnlock(from common.Address, commitment [32]byte, repayAmount *big.Int) (*lendingpool.Loan, *mixer.Deposit, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if e.deposits == nil || e.loans == nil {
		return nil, nil, errNilLedgers
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	if from == (common.Address{}) || repayAmount == nil || repayAmount.Sign() <= 0 {
		return nil, nil, ErrBadArgs
	}

	lock, err := e.state.GetLock(commitment)
	if err != nil {
		return nil, nil, err
	}
	if lock == nil || !lock.Active {
		return nil, nil, ErrNotFound
	}

	loan, err := e.loans.Repay(from, lock.LoanID, repayAmount)
	if err != nil {
		return nil, nil, err
	}
	unlocked, err := e.deposits.Unlock(commitment)
	if err != nil {
		return nil, nil, err
	}

	released := lock.Clone()
	released.Active = false
	if err := e.state.PutLock(released); err != nil {
		return nil, nil, err
	}
	return loan, unlocked, nil
}

// ActiveLock returns the lock record for a commitment, or nil when none
// exists.
func (e *Engine) ActiveLock(commitment [32]byte) (*Lock, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	lock, err := e.state.GetLock(commitment)
	if err != nil {
		return nil, err
	}
	return lock.Clone(), nil
}

// MaxBorrow computes the largest amount of borrowToken the deposit can back
// under the LTV ceiling.
func (e *Engine) MaxBorrow(dep *mixer.Deposit, borrowToken common.Address) (*big.Int, error) {
	if dep == nil {
		return nil, mixer.ErrNotFound
	}
	collateralTok, ok := e.registry.ByAddress(dep.Token)
	if !ok {
		return nil, ErrBadArgs
	}
	borrowTok, ok := e.registry.ByAddress(borrowToken)
	if !ok {
		return nil, ErrBadArgs
	}
	collateralValue, err := pricing.ValueWad(e.oracle, collateralTok, dep.Amount)
	if err != nil {
		return nil, err
	}

	// limitValue = collateralValue * maxLTV / 10000, then back into borrow
	// token units: amount = limitValue * 10^decimals / price.
	limit := new(big.Int).Mul(collateralValue, new(big.Int).SetUint64(e.params.MaxLTVBps))
	limit.Quo(limit, basisPoints)
	price, err := e.oracle.PriceWad(borrowTok.Address)
	if err != nil {
		return nil, err
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(borrowTok.Decimals)), nil)
	limit.Mul(limit, scale)
	return limit.Quo(limit, price), nil
}

func (e *Engine) checkLTV(dep *mixer.Deposit, borrowToken common.Address, borrowAmount *big.Int) error {
	collateralTok, ok := e.registry.ByAddress(dep.Token)
	if !ok {
		return ErrBadArgs
	}
	borrowTok, ok := e.registry.ByAddress(borrowToken)
	if !ok {
		return ErrBadArgs
	}
	collateralValue, err := pricing.ValueWad(e.oracle, collateralTok, dep.Amount)
	if err != nil {
		return err
	}
	borrowValue, err := pricing.ValueWad(e.oracle, borrowTok, borrowAmount)
	if err != nil {
		return err
	}

	// borrowValue * 10000 <= collateralValue * maxLTVBps
	lhs := new(big.Int).Mul(borrowValue, basisPoints)
	rhs := new(big.Int).Mul(collateralValue, new(big.Int).SetUint64(e.params.MaxLTVBps))
	if lhs.Cmp(rhs) > 0 {
		return ErrInsufficientCollateral
	}
	return nil
}
