package lendingpool

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"mixlend/core/types"
	nativecommon "mixlend/native/common"
	"mixlend/native/tokens"
)

var (
	errNilState = errors.New("lendingpool engine: state not configured")

	// ErrBadArgs covers zero addresses, zero amounts and unrecognized tokens.
	ErrBadArgs = errors.New("lendingpool engine: bad args")
	// ErrInsufficientLiquidity rejects a disbursement the reserve cannot cover.
	ErrInsufficientLiquidity = errors.New("lendingpool engine: no liquidity")
	// ErrNotFound signals an unknown loan id.
	ErrNotFound = errors.New("lendingpool engine: unknown loan")
	// ErrAlreadyRepaid rejects a repayment against a settled loan.
	ErrAlreadyRepaid = errors.New("lendingpool engine: loan already repaid")
	// ErrPartialRepayment rejects repayments below the outstanding amount;
	// partial repayment is not modeled.
	ErrPartialRepayment = errors.New("lendingpool engine: partial repayment not supported")
	// ErrInsufficientBalance rejects funding or repayment the caller cannot cover.
	ErrInsufficientBalance = errors.New("lendingpool engine: insufficient balance")
)

const moduleName = "lendingpool"

type engineState interface {
	GetLoan(id uint64) (*Loan, error)
	PutLoan(loan *Loan) error
	LoanCounter() (uint64, error)
	SetLoanCounter(id uint64) error
	GetAccount(addr common.Address) (*types.Account, error)
	PutAccount(addr common.Address, acc *types.Account) error
}

// Engine implements the loan book: per-token reserves held under the pool
// vault, per-loan records and the monotonic loan counter.
type Engine struct {
	state    engineState
	vault    common.Address
	registry *tokens.Registry
	pauses   nativecommon.PauseView
}

// NewEngine constructs a loan book holding pooled liquidity under vault.
func NewEngine(vault common.Address, registry *tokens.Registry) *Engine {
	return &Engine{vault: vault, registry: registry}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Vault returns the pool custody address.
func (e *Engine) Vault() common.Address { return e.vault }

// Fund pulls amount of token from the supplier into the pool reserve.
func (e *Engine) Fund(from common.Address, token common.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if from == (common.Address{}) || amount == nil || amount.Sign() <= 0 {
		return ErrBadArgs
	}
	if !e.registry.Recognized(token) {
		return ErrBadArgs
	}
	return e.transfer(from, e.vault, token, amount)
}

// Reserve reports the pool's disbursable balance for token.
func (e *Engine) Reserve(token common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	vaultAcc, err := e.loadAccount(e.vault)
	if err != nil {
		return nil, err
	}
	return vaultAcc.Balance(token), nil
}

// BorrowFor disburses pooled liquidity to the borrower and records the loan.
// Only the collateral manager calls this; it has already validated and locked
// the referenced collateral.
func (e *Engine) BorrowFor(borrower common.Address, token common.Address, amount *big.Int, collateral [32]byte, collateralAmount *big.Int) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if borrower == (common.Address{}) || amount == nil || amount.Sign() <= 0 {
		return nil, ErrBadArgs
	}
	if !e.registry.Recognized(token) {
		return nil, ErrBadArgs
	}

	reserve, err := e.Reserve(token)
	if err != nil {
		return nil, err
	}
	if reserve.Cmp(amount) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	if err := e.transfer(e.vault, borrower, token, amount); err != nil {
		return nil, err
	}

	counter, err := e.state.LoanCounter()
	if err != nil {
		return nil, err
	}
	loan := &Loan{
		ID:               counter + 1,
		Borrower:         borrower,
		Token:            token,
		Amount:           new(big.Int).Set(amount),
		Collateral:       collateral,
		CollateralAmount: new(big.Int).Set(collateralAmount),
	}
	if err := e.state.PutLoan(loan); err != nil {
		return nil, err
	}
	if err := e.state.SetLoanCounter(loan.ID); err != nil {
		return nil, err
	}
	return loan.Clone(), nil
}

// Repay settles a loan in full, pulling the outstanding principal from the
// payer back into the reserve. Amounts below the outstanding principal are
// rejected; anything above it is ignored and only the principal moves.
func (e *Engine) Repay(from common.Address, loanID uint64, amount *big.Int) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if from == (common.Address{}) || amount == nil || amount.Sign() <= 0 {
		return nil, ErrBadArgs
	}

	loan, err := e.state.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, ErrNotFound
	}
	if loan.Repaid {
		return nil, ErrAlreadyRepaid
	}
	if amount.Cmp(loan.Amount) < 0 {
		return nil, ErrPartialRepayment
	}

	if err := e.transfer(from, e.vault, loan.Token, loan.Amount); err != nil {
		return nil, err
	}

	updated := loan.Clone()
	updated.Repaid = true
	if err := e.state.PutLoan(updated); err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Loan returns the stored record for a loan id, or nil when none exists.
func (e *Engine) Loan(loanID uint64) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	loan, err := e.state.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	return loan.Clone(), nil
}

// LoanCounter returns the last assigned loan id.
func (e *Engine) LoanCounter() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.LoanCounter()
}

func (e *Engine) transfer(from, to common.Address, token common.Address, amount *big.Int) error {
	fromAcc, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance(token).Cmp(amount) < 0 {
		if from == e.vault {
			return ErrInsufficientLiquidity
		}
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toAcc, err := e.loadAccount(to)
	if err != nil {
		return err
	}

	fromAcc.SetBalance(token, new(big.Int).Sub(fromAcc.Balance(token), amount))
	toAcc.SetBalance(token, new(big.Int).Add(toAcc.Balance(token), amount))

	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

func (e *Engine) loadAccount(addr common.Address) (*types.Account, error) {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = types.NewAccount()
	}
	return acc, nil
}
