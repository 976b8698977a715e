package mixer

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"mixlend/core/types"
	mixcrypto "mixlend/crypto"
	nativecommon "mixlend/native/common"
	"mixlend/native/tokens"
)

var (
	errNilState = errors.New("mixer engine: state not configured")

	// ErrBadArgs covers zero addresses, zero amounts and malformed hashes.
	ErrBadArgs = errors.New("mixer engine: bad args")
	// ErrDuplicateCommitment rejects a deposit under an existing commitment.
	ErrDuplicateCommitment = errors.New("mixer engine: commitment already exists")
	// ErrValueMismatch rejects a deposit whose attached payment does not
	// match the declared amount.
	ErrValueMismatch = errors.New("mixer engine: payment does not match amount")
	// ErrNotFound signals that no deposit exists for the commitment.
	ErrNotFound = errors.New("mixer engine: unknown commitment")
	// ErrAlreadyWithdrawn rejects operations on a spent deposit.
	ErrAlreadyWithdrawn = errors.New("mixer engine: deposit already withdrawn")
	// ErrAlreadyLocked rejects operations on a deposit locked as collateral.
	ErrAlreadyLocked = errors.New("mixer engine: deposit locked as collateral")
	// ErrNotLocked rejects an unlock of a deposit that is not locked.
	ErrNotLocked = errors.New("mixer engine: deposit not locked")
	// ErrNullifierSpent rejects a replayed withdrawal.
	ErrNullifierSpent = errors.New("mixer engine: nullifier already spent")
	// ErrInsufficientBalance rejects a deposit the sender cannot cover.
	ErrInsufficientBalance = errors.New("mixer engine: insufficient balance")
)

const moduleName = "mixer"

type engineState interface {
	GetDeposit(commitment [32]byte) (*Deposit, error)
	PutDeposit(commitment [32]byte, dep *Deposit) error
	HasNullifier(nullifier [32]byte) (bool, error)
	PutNullifier(nullifier [32]byte) error
	GetAccount(addr common.Address) (*types.Account, error)
	PutAccount(addr common.Address, acc *types.Account) error
}

// Engine implements the commitment ledger: deposits keyed by commitment
// hash, a replay-preventing nullifier set, and custody of deposited value
// under the vault address.
type Engine struct {
	state    engineState
	vault    common.Address
	registry *tokens.Registry
	pauses   nativecommon.PauseView
}

// NewEngine constructs a mixer engine holding custody under vault.
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

// Vault returns the custody address deposits are held under.
func (e *Engine) Vault() common.Address { return e.vault }

// Deposit records a deposit of amount under commitment, pulling the value
// from the sender. For the native asset the attached payment must equal the
// amount; for fungible tokens no payment may be attached and the sender's
// token balance is debited instead.
func (e *Engine) Deposit(from common.Address, commitment [32]byte, token common.Address, amount, payment *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if from == (common.Address{}) || commitment == ([32]byte{}) {
		return ErrBadArgs
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrBadArgs
	}
	if !e.registry.Recognized(token) {
		return ErrBadArgs
	}

	existing, err := e.state.GetDeposit(commitment)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateCommitment
	}

	if token == tokens.NativeAsset {
		if payment == nil || payment.Cmp(amount) != 0 {
			return ErrValueMismatch
		}
	} else if payment != nil && payment.Sign() != 0 {
		return ErrValueMismatch
	}

	if err := e.transfer(from, e.vault, token, amount); err != nil {
		return err
	}

	return e.state.PutDeposit(commitment, &Deposit{
		Token:  token,
		Amount: new(big.Int).Set(amount),
	})
}

// GetDeposit returns the stored record for a commitment, or nil when none
// exists.
func (e *Engine) GetDeposit(commitment [32]byte) (*Deposit, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	dep, err := e.state.GetDeposit(commitment)
	if err != nil {
		return nil, err
	}
	return dep.Clone(), nil
}

// Withdraw reveals the secret pair behind a commitment and pays the deposit
// out to recipient, which need not be the original depositor. The nullifier
// is recorded so the same pair can never be revealed twice.
func (e *Engine) Withdraw(recipient common.Address, nullifier, secret [32]byte) (*Deposit, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if recipient == (common.Address{}) {
		return nil, ErrBadArgs
	}

	commitment := mixcrypto.Commitment(nullifier, secret)
	dep, err := e.state.GetDeposit(commitment)
	if err != nil {
		return nil, err
	}
	if dep == nil {
		return nil, ErrNotFound
	}
	if dep.Withdrawn {
		return nil, ErrAlreadyWithdrawn
	}
	if dep.Locked {
		return nil, ErrAlreadyLocked
	}
	spent, err := e.state.HasNullifier(nullifier)
	if err != nil {
		return nil, err
	}
	if spent {
		return nil, ErrNullifierSpent
	}

	if err := e.state.PutNullifier(nullifier); err != nil {
		return nil, err
	}
	if err := e.transfer(e.vault, recipient, dep.Token, dep.Amount); err != nil {
		return nil, err
	}

	updated := dep.Clone()
	updated.Withdrawn = true
	if err := e.state.PutDeposit(commitment, updated); err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Lock flags a deposit as loan collateral. Only the collateral manager calls
// this; the deposit must exist and be neither withdrawn nor already locked.
func (e *Engine) Lock(commitment [32]byte) (*Deposit, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	dep, err := e.state.GetDeposit(commitment)
	if err != nil {
		return nil, err
	}
	if dep == nil {
		return nil, ErrNotFound
	}
	if dep.Withdrawn {
		return nil, ErrAlreadyWithdrawn
	}
	if dep.Locked {
		return nil, ErrAlreadyLocked
	}
	updated := dep.Clone()
	updated.Locked = true
	if err := e.state.PutDeposit(commitment, updated); err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Unlock clears the collateral flag after the backing loan is repaid.
func (e *Engine) Unlock(commitment [32]byte) (*Deposit, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	dep, err := e.state.GetDeposit(commitment)
	if err != nil {
		return nil, err
	}
	if dep == nil {
		return nil, ErrNotFound
	}
	if !dep.Locked {
		return nil, ErrNotLocked
	}
	updated := dep.Clone()
	updated.Locked = false
	if err := e.state.PutDeposit(commitment, updated); err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

func (e *Engine) transfer(from, to common.Address, token common.Address, amount *big.Int) error {
	fromAcc, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance(token).Cmp(amount) < 0 {
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
