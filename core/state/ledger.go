package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"mixlend/core/types"
	"mixlend/native/collateral"
	"mixlend/native/lendingpool"
	"mixlend/native/mixer"
	"mixlend/storage"
)

// Key prefixes. Every record class gets its own namespace so prefixes can
// never collide.
var (
	prefixAccount   = []byte("acct/")
	prefixDeposit   = []byte("mixer/dep/")
	prefixNullifier = []byte("mixer/null/")
	prefixLoan      = []byte("pool/loan/")
	keyLoanCounter  = []byte("pool/seq")
	prefixLock      = []byte("coll/lock/")
)

// Ledger is the persistent ledger state. All mutation happens through a Tx so
// an operation either commits every write or none of them.
type Ledger struct {
	db storage.Database
}

// NewLedger wraps a key-value backend.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

// Begin opens a buffered transaction over the backend. Reads see the overlay
// first and fall through to the backend; writes stay in the overlay until
// Commit.
func (l *Ledger) Begin() *Tx {
	return &Tx{db: l.db, writes: make(map[string][]byte)}
}

// View opens a read-only transaction. Writes against it still buffer but
// there is no Commit path for callers that only read.
func (l *Ledger) View() *Tx { return l.Begin() }

// Tx is a single all-or-nothing ledger mutation. It satisfies the state
// interfaces of the mixer, lending pool and collateral engines.
type Tx struct {
	db        storage.Database
	writes    map[string][]byte
	committed bool
}

func (tx *Tx) get(key []byte) ([]byte, bool, error) {
	if buffered, ok := tx.writes[string(key)]; ok {
		return buffered, true, nil
	}
	value, err := tx.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (tx *Tx) put(key []byte, value []byte) {
	tx.writes[string(key)] = value
}

// Commit flushes every buffered write to the backend.
func (tx *Tx) Commit() error {
	if tx.committed {
		return errors.New("state: transaction already committed")
	}
	for key, value := range tx.writes {
		if err := tx.db.Put([]byte(key), value); err != nil {
			return fmt.Errorf("state: commit %q: %w", key, err)
		}
	}
	tx.committed = true
	return nil
}

// --- accounts ---

func (tx *Tx) GetAccount(addr common.Address) (*types.Account, error) {
	raw, ok, err := tx.get(accountKey(addr))
	if err != nil || !ok {
		return nil, err
	}
	acc := types.NewAccount()
	if err := json.Unmarshal(raw, acc); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", addr.Hex(), err)
	}
	return acc, nil
}

func (tx *Tx) PutAccount(addr common.Address, acc *types.Account) error {
	raw, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	tx.put(accountKey(addr), raw)
	return nil
}

// --- mixer ---

func (tx *Tx) GetDeposit(commitment [32]byte) (*mixer.Deposit, error) {
	raw, ok, err := tx.get(depositKey(commitment))
	if err != nil || !ok {
		return nil, err
	}
	dep := new(mixer.Deposit)
	if err := json.Unmarshal(raw, dep); err != nil {
		return nil, fmt.Errorf("state: decode deposit: %w", err)
	}
	return dep, nil
}

func (tx *Tx) PutDeposit(commitment [32]byte, dep *mixer.Deposit) error {
	raw, err := json.Marshal(dep)
	if err != nil {
		return err
	}
	tx.put(depositKey(commitment), raw)
	return nil
}

func (tx *Tx) HasNullifier(nullifier [32]byte) (bool, error) {
	_, ok, err := tx.get(nullifierKey(nullifier))
	return ok, err
}

func (tx *Tx) PutNullifier(nullifier [32]byte) error {
	tx.put(nullifierKey(nullifier), []byte{1})
	return nil
}

// --- lending pool ---

func (tx *Tx) GetLoan(id uint64) (*lendingpool.Loan, error) {
	raw, ok, err := tx.get(loanKey(id))
	if err != nil || !ok {
		return nil, err
	}
	loan := new(lendingpool.Loan)
	if err := json.Unmarshal(raw, loan); err != nil {
		return nil, fmt.Errorf("state: decode loan %d: %w", id, err)
	}
	return loan, nil
}

func (tx *Tx) PutLoan(loan *lendingpool.Loan) error {
	raw, err := json.Marshal(loan)
	if err != nil {
		return err
	}
	tx.put(loanKey(loan.ID), raw)
	return nil
}

func (tx *Tx) LoanCounter() (uint64, error) {
	raw, ok, err := tx.get(keyLoanCounter)
	if err != nil || !ok {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("state: malformed loan counter")
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (tx *Tx) SetLoanCounter(id uint64) error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, id)
	tx.put(keyLoanCounter, raw)
	return nil
}

// --- collateral ---

func (tx *Tx) GetLock(commitment [32]byte) (*collateral.Lock, error) {
	raw, ok, err := tx.get(lockKey(commitment))
	if err != nil || !ok {
		return nil, err
	}
	lock := new(collateral.Lock)
	if err := json.Unmarshal(raw, lock); err != nil {
		return nil, fmt.Errorf("state: decode lock: %w", err)
	}
	return lock, nil
}

func (tx *Tx) PutLock(lock *collateral.Lock) error {
	raw, err := json.Marshal(lock)
	if err != nil {
		return err
	}
	tx.put(lockKey(lock.Commitment), raw)
	return nil
}

func accountKey(addr common.Address) []byte {
	return append(append([]byte(nil), prefixAccount...), addr.Bytes()...)
}

func depositKey(commitment [32]byte) []byte {
	return append(append([]byte(nil), prefixDeposit...), commitment[:]...)
}

func nullifierKey(nullifier [32]byte) []byte {
	return append(append([]byte(nil), prefixNullifier...), nullifier[:]...)
}

func loanKey(id uint64) []byte {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, id)
	return append(append([]byte(nil), prefixLoan...), raw...)
}

func lockKey(commitment [32]byte) []byte {
	return append(append([]byte(nil), prefixLock...), commitment[:]...)
}
