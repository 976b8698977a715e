package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"mixlend/core/types"
	"mixlend/native/collateral"
	"mixlend/native/lendingpool"
	"mixlend/native/mixer"
	"mixlend/storage"
)

func TestTxBuffersUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	ledger := NewLedger(db)

	addr := common.HexToAddress("0x00000000000000000000000000000000000000C1")
	token := common.HexToAddress("0x00000000000000000000000000000000000000E1")

	tx := ledger.Begin()
	acc := types.NewAccount()
	acc.SetBalance(token, big.NewInt(42))
	if err := tx.PutAccount(addr, acc); err != nil {
		t.Fatalf("put account: %v", err)
	}

	// Uncommitted writes are invisible to a fresh transaction.
	other := ledger.View()
	if got, err := other.GetAccount(addr); err != nil || got != nil {
		t.Fatalf("expected no account before commit, got %v err %v", got, err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	loaded, err := ledger.View().GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if loaded.Balance(token).Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("balance %s, want 42", loaded.Balance(token))
	}

	if err := tx.Commit(); err == nil {
		t.Fatalf("expected double commit to fail")
	}
}

func TestDiscardedTxLeavesBackendUntouched(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	ledger := NewLedger(db)

	var commitment [32]byte
	commitment[0] = 0x01

	tx := ledger.Begin()
	if err := tx.PutDeposit(commitment, &mixer.Deposit{Amount: big.NewInt(10)}); err != nil {
		t.Fatalf("put deposit: %v", err)
	}
	// tx goes out of scope without Commit: nothing persists.

	if dep, err := ledger.View().GetDeposit(commitment); err != nil || dep != nil {
		t.Fatalf("expected no deposit, got %v err %v", dep, err)
	}
}

func TestTxReadsOwnWrites(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	ledger := NewLedger(db)

	var commitment, nullifier [32]byte
	commitment[0], nullifier[0] = 0x02, 0x03

	tx := ledger.Begin()
	token := common.HexToAddress("0x00000000000000000000000000000000000000E1")
	dep := &mixer.Deposit{Token: token, Amount: big.NewInt(100)}
	if err := tx.PutDeposit(commitment, dep); err != nil {
		t.Fatalf("put deposit: %v", err)
	}
	got, err := tx.GetDeposit(commitment)
	if err != nil {
		t.Fatalf("get deposit: %v", err)
	}
	if got == nil || got.Amount.Cmp(big.NewInt(100)) != 0 || got.Token != token {
		t.Fatalf("unexpected deposit %+v", got)
	}

	if spent, _ := tx.HasNullifier(nullifier); spent {
		t.Fatalf("nullifier must start unspent")
	}
	if err := tx.PutNullifier(nullifier); err != nil {
		t.Fatalf("put nullifier: %v", err)
	}
	if spent, _ := tx.HasNullifier(nullifier); !spent {
		t.Fatalf("nullifier must be visible inside the transaction")
	}
}

func TestLoanAndLockRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	ledger := NewLedger(db)

	tx := ledger.Begin()
	if counter, err := tx.LoanCounter(); err != nil || counter != 0 {
		t.Fatalf("fresh counter: got %d err %v", counter, err)
	}

	var commitment [32]byte
	commitment[5] = 0xAB
	loan := &lendingpool.Loan{
		ID:               1,
		Borrower:         common.HexToAddress("0x00000000000000000000000000000000000000C1"),
		Token:            common.HexToAddress("0x00000000000000000000000000000000000000E1"),
		Amount:           big.NewInt(50),
		Collateral:       commitment,
		CollateralAmount: big.NewInt(100),
	}
	if err := tx.PutLoan(loan); err != nil {
		t.Fatalf("put loan: %v", err)
	}
	if err := tx.SetLoanCounter(1); err != nil {
		t.Fatalf("set counter: %v", err)
	}
	if err := tx.PutLock(&collateral.Lock{Commitment: commitment, LoanID: 1, Active: true}); err != nil {
		t.Fatalf("put lock: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	view := ledger.View()
	loaded, err := view.GetLoan(1)
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	if loaded == nil || loaded.Collateral != commitment || loaded.Amount.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("unexpected loan %+v", loaded)
	}
	if counter, _ := view.LoanCounter(); counter != 1 {
		t.Fatalf("counter %d, want 1", counter)
	}
	lock, err := view.GetLock(commitment)
	if err != nil {
		t.Fatalf("get lock: %v", err)
	}
	if lock == nil || !lock.Active || lock.LoanID != 1 {
		t.Fatalf("unexpected lock %+v", lock)
	}
	if missing, err := view.GetLoan(99); err != nil || missing != nil {
		t.Fatalf("expected nil for unknown loan, got %v err %v", missing, err)
	}
}
