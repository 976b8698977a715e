package core

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"mixlend/crypto"
	"mixlend/native/collateral"
	"mixlend/native/mixer"
	"mixlend/native/tokens"
	"mixlend/storage"
)

var (
	depositor = common.HexToAddress("0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa")
	funder    = common.HexToAddress("0xBbbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")
	recipient = common.HexToAddress("0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC")
)

func newTestNode(t *testing.T, db storage.Database) *Node {
	t.Helper()
	if db == nil {
		db = storage.NewMemDB()
	}
	return NewNode(db, tokens.Default(), collateral.DefaultRiskParameters(), nil)
}

func mustMint(t *testing.T, node *Node, to common.Address, token common.Address, amount *big.Int) {
	t.Helper()
	if _, err := node.Mint(to, token, amount); err != nil {
		t.Fatalf("mint: %v", err)
	}
}

func tokenAddr(t *testing.T, node *Node, symbol string) common.Address {
	t.Helper()
	tok, ok := node.Registry().BySymbol(symbol)
	if !ok {
		t.Fatalf("token %s not configured", symbol)
	}
	return tok.Address
}

func eth(whole int64) *big.Int {
	out := big.NewInt(whole)
	return out.Mul(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func usdc(whole int64) *big.Int {
	out := big.NewInt(whole)
	return out.Mul(out, big.NewInt(1_000_000))
}

func newPair(t *testing.T) (nullifier, secret, commitment [32]byte) {
	t.Helper()
	nullifier, secret, err := crypto.NewSecretPair()
	if err != nil {
		t.Fatalf("secret pair: %v", err)
	}
	return nullifier, secret, crypto.Commitment(nullifier, secret)
}

func TestNodeDepositBorrowRepayWithdraw(t *testing.T) {
	node := newTestNode(t, nil)
	usdcToken := tokenAddr(t, node, "USDC")

	mustMint(t, node, depositor, tokens.NativeAsset, eth(10))
	mustMint(t, node, funder, usdcToken, usdc(10_000))

	if _, err := node.Fund(funder, usdcToken, usdc(10_000)); err != nil {
		t.Fatalf("fund: %v", err)
	}

	nullifier, secret, commitment := newPair(t)
	events, err := node.Deposit(depositor, commitment, tokens.NativeAsset, eth(1), eth(1))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if len(events) != 1 || events[0].Type != "mixer.deposited" {
		t.Fatalf("unexpected deposit events: %+v", events)
	}

	dep, err := node.GetDeposit(commitment)
	if err != nil {
		t.Fatalf("get deposit: %v", err)
	}
	if dep == nil || dep.Amount.Cmp(eth(1)) != 0 || dep.Withdrawn || dep.Locked {
		t.Fatalf("unexpected deposit: %+v", dep)
	}

	loan, _, err := node.LockAndBorrow(depositor, commitment, usdcToken, usdc(1750))
	if err != nil {
		t.Fatalf("lock and borrow: %v", err)
	}
	if loan.ID != 1 {
		t.Fatalf("loan id = %d, want 1", loan.ID)
	}
	if got, err := node.Balance(depositor, usdcToken); err != nil || got.Cmp(usdc(1750)) != 0 {
		t.Fatalf("borrower balance = %v (err %v), want %v", got, err, usdc(1750))
	}

	// The locked deposit can neither back a second loan nor be withdrawn.
	if _, _, err := node.LockAndBorrow(depositor, commitment, usdcToken, usdc(1)); !errors.Is(err, mixer.ErrAlreadyLocked) {
		t.Fatalf("second borrow err = %v, want ErrAlreadyLocked", err)
	}
	if _, _, err := node.Withdraw(recipient, nullifier, secret); !errors.Is(err, mixer.ErrAlreadyLocked) {
		t.Fatalf("locked withdraw err = %v, want ErrAlreadyLocked", err)
	}

	settled, _, err := node.RepayAndUnlock(depositor, commitment, usdc(1750))
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if !settled.Repaid {
		t.Fatalf("loan not marked repaid: %+v", settled)
	}

	withdrawn, _, err := node.Withdraw(recipient, nullifier, secret)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if withdrawn.Amount.Cmp(eth(1)) != 0 {
		t.Fatalf("withdrawn amount = %v, want %v", withdrawn.Amount, eth(1))
	}
	if got, err := node.Balance(recipient, tokens.NativeAsset); err != nil || got.Cmp(eth(1)) != 0 {
		t.Fatalf("recipient balance = %v (err %v), want %v", got, err, eth(1))
	}

	if _, _, err := node.Withdraw(recipient, nullifier, secret); !errors.Is(err, mixer.ErrNullifierSpent) {
		t.Fatalf("replay err = %v, want ErrNullifierSpent", err)
	}

	counter, err := node.LoanCounter()
	if err != nil || counter != 1 {
		t.Fatalf("loan counter = %d (err %v), want 1", counter, err)
	}
}

func TestNodeConservesSupply(t *testing.T) {
	node := newTestNode(t, nil)
	usdcToken := tokenAddr(t, node, "USDC")

	mustMint(t, node, depositor, tokens.NativeAsset, eth(5))
	mustMint(t, node, funder, usdcToken, usdc(4_000))
	if _, err := node.Fund(funder, usdcToken, usdc(4_000)); err != nil {
		t.Fatalf("fund: %v", err)
	}

	nullifier, secret, commitment := newPair(t)
	if _, err := node.Deposit(depositor, commitment, tokens.NativeAsset, eth(2), eth(2)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, _, err := node.LockAndBorrow(depositor, commitment, usdcToken, usdc(3_500)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if _, _, err := node.RepayAndUnlock(depositor, commitment, usdc(3_500)); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if _, _, err := node.Withdraw(recipient, nullifier, secret); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	sum := func(token common.Address, holders ...common.Address) *big.Int {
		total := big.NewInt(0)
		for _, holder := range holders {
			bal, err := node.Balance(holder, token)
			if err != nil {
				t.Fatalf("balance: %v", err)
			}
			total.Add(total, bal)
		}
		return total
	}

	holders := []common.Address{depositor, funder, recipient, MixerVaultAddress, PoolVaultAddress}
	if total := sum(tokens.NativeAsset, holders...); total.Cmp(eth(5)) != 0 {
		t.Fatalf("native supply = %v, want %v", total, eth(5))
	}
	if total := sum(usdcToken, holders...); total.Cmp(usdc(4_000)) != 0 {
		t.Fatalf("usdc supply = %v, want %v", total, usdc(4_000))
	}
}

func TestNodeFailedBorrowLeavesDepositUnlocked(t *testing.T) {
	node := newTestNode(t, nil)
	usdcToken := tokenAddr(t, node, "USDC")

	mustMint(t, node, depositor, tokens.NativeAsset, eth(1))
	// Pool is short: only 100 USDC against a 1750 cap.
	mustMint(t, node, funder, usdcToken, usdc(100))
	if _, err := node.Fund(funder, usdcToken, usdc(100)); err != nil {
		t.Fatalf("fund: %v", err)
	}

	_, _, commitment := newPair(t)
	if _, err := node.Deposit(depositor, commitment, tokens.NativeAsset, eth(1), eth(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, _, err := node.LockAndBorrow(depositor, commitment, usdcToken, usdc(1_000)); err == nil {
		t.Fatal("expected borrow to fail against a short pool")
	}

	// The rejected transaction must not leave the deposit locked.
	dep, err := node.GetDeposit(commitment)
	if err != nil {
		t.Fatalf("get deposit: %v", err)
	}
	if dep.Locked {
		t.Fatal("deposit left locked after failed borrow")
	}
	if _, _, err := node.LockAndBorrow(depositor, commitment, usdcToken, usdc(100)); err != nil {
		t.Fatalf("retry within liquidity failed: %v", err)
	}
}

func TestNodeStateSurvivesRestart(t *testing.T) {
	db := storage.NewMemDB()
	node := newTestNode(t, db)

	mustMint(t, node, depositor, tokens.NativeAsset, eth(3))
	_, _, commitment := newPair(t)
	if _, err := node.Deposit(depositor, commitment, tokens.NativeAsset, eth(3), eth(3)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	reopened := newTestNode(t, db)
	dep, err := reopened.GetDeposit(commitment)
	if err != nil {
		t.Fatalf("get deposit after restart: %v", err)
	}
	if dep == nil || dep.Amount.Cmp(eth(3)) != 0 {
		t.Fatalf("deposit lost across restart: %+v", dep)
	}
}

func TestNodeMintValidation(t *testing.T) {
	node := newTestNode(t, nil)

	if _, err := node.Mint(common.Address{}, tokens.NativeAsset, eth(1)); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("zero recipient err = %v, want ErrBadArgs", err)
	}
	if _, err := node.Mint(depositor, tokens.NativeAsset, big.NewInt(0)); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("zero amount err = %v, want ErrBadArgs", err)
	}
	unknown := common.HexToAddress("0x9999999999999999999999999999999999999999")
	if _, err := node.Mint(depositor, unknown, eth(1)); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("unknown token err = %v, want ErrBadArgs", err)
	}
}

func TestNodeSetPaused(t *testing.T) {
	node := newTestNode(t, nil)

	if err := node.SetPaused("mixer", true); err != nil {
		t.Fatalf("pause mixer: %v", err)
	}
	mustMintErr := func() error {
		_, _, commitment := newPair(t)
		_, err := node.Deposit(depositor, commitment, tokens.NativeAsset, eth(1), eth(1))
		return err
	}
	if err := mustMintErr(); err == nil {
		t.Fatal("expected paused mixer to reject deposits")
	}

	if err := node.SetPaused("mixer", false); err != nil {
		t.Fatalf("unpause mixer: %v", err)
	}
	mustMint(t, node, depositor, tokens.NativeAsset, eth(1))
	if err := mustMintErr(); err != nil {
		t.Fatalf("deposit after unpause: %v", err)
	}

	if err := node.SetPaused("unknown", true); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("unknown module err = %v, want ErrBadArgs", err)
	}
}
