package mixer

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"mixlend/core/types"
	mixcrypto "mixlend/crypto"
	nativecommon "mixlend/native/common"
	"mixlend/native/tokens"
)

type mockEngineState struct {
	deposits   map[[32]byte]*Deposit
	nullifiers map[[32]byte]bool
	accounts   map[common.Address]*types.Account
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		deposits:   make(map[[32]byte]*Deposit),
		nullifiers: make(map[[32]byte]bool),
		accounts:   make(map[common.Address]*types.Account),
	}
}

func (m *mockEngineState) GetDeposit(commitment [32]byte) (*Deposit, error) {
	return m.deposits[commitment].Clone(), nil
}

func (m *mockEngineState) PutDeposit(commitment [32]byte, dep *Deposit) error {
	m.deposits[commitment] = dep.Clone()
	return nil
}

func (m *mockEngineState) HasNullifier(nullifier [32]byte) (bool, error) {
	return m.nullifiers[nullifier], nil
}

func (m *mockEngineState) PutNullifier(nullifier [32]byte) error {
	m.nullifiers[nullifier] = true
	return nil
}

func (m *mockEngineState) GetAccount(addr common.Address) (*types.Account, error) {
	if acc, ok := m.accounts[addr]; ok {
		return acc.Clone(), nil
	}
	return nil, nil
}

func (m *mockEngineState) PutAccount(addr common.Address, acc *types.Account) error {
	m.accounts[addr] = acc.Clone()
	return nil
}

func (m *mockEngineState) balance(addr, token common.Address) *big.Int {
	if acc, ok := m.accounts[addr]; ok {
		return acc.Balance(token)
	}
	return big.NewInt(0)
}

type stubPauseView struct {
	modules map[string]bool
}

func (s stubPauseView) IsPaused(module string) bool {
	return s.modules[module]
}

var (
	vaultAddr = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000000C1")
	bob       = common.HexToAddress("0x00000000000000000000000000000000000000C2")
)

func newTestEngine(t *testing.T) (*Engine, *mockEngineState, tokens.Token) {
	t.Helper()
	reg := tokens.Default()
	dai, ok := reg.BySymbol("DAI")
	if !ok {
		t.Fatalf("DAI missing from default registry")
	}
	engine := NewEngine(vaultAddr, reg)
	state := newMockEngineState()
	engine.SetState(state)
	return engine, state, dai
}

func fund(state *mockEngineState, addr, token common.Address, amount int64) {
	acc := types.NewAccount()
	if existing, ok := state.accounts[addr]; ok {
		acc = existing
	}
	acc.SetBalance(token, big.NewInt(amount))
	state.accounts[addr] = acc
}

func secretPair(seed byte) (nullifier, secret, commitment [32]byte) {
	nullifier[0] = seed
	secret[0] = seed ^ 0xFF
	commitment = mixcrypto.Commitment(nullifier, secret)
	return
}

func TestDepositRecordsCommitment(t *testing.T) {
	engine, state, dai := newTestEngine(t)
	fund(state, alice, dai.Address, 1000)

	_, _, commitment := secretPair(0x01)
	if err := engine.Deposit(alice, commitment, dai.Address, big.NewInt(100), nil); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	dep, err := engine.GetDeposit(commitment)
	if err != nil {
		t.Fatalf("get deposit: %v", err)
	}
	if dep == nil {
		t.Fatalf("expected deposit record")
	}
	if dep.Token != dai.Address || dep.Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected record %+v", dep)
	}
	if dep.Withdrawn || dep.Locked {
		t.Fatalf("fresh deposit must be unwithdrawn and unlocked")
	}

	if got := state.balance(alice, dai.Address); got.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("depositor balance %s, want 900", got)
	}
	if got := state.balance(vaultAddr, dai.Address); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("vault balance %s, want 100", got)
	}
}

func TestDepositDuplicateCommitment(t *testing.T) {
	engine, state, dai := newTestEngine(t)
	fund(state, alice, dai.Address, 1000)

	_, _, commitment := secretPair(0x02)
	if err := engine.Deposit(alice, commitment, dai.Address, big.NewInt(100), nil); err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	err := engine.Deposit(alice, commitment, dai.Address, big.NewInt(100), nil)
	if !errors.Is(err, ErrDuplicateCommitment) {
		t.Fatalf("expected ErrDuplicateCommitment, got %v", err)
	}
	if got := state.balance(alice, dai.Address); got.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("failed deposit must not move funds, balance %s", got)
	}
}

func TestDepositArgumentChecks(t *testing.T) {
	engine, state, dai := newTestEngine(t)
	fund(state, alice, dai.Address, 1000)
	fund(state, alice, tokens.NativeAsset, 1000)
	_, _, commitment := secretPair(0x03)

	if err := engine.Deposit(alice, commitment, dai.Address, big.NewInt(0), nil); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("zero amount: expected ErrBadArgs, got %v", err)
	}
	unknown := common.HexToAddress("0xdead00000000000000000000000000000000beef")
	if err := engine.Deposit(alice, commitment, unknown, big.NewInt(10), nil); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("unknown token: expected ErrBadArgs, got %v", err)
	}
	if err := engine.Deposit(common.Address{}, commitment, dai.Address, big.NewInt(10), nil); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("zero sender: expected ErrBadArgs, got %v", err)
	}
	if err := engine.Deposit(alice, [32]byte{}, dai.Address, big.NewInt(10), nil); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("zero commitment: expected ErrBadArgs, got %v", err)
	}

	// Native deposits must attach a matching payment, fungible deposits none.
	if err := engine.Deposit(alice, commitment, tokens.NativeAsset, big.NewInt(10), big.NewInt(9)); !errors.Is(err, ErrValueMismatch) {
		t.Fatalf("short payment: expected ErrValueMismatch, got %v", err)
	}
	if err := engine.Deposit(alice, commitment, tokens.NativeAsset, big.NewInt(10), nil); !errors.Is(err, ErrValueMismatch) {
		t.Fatalf("missing payment: expected ErrValueMismatch, got %v", err)
	}
	if err := engine.Deposit(alice, commitment, dai.Address, big.NewInt(10), big.NewInt(10)); !errors.Is(err, ErrValueMismatch) {
		t.Fatalf("token deposit with payment: expected ErrValueMismatch, got %v", err)
	}
}

func TestDepositInsufficientBalance(t *testing.T) {
	engine, _, dai := newTestEngine(t)
	_, _, commitment := secretPair(0x04)
	err := engine.Deposit(alice, commitment, dai.Address, big.NewInt(10), nil)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestNativeDepositAndWithdraw(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	fund(state, alice, tokens.NativeAsset, 500)

	nullifier, secret, commitment := secretPair(0x05)
	if err := engine.Deposit(alice, commitment, tokens.NativeAsset, big.NewInt(200), big.NewInt(200)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	dep, err := engine.Withdraw(bob, nullifier, secret)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !dep.Withdrawn {
		t.Fatalf("expected withdrawn flag set")
	}
	if got := state.balance(bob, tokens.NativeAsset); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("recipient balance %s, want 200", got)
	}
	if got := state.balance(vaultAddr, tokens.NativeAsset); got.Sign() != 0 {
		t.Fatalf("vault should be empty after payout, got %s", got)
	}
}

func TestWithdrawReplayFails(t *testing.T) {
	engine, state, dai := newTestEngine(t)
	fund(state, alice, dai.Address, 1000)

	nullifier, secret, commitment := secretPair(0x06)
	if err := engine.Deposit(alice, commitment, dai.Address, big.NewInt(100), nil); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := engine.Withdraw(bob, nullifier, secret); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	// The deposit flag is checked before the nullifier set, so the replay
	// surfaces as an already-withdrawn deposit.
	if _, err := engine.Withdraw(bob, nullifier, secret); !errors.Is(err, ErrAlreadyWithdrawn) {
		t.Fatalf("expected ErrAlreadyWithdrawn, got %v", err)
	}
	if got := state.balance(bob, dai.Address); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("replay must not pay out twice, balance %s", got)
	}
}

func TestWithdrawWrongSecret(t *testing.T) {
	engine, state, dai := newTestEngine(t)
	fund(state, alice, dai.Address, 1000)

	nullifier, _, commitment := secretPair(0x07)
	if err := engine.Deposit(alice, commitment, dai.Address, big.NewInt(100), nil); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	var wrongSecret [32]byte
	wrongSecret[0] = 0x42
	if _, err := engine.Withdraw(bob, nullifier, wrongSecret); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong secret, got %v", err)
	}
}

func TestLockBlocksWithdraw(t *testing.T) {
	engine, state, dai := newTestEngine(t)
	fund(state, alice, dai.Address, 1000)

	nullifier, secret, commitment := secretPair(0x08)
	if err := engine.Deposit(alice, commitment, dai.Address, big.NewInt(100), nil); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := engine.Lock(commitment); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := engine.Lock(commitment); !errors.Is(err, ErrAlreadyLocked) {
		t.Fatalf("double lock: expected ErrAlreadyLocked, got %v", err)
	}
	if _, err := engine.Withdraw(bob, nullifier, secret); !errors.Is(err, ErrAlreadyLocked) {
		t.Fatalf("withdraw while locked: expected ErrAlreadyLocked, got %v", err)
	}

	if _, err := engine.Unlock(commitment); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := engine.Unlock(commitment); !errors.Is(err, ErrNotLocked) {
		t.Fatalf("double unlock: expected ErrNotLocked, got %v", err)
	}
	if _, err := engine.Withdraw(bob, nullifier, secret); err != nil {
		t.Fatalf("withdraw after unlock: %v", err)
	}
	if _, err := engine.Lock(commitment); !errors.Is(err, ErrAlreadyWithdrawn) {
		t.Fatalf("lock after withdraw: expected ErrAlreadyWithdrawn, got %v", err)
	}
}

func TestGuardBlocksMutation(t *testing.T) {
	engine, state, dai := newTestEngine(t)
	fund(state, alice, dai.Address, 1000)
	engine.SetPauses(stubPauseView{modules: map[string]bool{"mixer": true}})

	_, _, commitment := secretPair(0x09)
	err := engine.Deposit(alice, commitment, dai.Address, big.NewInt(100), nil)
	if !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if got := state.balance(alice, dai.Address); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("paused deposit must not move funds, balance %s", got)
	}
}
