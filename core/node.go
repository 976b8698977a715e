package core

import (
	"errors"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"mixlend/core/state"
	"mixlend/core/types"
	mixcrypto "mixlend/crypto"
	"mixlend/native/collateral"
	"mixlend/native/lendingpool"
	"mixlend/native/mixer"
	"mixlend/native/pricing"
	"mixlend/native/tokens"
	"mixlend/observability"
	"mixlend/storage"
)

// Module vault addresses are derived from fixed labels so every deployment
// custodies funds under the same well-known accounts.
var (
	MixerVaultAddress = vaultAddress("mixlend/vault/mixer")
	PoolVaultAddress  = vaultAddress("mixlend/vault/pool")
)

// ErrBadArgs is returned for malformed node-level arguments (mint targets,
// pause names) before any engine is consulted.
var ErrBadArgs = errors.New("node: bad args")

func vaultAddress(label string) common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte(label))[12:])
}

// pauseSet is the operator-controlled switch board behind the engines' pause
// guard.
type pauseSet struct {
	mu     sync.RWMutex
	paused map[string]bool
}

func (p *pauseSet) IsPaused(module string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[module]
}

func (p *pauseSet) set(module string, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused == nil {
		p.paused = make(map[string]bool)
	}
	p.paused[module] = paused
}

// Node owns the ledger and serializes every mutation. Each public operation
// runs inside a single buffered transaction: a precondition failure anywhere
// discards the whole overlay, so the three ledgers can never partially apply.
type Node struct {
	mu       sync.Mutex
	ledger   *state.Ledger
	registry *tokens.Registry

	mixer      *mixer.Engine
	pool       *lendingpool.Engine
	collateral *collateral.Engine

	pauses *pauseSet
	logger *slog.Logger
}

// NewNode wires the three engines over a shared ledger.
func NewNode(db storage.Database, registry *tokens.Registry, params collateral.RiskParameters, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	pauses := &pauseSet{}

	mixerEngine := mixer.NewEngine(MixerVaultAddress, registry)
	mixerEngine.SetPauses(pauses)

	poolEngine := lendingpool.NewEngine(PoolVaultAddress, registry)
	poolEngine.SetPauses(pauses)

	collateralEngine := collateral.NewEngine(mixerEngine, poolEngine, registry, pricing.NewStaticOracle(registry), params)
	collateralEngine.SetPauses(pauses)

	return &Node{
		ledger:     state.NewLedger(db),
		registry:   registry,
		mixer:      mixerEngine,
		pool:       poolEngine,
		collateral: collateralEngine,
		pauses:     pauses,
		logger:     logger,
	}
}

// Registry returns the node's token registry.
func (n *Node) Registry() *tokens.Registry { return n.registry }

// RiskParameters returns the collateral policy in force.
func (n *Node) RiskParameters() collateral.RiskParameters { return n.collateral.Params() }

// SetPaused halts or resumes a module by name ("mixer", "lendingpool",
// "collateral").
func (n *Node) SetPaused(module string, paused bool) error {
	switch module {
	case "mixer", "lendingpool", "collateral":
	default:
		return ErrBadArgs
	}
	n.pauses.set(module, paused)
	n.logger.Info("module pause toggled", "module", module, "paused", paused)
	return nil
}

// run executes op inside the single-writer transaction boundary. The overlay
// commits only when op returns nil.
func (n *Node) run(name string, op func(tx *state.Tx) ([]*types.Event, error)) ([]*types.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	done := observability.LedgerOpTimer(name)
	tx := n.ledger.Begin()
	n.mixer.SetState(tx)
	n.pool.SetState(tx)
	n.collateral.SetState(tx)

	events, err := op(tx)
	if err != nil {
		done(err)
		n.logger.Warn("ledger operation rejected", "op", name, "error", err)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		done(err)
		n.logger.Error("ledger commit failed", "op", name, "error", err)
		return nil, err
	}
	done(nil)
	for _, event := range events {
		n.logger.Info("ledger event", "type", event.Type, "attributes", event.Attributes)
	}
	return events, nil
}

// view runs a read-only closure against current committed state.
func (n *Node) view(op func(tx *state.Tx) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	tx := n.ledger.View()
	n.mixer.SetState(tx)
	n.pool.SetState(tx)
	n.collateral.SetState(tx)
	return op(tx)
}

// Deposit records a mixer deposit under commitment.
func (n *Node) Deposit(from common.Address, commitment [32]byte, token common.Address, amount, payment *big.Int) ([]*types.Event, error) {
	return n.run("mixer_deposit", func(tx *state.Tx) ([]*types.Event, error) {
		if err := n.mixer.Deposit(from, commitment, token, amount, payment); err != nil {
			return nil, err
		}
		dep, err := n.mixer.GetDeposit(commitment)
		if err != nil {
			return nil, err
		}
		return []*types.Event{mixer.NewDepositedEvent(commitment, dep)}, nil
	})
}

// GetDeposit returns the record for a commitment, nil when absent.
func (n *Node) GetDeposit(commitment [32]byte) (*mixer.Deposit, error) {
	var dep *mixer.Deposit
	err := n.view(func(*state.Tx) error {
		var inner error
		dep, inner = n.mixer.GetDeposit(commitment)
		return inner
	})
	return dep, err
}

// Withdraw reveals a secret pair and pays the deposit to recipient.
func (n *Node) Withdraw(recipient common.Address, nullifier, secret [32]byte) (*mixer.Deposit, []*types.Event, error) {
	var withdrawn *mixer.Deposit
	events, err := n.run("mixer_withdraw", func(tx *state.Tx) ([]*types.Event, error) {
		dep, err := n.mixer.Withdraw(recipient, nullifier, secret)
		if err != nil {
			return nil, err
		}
		withdrawn = dep
		commitment := mixcrypto.Commitment(nullifier, secret)
		return []*types.Event{mixer.NewWithdrawnEvent(commitment, dep, recipient)}, nil
	})
	return withdrawn, events, err
}

// LockAndBorrow locks the deposit behind commitment and borrows from the pool.
func (n *Node) LockAndBorrow(borrower common.Address, commitment [32]byte, borrowToken common.Address, borrowAmount *big.Int) (*lendingpool.Loan, []*types.Event, error) {
	var loan *lendingpool.Loan
	events, err := n.run("collateral_lockAndBorrow", func(tx *state.Tx) ([]*types.Event, error) {
		created, dep, err := n.collateral.LockAndBorrow(borrower, commitment, borrowToken, borrowAmount)
		if err != nil {
			return nil, err
		}
		loan = created
		lock := &collateral.Lock{Commitment: commitment, LoanID: created.ID, Active: true}
		return []*types.Event{
			mixer.NewLockedEvent(commitment, dep),
			collateral.NewLockedEvent(lock),
			lendingpool.NewBorrowedEvent(created),
		}, nil
	})
	return loan, events, err
}

// RepayAndUnlock settles the loan behind commitment and releases the deposit.
func (n *Node) RepayAndUnlock(from common.Address, commitment [32]byte, repayAmount *big.Int) (*lendingpool.Loan, []*types.Event, error) {
	var loan *lendingpool.Loan
	events, err := n.run("collateral_repayAndUnlock", func(tx *state.Tx) ([]*types.Event, error) {
		settled, dep, err := n.collateral.RepayAndUnlock(from, commitment, repayAmount)
		if err != nil {
			return nil, err
		}
		loan = settled
		lock := &collateral.Lock{Commitment: commitment, LoanID: settled.ID}
		return []*types.Event{
			lendingpool.NewRepaidEvent(settled),
			collateral.NewUnlockedEvent(lock),
			mixer.NewUnlockedEvent(commitment, dep),
		}, nil
	})
	return loan, events, err
}

// Fund adds liquidity to the pool reserve.
func (n *Node) Fund(from common.Address, token common.Address, amount *big.Int) ([]*types.Event, error) {
	return n.run("lend_fund", func(tx *state.Tx) ([]*types.Event, error) {
		if err := n.pool.Fund(from, token, amount); err != nil {
			return nil, err
		}
		return []*types.Event{lendingpool.NewFundedEvent(from, token, amount)}, nil
	})
}

// Loan returns a loan record, nil when absent.
func (n *Node) Loan(id uint64) (*lendingpool.Loan, error) {
	var loan *lendingpool.Loan
	err := n.view(func(*state.Tx) error {
		var inner error
		loan, inner = n.pool.Loan(id)
		return inner
	})
	return loan, err
}

// LoanCounter returns the last assigned loan id.
func (n *Node) LoanCounter() (uint64, error) {
	var counter uint64
	err := n.view(func(*state.Tx) error {
		var inner error
		counter, inner = n.pool.LoanCounter()
		return inner
	})
	return counter, err
}

// Reserve returns the pool's disbursable balance for token.
func (n *Node) Reserve(token common.Address) (*big.Int, error) {
	var reserve *big.Int
	err := n.view(func(*state.Tx) error {
		var inner error
		reserve, inner = n.pool.Reserve(token)
		return inner
	})
	return reserve, err
}

// Balance returns an address's balance for token.
func (n *Node) Balance(addr common.Address, token common.Address) (*big.Int, error) {
	balance := big.NewInt(0)
	err := n.view(func(tx *state.Tx) error {
		acc, err := tx.GetAccount(addr)
		if err != nil {
			return err
		}
		if acc != nil {
			balance = acc.Balance(token)
		}
		return nil
	})
	return balance, err
}

// Mint credits freshly issued balance to an address. This replaces the demo
// deployment's faucet and mock-token mint and is exposed only to operators.
func (n *Node) Mint(to common.Address, token common.Address, amount *big.Int) ([]*types.Event, error) {
	return n.run("bank_mint", func(tx *state.Tx) ([]*types.Event, error) {
		if to == (common.Address{}) || amount == nil || amount.Sign() <= 0 {
			return nil, ErrBadArgs
		}
		if !n.registry.Recognized(token) {
			return nil, ErrBadArgs
		}
		acc, err := tx.GetAccount(to)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = types.NewAccount()
		}
		acc.SetBalance(token, new(big.Int).Add(acc.Balance(token), amount))
		if err := tx.PutAccount(to, acc); err != nil {
			return nil, err
		}
		return []*types.Event{{
			Type: "bank.minted",
			Attributes: map[string]string{
				"to":     to.Hex(),
				"token":  token.Hex(),
				"amount": amount.String(),
			},
		}}, nil
	})
}
