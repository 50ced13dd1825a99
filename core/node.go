package core

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"expnet/core/events"
	"expnet/core/types"
	"expnet/native/experience"
	"expnet/native/token"
	"expnet/state"
)

// ErrInvalidAmount is returned when a funding amount is nil or non-positive.
var ErrInvalidAmount = errors.New("core: amount must be positive")

// Node is the serialization boundary around the settlement state: every
// mutating invocation takes the write lock, runs inside a state transaction,
// and either commits wholesale or reverts with no partial effects. Events
// are buffered during the invocation and published only after the commit
// succeeds. Reads go straight to the manager without coordination.
type Node struct {
	mu      sync.Mutex
	manager *state.Manager
	factory *experience.Factory
	bus     *events.Bus
	nowFn   func() int64
}

// NewNode wires a node around the supplied state manager and platform
// parameters.
func NewNode(manager *state.Manager, platformWallet [20]byte, platformFeeBps uint32) (*Node, error) {
	factory, err := experience.NewFactory(platformWallet, platformFeeBps)
	if err != nil {
		return nil, err
	}
	return &Node{
		manager: manager,
		factory: factory,
		bus:     events.NewBus(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}, nil
}

// Bus exposes the event bus for journal attachment and subscriptions.
func (n *Node) Bus() *events.Bus { return n.bus }

// SetNowFunc overrides the time source used for deterministic testing.
func (n *Node) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	n.nowFn = now
}

// captureEmitter buffers events during a transaction so nothing is published
// for an invocation that later reverts.
type captureEmitter struct {
	buffered []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	c.buffered = append(c.buffered, evt)
}

// withTransaction runs fn against a transaction-scoped engine and token
// ledger, commits on success, and flushes buffered events afterwards.
func (n *Node) withTransaction(fn func(engine *experience.Engine, tokens *token.Ledger) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	tx := n.manager.Begin()
	capture := &captureEmitter{}

	tokens := token.NewLedger()
	tokens.SetState(tx)
	tokens.SetNowFunc(n.nowFn)

	engine := experience.NewEngine()
	engine.SetState(tx)
	engine.SetTokenLedger(tokens)
	engine.SetEmitter(capture)
	engine.SetNowFunc(n.nowFn)

	if err := fn(engine, tokens); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		tx.Discard()
		return err
	}
	for _, evt := range capture.buffered {
		n.bus.Emit(evt)
	}
	return nil
}

// CreateExperience deploys a new experience through the factory.
func (n *Node) CreateExperience(creator [20]byte, initialCID string, flowSyncAuthority [20]byte, proposerFeeBps uint32) (*experience.Experience, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	tx := n.manager.Begin()
	capture := &captureEmitter{}
	n.factory.SetState(tx)
	n.factory.SetEmitter(capture)
	n.factory.SetNowFunc(n.nowFn)

	exp, err := n.factory.CreateExperience(creator, initialCID, flowSyncAuthority, proposerFeeBps)
	if err != nil {
		tx.Discard()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		tx.Discard()
		return nil, err
	}
	for _, evt := range capture.buffered {
		n.bus.Emit(evt)
	}
	return exp, nil
}

// BuyWithNative settles a native-currency purchase.
func (n *Node) BuyWithNative(buyer [20]byte, exp [20]byte, quantity uint64, payment *big.Int) (*experience.Receipt, error) {
	var receipt *experience.Receipt
	err := n.withTransaction(func(engine *experience.Engine, _ *token.Ledger) error {
		var err error
		receipt, err = engine.BuyWithNative(buyer, exp, quantity, payment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// BuyWithToken settles a token purchase.
func (n *Node) BuyWithToken(buyer [20]byte, exp [20]byte, symbol string, quantity uint64) (*experience.Receipt, error) {
	var receipt *experience.Receipt
	err := n.withTransaction(func(engine *experience.Engine, _ *token.Ledger) error {
		var err error
		receipt, err = engine.BuyWithToken(buyer, exp, symbol, quantity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// SetPrice updates the native price (owner-gated in the engine).
func (n *Node) SetPrice(caller, exp [20]byte, price *big.Int) (*experience.Experience, error) {
	return n.mutateExperience(func(engine *experience.Engine) (*experience.Experience, error) {
		return engine.SetPrice(caller, exp, price)
	})
}

// SetTokenPrice updates a token unit price (owner-gated in the engine).
func (n *Node) SetTokenPrice(caller, exp [20]byte, symbol string, unitPrice *big.Int) (*experience.Experience, error) {
	return n.mutateExperience(func(engine *experience.Engine) (*experience.Experience, error) {
		return engine.SetTokenPrice(caller, exp, symbol, unitPrice)
	})
}

// SetProposerFeeBps updates the proposer fee share (owner-gated in the engine).
func (n *Node) SetProposerFeeBps(caller, exp [20]byte, bps uint32) (*experience.Experience, error) {
	return n.mutateExperience(func(engine *experience.Engine) (*experience.Experience, error) {
		return engine.SetProposerFeeBps(caller, exp, bps)
	})
}

// TransferOwnership hands an experience to a new owner (owner-gated in the engine).
func (n *Node) TransferOwnership(caller, exp, newOwner [20]byte) (*experience.Experience, error) {
	return n.mutateExperience(func(engine *experience.Engine) (*experience.Experience, error) {
		return engine.TransferOwnership(caller, exp, newOwner)
	})
}

// SetContentPointer moves the content pointer (authority-gated in the engine).
func (n *Node) SetContentPointer(caller, exp [20]byte, cid string) (*experience.Experience, error) {
	return n.mutateExperience(func(engine *experience.Engine) (*experience.Experience, error) {
		return engine.SetContentPointer(caller, exp, cid)
	})
}

// SetCurrentProposer elects or clears the proposer (authority-gated in the engine).
func (n *Node) SetCurrentProposer(caller, exp, proposer [20]byte) (*experience.Experience, error) {
	return n.mutateExperience(func(engine *experience.Engine) (*experience.Experience, error) {
		return engine.SetCurrentProposer(caller, exp, proposer)
	})
}

func (n *Node) mutateExperience(fn func(engine *experience.Engine) (*experience.Experience, error)) (*experience.Experience, error) {
	var exp *experience.Experience
	err := n.withTransaction(func(engine *experience.Engine, _ *token.Ledger) error {
		var err error
		exp, err = fn(engine)
		return err
	})
	if err != nil {
		return nil, err
	}
	return exp, nil
}

// TransferPass is permanently rejected: passes are soulbound.
func (n *Node) TransferPass(from, to, exp [20]byte, passID, quantity uint64) error {
	return experience.NewEngine().TransferPass(from, to, exp, passID, quantity)
}

// BatchTransferPass is permanently rejected: passes are soulbound.
func (n *Node) BatchTransferPass(from, to, exp [20]byte, passIDs, quantities []uint64) error {
	return experience.NewEngine().BatchTransferPass(from, to, exp, passIDs, quantities)
}

// SetApprovalForAll is permanently rejected: passes are soulbound.
func (n *Node) SetApprovalForAll(holder, operator, exp [20]byte, approved bool) error {
	return experience.NewEngine().SetApprovalForAll(holder, operator, exp, approved)
}

// GetExperience loads an experience record.
func (n *Node) GetExperience(addr [20]byte) (*experience.Experience, error) {
	exp, ok, err := n.manager.ExperienceGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, experience.ErrNotFound
	}
	return exp, nil
}

// BalanceOf reports a holder's pass balance.
func (n *Node) BalanceOf(exp, holder [20]byte, passID uint64) (*big.Int, error) {
	engine := experience.NewEngine()
	engine.SetState(n.manager)
	return engine.BalanceOf(exp, holder, passID)
}

// GetAccount loads an account, returning an empty account when absent.
func (n *Node) GetAccount(addr [20]byte) (*types.Account, error) {
	account, err := n.manager.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	if account == nil {
		return &types.Account{BalanceWei: big.NewInt(0)}, nil
	}
	if account.BalanceWei == nil {
		account.BalanceWei = big.NewInt(0)
	}
	return account, nil
}

// FundAccount credits native balance. Exposed only through the
// platform-authenticated RPC; settlement itself never creates value.
func (n *Node) FundAccount(addr [20]byte, amount *big.Int) (*types.Account, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	tx := n.manager.Begin()
	account, err := tx.GetAccount(addr[:])
	if err != nil {
		tx.Discard()
		return nil, err
	}
	if account == nil {
		account = &types.Account{BalanceWei: big.NewInt(0)}
	}
	if account.BalanceWei == nil {
		account.BalanceWei = big.NewInt(0)
	}
	account.BalanceWei = new(big.Int).Add(account.BalanceWei, amount)
	if err := tx.PutAccount(addr[:], account); err != nil {
		tx.Discard()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		tx.Discard()
		return nil, err
	}
	return account, nil
}

// RegisterToken registers a payment token (platform-authenticated at RPC).
func (n *Node) RegisterToken(symbol, name string, decimals uint8) (*token.Token, error) {
	var tok *token.Token
	err := n.withTransaction(func(_ *experience.Engine, tokens *token.Ledger) error {
		var err error
		tok, err = tokens.Register(symbol, name, decimals)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// MintToken issues token units (platform-authenticated at RPC).
func (n *Node) MintToken(symbol string, to [20]byte, amount *big.Int) error {
	return n.withTransaction(func(_ *experience.Engine, tokens *token.Ledger) error {
		return tokens.Mint(symbol, to, amount)
	})
}

// ApproveToken sets the caller's allowance for a spender.
func (n *Node) ApproveToken(symbol string, owner, spender [20]byte, amount *big.Int) error {
	return n.withTransaction(func(_ *experience.Engine, tokens *token.Ledger) error {
		return tokens.Approve(symbol, owner, spender, amount)
	})
}

// TokenBalanceOf reports a holder's token balance.
func (n *Node) TokenBalanceOf(symbol string, holder [20]byte) (*big.Int, error) {
	tokens := token.NewLedger()
	tokens.SetState(n.manager)
	return tokens.BalanceOf(symbol, holder)
}

// TokenAllowance reports the owner→spender allowance.
func (n *Node) TokenAllowance(symbol string, owner, spender [20]byte) (*big.Int, error) {
	tokens := token.NewLedger()
	tokens.SetState(n.manager)
	return tokens.Allowance(symbol, owner, spender)
}

// EventsSubscribe attaches a subscriber to the event stream, replaying
// journaled records after the supplied cursor first.
func (n *Node) EventsSubscribe(ctx context.Context, cursor uint64) (<-chan events.Record, func(), []events.Record, error) {
	return n.bus.Subscribe(ctx, cursor)
}
