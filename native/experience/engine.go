package experience

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"expnet/core/events"
	"expnet/core/types"
)

// CurrencyNative labels receipts settled in the native currency.
const CurrencyNative = "wei"

type engineState interface {
	ExperienceGet(addr [20]byte) (*Experience, bool, error)
	ExperiencePut(exp *Experience) error
	PassBalanceGet(exp [20]byte, holder [20]byte) (*big.Int, error)
	PassBalancePut(exp [20]byte, holder [20]byte, qty *big.Int) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

type tokenLedger interface {
	TransferFrom(symbol string, spender, from, to [20]byte, amount *big.Int) error
}

// Engine wires the settlement rules with persistence and event emission.
// Every mutating entry point validates its preconditions up front and fails
// with one of the named errors before touching state; callers run each
// invocation inside a state transaction so a failure leaves no partial
// effects.
type Engine struct {
	state   engineState
	tokens  tokenLedger
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a settlement engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokenLedger configures the fungible-token ledger used by the token
// purchase path.
func (e *Engine) SetTokenLedger(ledger tokenLedger) { e.tokens = ledger }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) load(addr [20]byte) (*Experience, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	exp, ok, err := e.state.ExperienceGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || exp == nil {
		return nil, ErrNotFound
	}
	return exp, nil
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{BalanceWei: big.NewInt(0)}
	}
	if acc.BalanceWei == nil {
		acc.BalanceWei = big.NewInt(0)
	}
	return acc
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

// credit adds amount to the account's native balance, skipping zero amounts.
func (e *Engine) credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	account, err := e.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	account = ensureAccount(account)
	account.BalanceWei = new(big.Int).Add(account.BalanceWei, amount)
	return e.state.PutAccount(addr[:], account)
}

// BuyWithNative settles an exact native-currency payment: the attached
// payment must equal priceWei*quantity, the split legs are routed to the
// platform wallet, the elected proposer, and the owner, and the buyer's pass
// balance grows by quantity. Underpayment and overpayment are both rejected;
// there is no refund path to strand value in.
func (e *Engine) BuyWithNative(buyer [20]byte, expAddr [20]byte, quantity uint64, payment *big.Int) (*Receipt, error) {
	if quantity == 0 {
		return nil, ErrInvalidQuantity
	}
	exp, err := e.load(expAddr)
	if err != nil {
		return nil, err
	}
	if exp.PriceWei == nil || exp.PriceWei.Sign() == 0 {
		return nil, ErrSalesPaused
	}
	cost := new(big.Int).Mul(exp.PriceWei, new(big.Int).SetUint64(quantity))
	if payment == nil || payment.Cmp(cost) != 0 {
		return nil, ErrPaymentMismatch
	}

	buyerAccount, err := e.state.GetAccount(buyer[:])
	if err != nil {
		return nil, err
	}
	buyerAccount = ensureAccount(buyerAccount)
	if buyerAccount.BalanceWei.Cmp(cost) < 0 {
		return nil, ErrInsufficientFunds
	}
	buyerAccount.BalanceWei = new(big.Int).Sub(buyerAccount.BalanceWei, cost)
	if err := e.state.PutAccount(buyer[:], buyerAccount); err != nil {
		return nil, err
	}

	split := SplitPayment(cost, exp.PlatformFeeBps, exp.ProposerFeeBps, exp.HasProposer())
	if err := e.credit(exp.PlatformWallet, split.Platform); err != nil {
		return nil, err
	}
	if exp.HasProposer() {
		if err := e.credit(exp.CurrentProposer, split.Proposer); err != nil {
			return nil, err
		}
	}
	if err := e.credit(exp.Owner, split.Creator); err != nil {
		return nil, err
	}

	if err := e.mint(exp, buyer, quantity); err != nil {
		return nil, err
	}
	if exp.TotalRevenueWei == nil {
		exp.TotalRevenueWei = big.NewInt(0)
	}
	exp.TotalRevenueWei = new(big.Int).Add(exp.TotalRevenueWei, cost)
	if err := e.state.ExperiencePut(exp); err != nil {
		return nil, err
	}

	e.emit(PassPurchasedEvent(hexAddr(expAddr), hexAddr(buyer), CurrencyNative, fmt.Sprintf("%d", quantity), cost.String()))
	return &Receipt{
		Experience:  expAddr,
		Buyer:       buyer,
		Quantity:    quantity,
		Currency:    CurrencyNative,
		TotalPaid:   cost,
		Split:       split.Clone(),
		PurchasedAt: e.now(),
	}, nil
}

// BuyWithToken settles a purchase in a registered fungible token at the
// experience's configured unit price. The buyer must have pre-approved the
// experience address for at least the total cost; the split algorithm is
// identical to the native path.
func (e *Engine) BuyWithToken(buyer [20]byte, expAddr [20]byte, symbol string, quantity uint64) (*Receipt, error) {
	if quantity == 0 {
		return nil, ErrInvalidQuantity
	}
	exp, err := e.load(expAddr)
	if err != nil {
		return nil, err
	}
	if e.tokens == nil {
		return nil, ErrTokenNotAccepted
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	unitPrice, ok := exp.TokenPrice(symbol)
	if !ok {
		return nil, ErrTokenNotAccepted
	}
	cost := new(big.Int).Mul(unitPrice, new(big.Int).SetUint64(quantity))

	split := SplitPayment(cost, exp.PlatformFeeBps, exp.ProposerFeeBps, exp.HasProposer())
	// Each leg consumes allowance granted to the experience address; the
	// three draws sum to exactly the cost.
	if err := e.transferTokenLeg(symbol, expAddr, buyer, exp.PlatformWallet, split.Platform); err != nil {
		return nil, err
	}
	if exp.HasProposer() {
		if err := e.transferTokenLeg(symbol, expAddr, buyer, exp.CurrentProposer, split.Proposer); err != nil {
			return nil, err
		}
	}
	if err := e.transferTokenLeg(symbol, expAddr, buyer, exp.Owner, split.Creator); err != nil {
		return nil, err
	}

	if err := e.mint(exp, buyer, quantity); err != nil {
		return nil, err
	}
	if err := e.state.ExperiencePut(exp); err != nil {
		return nil, err
	}

	e.emit(PassPurchasedEvent(hexAddr(expAddr), hexAddr(buyer), symbol, fmt.Sprintf("%d", quantity), cost.String()))
	return &Receipt{
		Experience:  expAddr,
		Buyer:       buyer,
		Quantity:    quantity,
		Currency:    symbol,
		TotalPaid:   cost,
		Split:       split.Clone(),
		PurchasedAt: e.now(),
	}, nil
}

func (e *Engine) transferTokenLeg(symbol string, spender, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	return e.tokens.TransferFrom(symbol, spender, from, to, amount)
}

// mint increases the buyer's pass balance; balances only ever grow.
func (e *Engine) mint(exp *Experience, holder [20]byte, quantity uint64) error {
	balance, err := e.state.PassBalanceGet(exp.Address, holder)
	if err != nil {
		return err
	}
	if balance == nil {
		balance = big.NewInt(0)
	}
	balance = new(big.Int).Add(balance, new(big.Int).SetUint64(quantity))
	if err := e.state.PassBalancePut(exp.Address, holder, balance); err != nil {
		return err
	}
	exp.TotalPassesSold += quantity
	return nil
}

// BalanceOf reports the holder's pass quantity. Only PassID is ever minted,
// so every other identifier reads as zero.
func (e *Engine) BalanceOf(expAddr [20]byte, holder [20]byte, passID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if passID != PassID {
		return big.NewInt(0), nil
	}
	balance, err := e.state.PassBalanceGet(expAddr, holder)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// SetPrice updates the native pass price. Zero is a valid value and pauses
// sales. Owner-gated.
func (e *Engine) SetPrice(caller [20]byte, expAddr [20]byte, price *big.Int) (*Experience, error) {
	exp, err := e.load(expAddr)
	if err != nil {
		return nil, err
	}
	if caller != exp.Owner {
		return nil, ErrNotOwner
	}
	if price == nil || price.Sign() < 0 {
		return nil, ErrInvalidPrice
	}
	exp.PriceWei = new(big.Int).Set(price)
	if err := e.state.ExperiencePut(exp); err != nil {
		return nil, err
	}
	e.emit(PriceUpdatedEvent(hexAddr(expAddr), exp.PriceWei.String()))
	return exp, nil
}

// SetTokenPrice updates the unit price for a payment token. A zero price
// removes the token from the accepted set. Owner-gated.
func (e *Engine) SetTokenPrice(caller [20]byte, expAddr [20]byte, symbol string, unitPrice *big.Int) (*Experience, error) {
	exp, err := e.load(expAddr)
	if err != nil {
		return nil, err
	}
	if caller != exp.Owner {
		return nil, ErrNotOwner
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrTokenNotAccepted
	}
	if unitPrice == nil || unitPrice.Sign() <= 0 {
		delete(exp.TokenPrices, symbol)
	} else {
		if exp.TokenPrices == nil {
			exp.TokenPrices = make(map[string]*big.Int)
		}
		exp.TokenPrices[symbol] = new(big.Int).Set(unitPrice)
	}
	if err := e.state.ExperiencePut(exp); err != nil {
		return nil, err
	}
	price := "0"
	if unitPrice != nil && unitPrice.Sign() > 0 {
		price = unitPrice.String()
	}
	e.emit(TokenPriceUpdatedEvent(hexAddr(expAddr), symbol, price))
	return exp, nil
}

// SetProposerFeeBps updates the proposer fee share. Owner-gated.
func (e *Engine) SetProposerFeeBps(caller [20]byte, expAddr [20]byte, bps uint32) (*Experience, error) {
	exp, err := e.load(expAddr)
	if err != nil {
		return nil, err
	}
	if caller != exp.Owner {
		return nil, ErrNotOwner
	}
	if bps > bpsDenominator {
		return nil, ErrFeeBpsRange
	}
	exp.ProposerFeeBps = bps
	if err := e.state.ExperiencePut(exp); err != nil {
		return nil, err
	}
	e.emit(ProposerFeeUpdatedEvent(hexAddr(expAddr), fmt.Sprintf("%d", bps)))
	return exp, nil
}

// TransferOwnership hands the experience to a new owner. The zero address is
// rejected so an experience can never become ownerless. Owner-gated.
func (e *Engine) TransferOwnership(caller [20]byte, expAddr [20]byte, newOwner [20]byte) (*Experience, error) {
	exp, err := e.load(expAddr)
	if err != nil {
		return nil, err
	}
	if caller != exp.Owner {
		return nil, ErrNotOwner
	}
	if isZeroAddress(newOwner) {
		return nil, ErrZeroAddress
	}
	previous := exp.Owner
	exp.Owner = newOwner
	if err := e.state.ExperiencePut(exp); err != nil {
		return nil, err
	}
	e.emit(OwnershipTransferredEvent(hexAddr(expAddr), hexAddr(previous), hexAddr(newOwner)))
	return exp, nil
}

// SetContentPointer moves the opaque content pointer. Authority-gated; the
// pointer is not validated here.
func (e *Engine) SetContentPointer(caller [20]byte, expAddr [20]byte, cid string) (*Experience, error) {
	exp, err := e.load(expAddr)
	if err != nil {
		return nil, err
	}
	if caller != exp.FlowSyncAuthority {
		return nil, ErrNotAuthority
	}
	exp.CID = strings.TrimSpace(cid)
	if err := e.state.ExperiencePut(exp); err != nil {
		return nil, err
	}
	e.emit(ContentUpdatedEvent(hexAddr(expAddr), exp.CID))
	return exp, nil
}

// SetCurrentProposer elects a proposer, or clears the seat when the zero
// address is supplied. Authority-gated. While the seat is empty the
// proposer's would-be share settles to the creator.
func (e *Engine) SetCurrentProposer(caller [20]byte, expAddr [20]byte, proposer [20]byte) (*Experience, error) {
	exp, err := e.load(expAddr)
	if err != nil {
		return nil, err
	}
	if caller != exp.FlowSyncAuthority {
		return nil, ErrNotAuthority
	}
	exp.CurrentProposer = proposer
	if err := e.state.ExperiencePut(exp); err != nil {
		return nil, err
	}
	label := ""
	if !isZeroAddress(proposer) {
		label = hexAddr(proposer)
	}
	e.emit(ProposerUpdatedEvent(hexAddr(expAddr), label))
	return exp, nil
}

// TransferPass always fails: passes are soulbound. The rejection is
// unconditional and does not consult balances or state.
func (e *Engine) TransferPass(from, to [20]byte, expAddr [20]byte, passID uint64, quantity uint64) error {
	return ErrTransfersDisabled
}

// BatchTransferPass always fails: passes are soulbound.
func (e *Engine) BatchTransferPass(from, to [20]byte, expAddr [20]byte, passIDs []uint64, quantities []uint64) error {
	return ErrTransfersDisabled
}

// SetApprovalForAll always fails: there is nothing an operator could ever be
// approved to move.
func (e *Engine) SetApprovalForAll(holder, operator [20]byte, expAddr [20]byte, approved bool) error {
	return ErrTransfersDisabled
}
