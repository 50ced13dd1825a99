package token

import (
	"math/big"
	"regexp"
	"strings"
	"time"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,12}$`)

// Token describes a registered fungible payment token.
type Token struct {
	Symbol      string   `json:"symbol"`
	Name        string   `json:"name"`
	Decimals    uint8    `json:"decimals"`
	TotalSupply *big.Int `json:"totalSupply"`
	CreatedAt   int64    `json:"createdAt"`
}

// Clone returns a deep copy of the token record.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	clone := *t
	if t.TotalSupply != nil {
		clone.TotalSupply = new(big.Int).Set(t.TotalSupply)
	}
	return &clone
}

type ledgerState interface {
	TokenGet(symbol string) (*Token, bool, error)
	TokenPut(token *Token) error
	TokenBalanceGet(symbol string, addr [20]byte) (*big.Int, error)
	TokenBalancePut(symbol string, addr [20]byte, amount *big.Int) error
	TokenAllowanceGet(symbol string, owner, spender [20]byte) (*big.Int, error)
	TokenAllowancePut(symbol string, owner, spender [20]byte, amount *big.Int) error
}

// Ledger implements balances and owner→spender allowances for payment
// tokens. Allowance semantics follow the usual approve/transfer-from model:
// a spender may move up to the approved amount out of the owner's balance.
type Ledger struct {
	state ledgerState
	nowFn func() int64
}

// NewLedger constructs a token ledger with default dependencies.
func NewLedger() *Ledger {
	return &Ledger{
		nowFn: func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetNowFunc overrides the time source used for deterministic testing.
func (l *Ledger) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

// NormalizeSymbol canonicalises token symbols for consistent lookups.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Register adds a new payment token. Symbols are uppercase alphanumerics,
// two to twelve characters.
func (l *Ledger) Register(symbol, name string, decimals uint8) (*Token, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	symbol = NormalizeSymbol(symbol)
	if !symbolPattern.MatchString(symbol) {
		return nil, ErrInvalidSymbol
	}
	if _, ok, err := l.state.TokenGet(symbol); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyExists
	}
	tok := &Token{
		Symbol:      symbol,
		Name:        strings.TrimSpace(name),
		Decimals:    decimals,
		TotalSupply: big.NewInt(0),
		CreatedAt:   l.nowFn(),
	}
	if err := l.state.TokenPut(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Get resolves a registered token.
func (l *Ledger) Get(symbol string) (*Token, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	tok, ok, err := l.state.TokenGet(NormalizeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	if !ok || tok == nil {
		return nil, ErrNotFound
	}
	return tok, nil
}

// Mint credits newly issued units to the recipient. Issuance authority is
// enforced at the RPC boundary, not here.
func (l *Ledger) Mint(symbol string, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	tok, err := l.Get(symbol)
	if err != nil {
		return err
	}
	balance, err := l.balance(tok.Symbol, to)
	if err != nil {
		return err
	}
	balance = new(big.Int).Add(balance, amount)
	if err := l.state.TokenBalancePut(tok.Symbol, to, balance); err != nil {
		return err
	}
	if tok.TotalSupply == nil {
		tok.TotalSupply = big.NewInt(0)
	}
	tok.TotalSupply = new(big.Int).Add(tok.TotalSupply, amount)
	return l.state.TokenPut(tok)
}

// BalanceOf reports the holder's balance for the supplied token.
func (l *Ledger) BalanceOf(symbol string, holder [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	if _, err := l.Get(symbol); err != nil {
		return nil, err
	}
	return l.balance(NormalizeSymbol(symbol), holder)
}

// Approve sets the spender's allowance over the owner's balance. The value
// replaces any previous allowance; zero revokes it.
func (l *Ledger) Approve(symbol string, owner, spender [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	tok, err := l.Get(symbol)
	if err != nil {
		return err
	}
	return l.state.TokenAllowancePut(tok.Symbol, owner, spender, new(big.Int).Set(amount))
}

// Allowance reports the remaining amount the spender may move from the owner.
func (l *Ledger) Allowance(symbol string, owner, spender [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	tok, err := l.Get(symbol)
	if err != nil {
		return nil, err
	}
	allowance, err := l.state.TokenAllowanceGet(tok.Symbol, owner, spender)
	if err != nil {
		return nil, err
	}
	if allowance == nil {
		return big.NewInt(0), nil
	}
	return allowance, nil
}

// Transfer moves units directly between holders.
func (l *Ledger) Transfer(symbol string, from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	tok, err := l.Get(symbol)
	if err != nil {
		return err
	}
	return l.move(tok.Symbol, from, to, amount)
}

// TransferFrom moves units out of the owner's balance on behalf of the
// spender, consuming allowance. Used by the experience token purchase path
// where the spender is the experience address.
func (l *Ledger) TransferFrom(symbol string, spender, from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	tok, err := l.Get(symbol)
	if err != nil {
		return err
	}
	allowance, err := l.state.TokenAllowanceGet(tok.Symbol, from, spender)
	if err != nil {
		return err
	}
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.move(tok.Symbol, from, to, amount); err != nil {
		return err
	}
	remaining := new(big.Int).Sub(allowance, amount)
	return l.state.TokenAllowancePut(tok.Symbol, from, spender, remaining)
}

func (l *Ledger) balance(symbol string, addr [20]byte) (*big.Int, error) {
	balance, err := l.state.TokenBalanceGet(symbol, addr)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return big.NewInt(0), nil
	}
	return balance, nil
}

func (l *Ledger) move(symbol string, from, to [20]byte, amount *big.Int) error {
	fromBalance, err := l.balance(symbol, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	fromBalance = new(big.Int).Sub(fromBalance, amount)
	if err := l.state.TokenBalancePut(symbol, from, fromBalance); err != nil {
		return err
	}
	toBalance, err := l.balance(symbol, to)
	if err != nil {
		return err
	}
	toBalance = new(big.Int).Add(toBalance, amount)
	return l.state.TokenBalancePut(symbol, to, toBalance)
}
