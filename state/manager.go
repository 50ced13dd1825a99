package state

import (
	"encoding/json"
	"errors"
	"math/big"
	"sort"

	"expnet/core/types"
	"expnet/native/experience"
	"expnet/native/token"
	"expnet/storage"
)

// kvStore is the minimal surface the typed accessors need. Both the manager
// (direct reads) and transactions (overlay reads/writes) satisfy it.
type kvStore interface {
	kvGet(key []byte) ([]byte, bool, error)
	kvPut(key []byte, value []byte) error
}

// Manager exposes the typed settlement state over a raw key-value database.
// Reads may be issued directly; mutations should run through a Transaction so
// a failed invocation leaves no partial effects.
type Manager struct {
	ledger
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	m := &Manager{db: db}
	m.ledger.kv = m
	return m
}

func (m *Manager) kvGet(key []byte) ([]byte, bool, error) {
	ok, err := m.db.Has(key)
	if err != nil || !ok {
		return nil, false, err
	}
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *Manager) kvPut(key []byte, value []byte) error {
	return m.db.Put(key, value)
}

// Begin opens a write-overlay transaction. Reads see the overlay first and
// fall through to the database; writes stay in the overlay until Commit.
func (m *Manager) Begin() *Transaction {
	tx := &Transaction{parent: m, writes: make(map[string][]byte)}
	tx.ledger.kv = tx
	return tx
}

// Transaction buffers writes so an aborted settlement invocation reverts
// wholesale, mirroring whole-transaction atomicity in the execution model
// this ledger models.
type Transaction struct {
	ledger
	parent *Manager
	writes map[string][]byte
}

func (t *Transaction) kvGet(key []byte) ([]byte, bool, error) {
	if value, ok := t.writes[string(key)]; ok {
		return value, true, nil
	}
	return t.parent.kvGet(key)
}

func (t *Transaction) kvPut(key []byte, value []byte) error {
	t.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

// Commit flushes the overlay to the database as a single atomic batch in key
// order, so a crash mid-commit never persists a partial settlement.
func (t *Transaction) Commit() error {
	if len(t.writes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(t.writes))
	for key := range t.writes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := make([]storage.KeyValue, 0, len(keys))
	for _, key := range keys {
		batch = append(batch, storage.KeyValue{Key: []byte(key), Value: t.writes[key]})
	}
	if err := t.parent.db.WriteBatch(batch); err != nil {
		return err
	}
	t.writes = make(map[string][]byte)
	return nil
}

// Discard drops all buffered writes.
func (t *Transaction) Discard() {
	t.writes = make(map[string][]byte)
}

// ledger provides the typed accessors shared by Manager and Transaction. The
// method set satisfies the state interfaces of the experience engine, the
// experience factory, and the token ledger.
type ledger struct {
	kv kvStore
}

func (l ledger) getJSON(key []byte, out interface{}) (bool, error) {
	raw, ok, err := l.kv.kvGet(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (l ledger) putJSON(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return l.kv.kvPut(key, raw)
}

// GetAccount loads an account, returning nil when the address has no record.
func (l ledger) GetAccount(addr []byte) (*types.Account, error) {
	account := new(types.Account)
	ok, err := l.getJSON(accountKey(addr), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return account, nil
}

// PutAccount persists the account record.
func (l ledger) PutAccount(addr []byte, account *types.Account) error {
	return l.putJSON(accountKey(addr), account)
}

// ExperienceGet loads an experience record.
func (l ledger) ExperienceGet(addr [20]byte) (*experience.Experience, bool, error) {
	exp := new(experience.Experience)
	ok, err := l.getJSON(experienceKey(addr), exp)
	if err != nil || !ok {
		return nil, false, err
	}
	return exp, true, nil
}

// ExperiencePut persists an experience record.
func (l ledger) ExperiencePut(exp *experience.Experience) error {
	if exp == nil {
		return nil
	}
	return l.putJSON(experienceKey(exp.Address), exp)
}

// PassBalanceGet loads a holder's pass balance, nil when never minted.
func (l ledger) PassBalanceGet(exp [20]byte, holder [20]byte) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := l.getJSON(passBalanceKey(exp, holder), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return balance, nil
}

// PassBalancePut persists a holder's pass balance.
func (l ledger) PassBalancePut(exp [20]byte, holder [20]byte, qty *big.Int) error {
	if qty == nil {
		qty = big.NewInt(0)
	}
	return l.putJSON(passBalanceKey(exp, holder), qty)
}

// TokenGet loads a registered token.
func (l ledger) TokenGet(symbol string) (*token.Token, bool, error) {
	tok := new(token.Token)
	ok, err := l.getJSON(tokenKey(symbol), tok)
	if err != nil || !ok {
		return nil, false, err
	}
	return tok, true, nil
}

// TokenPut persists a token record.
func (l ledger) TokenPut(tok *token.Token) error {
	if tok == nil {
		return nil
	}
	return l.putJSON(tokenKey(tok.Symbol), tok)
}

// TokenBalanceGet loads a holder's token balance, nil when absent.
func (l ledger) TokenBalanceGet(symbol string, addr [20]byte) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := l.getJSON(tokenBalanceKey(symbol, addr), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return balance, nil
}

// TokenBalancePut persists a holder's token balance.
func (l ledger) TokenBalancePut(symbol string, addr [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return l.putJSON(tokenBalanceKey(symbol, addr), amount)
}

// TokenAllowanceGet loads the owner→spender allowance, nil when absent.
func (l ledger) TokenAllowanceGet(symbol string, owner, spender [20]byte) (*big.Int, error) {
	allowance := new(big.Int)
	ok, err := l.getJSON(tokenAllowanceKey(symbol, owner, spender), allowance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return allowance, nil
}

// TokenAllowancePut persists the owner→spender allowance.
func (l ledger) TokenAllowancePut(symbol string, owner, spender [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return l.putJSON(tokenAllowanceKey(symbol, owner, spender), amount)
}
