package token

import "errors"

var (
	// ErrNilState is returned when the ledger runs without a configured state backend.
	ErrNilState = errors.New("token: state not configured")
	// ErrInvalidSymbol is returned for empty or malformed token symbols.
	ErrInvalidSymbol = errors.New("token: invalid symbol")
	// ErrAlreadyExists is returned when registering a symbol twice.
	ErrAlreadyExists = errors.New("token: already registered")
	// ErrNotFound is returned when the token symbol is not registered.
	ErrNotFound = errors.New("token: not registered")
	// ErrInvalidAmount is returned for nil or non-positive amounts.
	ErrInvalidAmount = errors.New("token: amount must be positive")
	// ErrInsufficientFunds is returned when the sender balance cannot cover a transfer.
	ErrInsufficientFunds = errors.New("token: insufficient balance")
	// ErrInsufficientAllowance is returned when a delegated transfer exceeds the approved amount.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
)
