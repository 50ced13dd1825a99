package experience

import "errors"

var (
	// ErrNilState is returned when an engine runs without a configured state backend.
	ErrNilState = errors.New("experience: state not configured")
	// ErrNotFound is returned when the addressed experience does not exist.
	ErrNotFound = errors.New("experience: not found")
	// ErrAlreadyExists is returned when a derived experience address collides.
	ErrAlreadyExists = errors.New("experience: already exists")
	// ErrInvalidQuantity is returned when a purchase requests zero passes.
	ErrInvalidQuantity = errors.New("experience: quantity must be positive")
	// ErrSalesPaused is returned when purchasing while the price is zero.
	ErrSalesPaused = errors.New("experience: price is zero, sales paused")
	// ErrPaymentMismatch is returned when the attached payment is not exactly price*quantity.
	ErrPaymentMismatch = errors.New("experience: payment must equal price times quantity")
	// ErrInsufficientFunds is returned when the buyer cannot cover the purchase.
	ErrInsufficientFunds = errors.New("experience: insufficient balance")
	// ErrNotOwner is returned when an owner-gated mutation is attempted by another caller.
	ErrNotOwner = errors.New("experience: caller is not the owner")
	// ErrNotAuthority is returned when a flow-sync mutation is attempted by another caller.
	ErrNotAuthority = errors.New("experience: caller is not the flow-sync authority")
	// ErrTransfersDisabled is returned for every attempt to move or approve passes.
	ErrTransfersDisabled = errors.New("experience: passes are soulbound, transfers disabled")
	// ErrInvalidPrice is returned when a price update carries a nil or negative value.
	ErrInvalidPrice = errors.New("experience: invalid price")
	// ErrFeeBpsRange is returned when a fee share exceeds 10,000 basis points.
	ErrFeeBpsRange = errors.New("experience: fee bps out of range")
	// ErrTokenNotAccepted is returned when buying with a token the owner has not priced.
	ErrTokenNotAccepted = errors.New("experience: token not accepted")
	// ErrZeroAddress is returned when an operation requires a non-zero address.
	ErrZeroAddress = errors.New("experience: zero address")
)
