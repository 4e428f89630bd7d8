package domain

import "errors"

var (
	// ErrExchangeUnavailable wraps connectivity, auth and rate-limit
	// failures from the exchange binding.
	ErrExchangeUnavailable = errors.New("exchange unavailable")

	// ErrInsufficientFunds aborts an entry for the current tick only.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidConfig rejects a configuration before the loop may start.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoPosition is returned by manual close for a symbol with no live
	// position.
	ErrNoPosition = errors.New("no open position")
)
