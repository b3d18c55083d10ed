package engine

import "errors"

// Validation errors surfaced only through Submit's return value — they
// indicate a malformed call, not a trading outcome, and are never turned
// into an execution because no order was ever admitted. The wire layer does
// not validate message fields itself; it relays these errors to the client
// as an error report.
var (
	ErrEmptyClientID = errors.New("engine: client id must not be empty")
	ErrEmptySymbol   = errors.New("engine: symbol must not be empty")
	ErrBadQuantity   = errors.New("engine: original quantity must be > 0")
	ErrBadLimitPrice = errors.New("engine: limit price must be > 0")
)
