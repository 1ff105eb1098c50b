package match

import "errors"

var (
	ErrInvalidOrder       = errors.New("invalid order: price and quantity must be positive")
	ErrUnknownOrder       = errors.New("unknown order")
	ErrInvalidParam       = errors.New("the param is invalid")
	ErrTimeout            = errors.New("timeout")
	ErrShutdown           = errors.New("matching engine is shutting down")
	ErrEngineRunning      = errors.New("matching engine is already running")
	ErrBookHalted         = errors.New("order book halted after an invariant violation")
	ErrInvariantViolation = errors.New("order book invariant violated")
	ErrUnknownCommand     = errors.New("unknown command type")
	ErrSequenceGap        = errors.New("book log sequence gap")
)
