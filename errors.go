package exchange

import "errors"

var (
	ErrDuplicateOrder = errors.New("order id already resting in the book")
	ErrNotFound       = errors.New("not found")
	ErrInvalidParam   = errors.New("the param is invalid")
	ErrShutdown       = errors.New("engine is shutting down")
	ErrSinkFull       = errors.New("outbound buffer is full")
	ErrSinkClosed     = errors.New("connection is closed")
)
