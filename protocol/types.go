package protocol

import (
	"github.com/shopspring/decimal"
)

// Side represents the order side (Buy/Sell).
type Side int8

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

// Kind identifies the type of a decoded command.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNewOrder
	KindCancel
	KindQuote
)

// Command is the decoded form of one inbound instruction. It is built once
// by the codec and never mutated afterwards.
type Command struct {
	Kind       Kind
	Instrument uint32
	Side       Side
	Price      decimal.Decimal
	Quantity   int64
	OrderID    uint64
}
