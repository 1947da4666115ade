package exchange

import (
	"time"

	"github.com/marketgrid/exchange/protocol"
	"github.com/shopspring/decimal"
)

type Side = protocol.Side

const (
	Buy  Side = protocol.SideBuy
	Sell Side = protocol.SideSell
)

// Order is a resting order in an instrument's book. Once inserted it is
// owned exclusively by the book; only the matcher decrements Remaining.
type Order struct {
	ID         uint64
	Instrument uint32
	Side       Side
	Price      decimal.Decimal
	Quantity   int64 // original quantity
	Remaining  int64
	Timestamp  int64  // unix nano, arrival time assigned inside the exclusive region
	ConnID     string // originating connection

	// Intrusive FIFO pointers within a price level.
	next *Order
	prev *Order
}

// Trade is produced by the matcher at the moment of a cross. It is
// immutable and consumed once by the broadcaster.
type Trade struct {
	Instrument  uint32
	Price       decimal.Decimal
	Quantity    int64
	BuyOrderID  uint64
	SellOrderID uint64
	BuyConnID   string
	SellConnID  string
	TakerConnID string
	Timestamp   time.Time
}

// Quote is a point-in-time view of one instrument: last trade price,
// cumulative traded volume, and the best level of each side.
type Quote struct {
	Instrument uint32
	LastPrice  decimal.Decimal
	Volume     int64
	BidPrice   decimal.Decimal
	BidSize    int64
	AskPrice   decimal.Decimal
	AskSize    int64
}

func opposite(side Side) Side {
	if side == Buy {
		return Sell
	}
	return Buy
}
