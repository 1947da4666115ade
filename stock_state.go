package exchange

import (
	"github.com/shopspring/decimal"
)

// StockState tracks the last trade price and cumulative traded volume of
// one instrument. It is mutated only by the matcher, inside the same
// exclusive region as the book mutation that produced the trade.
type StockState struct {
	instrument uint32
	lastPrice  decimal.Decimal
	volume     int64
	trades     int64
}

// NewStockState creates the state record for one instrument.
func NewStockState(instrument uint32) *StockState {
	return &StockState{instrument: instrument}
}

func (s *StockState) applyTrade(price decimal.Decimal, qty int64) {
	s.lastPrice = price
	s.volume += qty
	s.trades++
}

// LastPrice returns the last trade price, or zero if nothing has traded.
func (s *StockState) LastPrice() decimal.Decimal {
	return s.lastPrice
}

// Volume returns the cumulative traded quantity.
func (s *StockState) Volume() int64 {
	return s.volume
}

// TradeCount returns the number of matches executed on this instrument.
func (s *StockState) TradeCount() int64 {
	return s.trades
}
