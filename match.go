package exchange

import (
	"time"
)

// matchOrder crosses an incoming order against the best resting opposing
// orders until no further match is possible or the order is exhausted, then
// rests any remainder in the book. The trade price is always the resting
// order's price. Orders from the same connection are allowed to cross; echo
// suppression is a broadcast concern, not a matching one.
//
// The caller holds the instrument's exclusive region and has already
// rejected duplicate order IDs, so the final Insert cannot fail.
func matchOrder(book *OrderBook, state *StockState, agg *AggregatedBook, taker *Order) []*Trade {
	var trades []*Trade
	now := time.Now().UTC()

	for taker.Remaining > 0 {
		resting := book.BestOpposing(taker.Side, taker.Price)

		if resting == nil {
			_ = book.Insert(taker)
			agg.Apply(taker.Side, taker.Price, taker.Remaining)
			break
		}

		qty := taker.Remaining
		if resting.Remaining < qty {
			qty = resting.Remaining
		}

		trade := &Trade{
			Instrument:  taker.Instrument,
			Price:       resting.Price,
			Quantity:    qty,
			TakerConnID: taker.ConnID,
			Timestamp:   now,
		}
		if taker.Side == Buy {
			trade.BuyOrderID = taker.ID
			trade.BuyConnID = taker.ConnID
			trade.SellOrderID = resting.ID
			trade.SellConnID = resting.ConnID
		} else {
			trade.SellOrderID = taker.ID
			trade.SellConnID = taker.ConnID
			trade.BuyOrderID = resting.ID
			trade.BuyConnID = resting.ConnID
		}
		trades = append(trades, trade)

		state.applyTrade(resting.Price, qty)
		agg.Apply(resting.Side, resting.Price, -qty)
		book.Reduce(resting.ID, qty)
		taker.Remaining -= qty
	}

	return trades
}
