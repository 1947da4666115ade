package exchange

import (
	"github.com/shopspring/decimal"
)

// OrderBook is the per-instrument collection of resting orders: buys in
// descending price order, sells in ascending price order, arrival order
// within a level. It performs no locking of its own; every method is
// defined only under the owning instrument's exclusive region.
type OrderBook struct {
	instrument uint32
	bidQueue   *queue
	askQueue   *queue
}

// NewOrderBook creates an empty book for one instrument.
func NewOrderBook(instrument uint32) *OrderBook {
	return &OrderBook{
		instrument: instrument,
		bidQueue:   newBidQueue(),
		askQueue:   newAskQueue(),
	}
}

func (book *OrderBook) sideQueue(side Side) *queue {
	if side == Buy {
		return book.bidQueue
	}
	return book.askQueue
}

// Contains reports whether an order ID rests on either side of the book.
func (book *OrderBook) Contains(id uint64) bool {
	return book.bidQueue.order(id) != nil || book.askQueue.order(id) != nil
}

// Insert adds a resting order. The order ID must not already be present on
// either side; Remaining must be positive.
func (book *OrderBook) Insert(order *Order) error {
	if order.Remaining <= 0 {
		return ErrInvalidParam
	}
	if book.Contains(order.ID) {
		return ErrDuplicateOrder
	}

	book.sideQueue(order.Side).insertOrder(order)
	return nil
}

// Cancel removes a resting order by ID and returns it. Cancels are not
// idempotent: an absent ID yields ErrNotFound and the book is untouched.
func (book *OrderBook) Cancel(id uint64) (*Order, error) {
	if order := book.bidQueue.removeOrder(id); order != nil {
		return order, nil
	}
	if order := book.askQueue.removeOrder(id); order != nil {
		return order, nil
	}
	return nil, ErrNotFound
}

// Reduce decrements a resting order's remaining quantity, removing the
// order once nothing remains. Priority is preserved. It returns the
// remaining quantity after the reduction.
func (book *OrderBook) Reduce(id uint64, qty int64) int64 {
	if order := book.bidQueue.order(id); order != nil {
		return book.bidQueue.reduceOrder(id, qty)
	}
	return book.askQueue.reduceOrder(id, qty)
}

// BestOpposing returns the best resting order on the other side whose price
// crosses the given side/price, or nil when nothing crosses. A buy crosses
// when its price >= best ask; a sell crosses when its price <= best bid.
func (book *OrderBook) BestOpposing(side Side, price decimal.Decimal) *Order {
	resting := book.sideQueue(opposite(side)).peekHeadOrder()
	if resting == nil {
		return nil
	}

	if side == Buy && price.LessThan(resting.Price) ||
		side == Sell && price.GreaterThan(resting.Price) {
		return nil
	}

	return resting
}

// BidCount returns the number of resting buy orders.
func (book *OrderBook) BidCount() int64 {
	return book.bidQueue.orderCount()
}

// AskCount returns the number of resting sell orders.
func (book *OrderBook) AskCount() int64 {
	return book.askQueue.orderCount()
}

// Snapshot copies both sides of the book in priority order.
func (book *OrderBook) Snapshot() (bids, asks []Order) {
	return book.bidQueue.toSnapshot(), book.askQueue.toSnapshot()
}
