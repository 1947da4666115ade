package exchange

import (
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

type priceLevel struct {
	price     decimal.Decimal
	totalSize int64
	head      *Order
	tail      *Order
	count     int64
}

// queue holds one side of a book: a skiplist of price levels for ordered
// traversal, a price index for O(1) level lookup, and an order index by ID.
// Orders within a level form an intrusive FIFO list (arrival order).
type queue struct {
	side        Side
	totalOrders int64
	depths      int64
	depthList   *skiplist.SkipList
	priceList   map[string]*skiplist.Element
	orders      map[uint64]*Order
}

// newBidQueue creates the buy side. Levels are sorted by price descending
// (highest bid first).
func newBidQueue() *queue {
	return &queue{
		side: Buy,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d2.Cmp(d1)
		})),
		priceList: make(map[string]*skiplist.Element),
		orders:    make(map[uint64]*Order),
	}
}

// newAskQueue creates the sell side. Levels are sorted by price ascending
// (lowest ask first).
func newAskQueue() *queue {
	return &queue{
		side: Sell,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d1.Cmp(d2)
		})),
		priceList: make(map[string]*skiplist.Element),
		orders:    make(map[uint64]*Order),
	}
}

// order finds an order by its ID.
func (q *queue) order(id uint64) *Order {
	return q.orders[id]
}

// insertOrder appends an order to the back of its price level, creating the
// level if needed.
func (q *queue) insertOrder(order *Order) {
	key := order.Price.String()

	el, ok := q.priceList[key]
	if ok {
		unit, _ := el.Value.(*priceLevel)

		order.prev = unit.tail
		order.next = nil
		if unit.tail != nil {
			unit.tail.next = order
		}
		unit.tail = order
		if unit.head == nil {
			unit.head = order
		}

		unit.totalSize += order.Remaining
		unit.count++
	} else {
		unit := &priceLevel{
			price:     order.Price,
			head:      order,
			tail:      order,
			totalSize: order.Remaining,
			count:     1,
		}
		order.next = nil
		order.prev = nil

		el := q.depthList.Set(order.Price, unit)
		q.priceList[key] = el
		q.depths++
	}

	q.orders[order.ID] = order
	q.totalOrders++
}

// removeOrder unlinks an order from its price level and drops empty levels.
func (q *queue) removeOrder(id uint64) *Order {
	order, ok := q.orders[id]
	if !ok {
		return nil
	}

	key := order.Price.String()
	skipElement, ok := q.priceList[key]
	if !ok {
		return nil
	}
	unit, _ := skipElement.Value.(*priceLevel)

	if order.prev != nil {
		order.prev.next = order.next
	} else {
		unit.head = order.next
	}

	if order.next != nil {
		order.next.prev = order.prev
	} else {
		unit.tail = order.prev
	}

	order.next = nil
	order.prev = nil

	unit.totalSize -= order.Remaining
	unit.count--
	delete(q.orders, id)
	q.totalOrders--

	if unit.count == 0 {
		q.depthList.RemoveElement(skipElement)
		delete(q.priceList, key)
		q.depths--
	}

	return order
}

// reduceOrder decrements an order's remaining quantity in place, preserving
// its priority, and removes it entirely when nothing remains. It returns the
// remaining quantity after the reduction.
func (q *queue) reduceOrder(id uint64, qty int64) int64 {
	order, ok := q.orders[id]
	if !ok {
		return 0
	}

	if qty >= order.Remaining {
		q.removeOrder(id)
		return 0
	}

	order.Remaining -= qty
	if el, ok := q.priceList[order.Price.String()]; ok {
		unit, _ := el.Value.(*priceLevel)
		unit.totalSize -= qty
	}

	return order.Remaining
}

// peekHeadOrder returns the order at the best price without removing it.
func (q *queue) peekHeadOrder() *Order {
	el := q.depthList.Front()
	if el == nil {
		return nil
	}

	unit, _ := el.Value.(*priceLevel)
	return unit.head
}

// orderCount returns the total number of orders in the queue.
func (q *queue) orderCount() int64 {
	return q.totalOrders
}

// depthCount returns the number of price levels in the queue.
func (q *queue) depthCount() int64 {
	return q.depths
}

// bestLevel returns the price and aggregate size of the best level, or a
// zero size when the side is empty.
func (q *queue) bestLevel() (decimal.Decimal, int64) {
	el := q.depthList.Front()
	if el == nil {
		return decimal.Zero, 0
	}

	unit, _ := el.Value.(*priceLevel)
	return unit.price, unit.totalSize
}

// toSnapshot copies the queue's orders in priority order: best price level
// first, FIFO within a level.
func (q *queue) toSnapshot() []Order {
	snapshots := make([]Order, 0, q.totalOrders)

	elem := q.depthList.Front()
	for elem != nil {
		unit := elem.Value.(*priceLevel)

		order := unit.head
		for order != nil {
			cpy := *order
			cpy.next = nil
			cpy.prev = nil
			snapshots = append(snapshots, cpy)
			order = order.next
		}

		elem = elem.Next()
	}

	return snapshots
}
