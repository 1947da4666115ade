package exchange

import (
	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"
)

// AggregatedBook maintains a simplified view of one instrument's book,
// tracking only price levels and their aggregated sizes. The dispatcher
// keeps it in sync with the full book by applying depth diffs at the same
// points that mutate the book, so quote replies never need to walk resting
// orders.
type AggregatedBook struct {
	bid *treemap.TreeMap[decimal.Decimal, int64]
	ask *treemap.TreeMap[decimal.Decimal, int64]
}

// NewAggregatedBook creates an AggregatedBook with empty sides. Bids are
// keyed best-first (descending), asks best-first (ascending), so the front
// of each map is the touch.
func NewAggregatedBook() *AggregatedBook {
	return &AggregatedBook{
		bid: treemap.NewWithKeyCompare[decimal.Decimal, int64](func(a, b decimal.Decimal) bool {
			return a.GreaterThan(b)
		}),
		ask: treemap.NewWithKeyCompare[decimal.Decimal, int64](func(a, b decimal.Decimal) bool {
			return a.LessThan(b)
		}),
	}
}

func (ab *AggregatedBook) sideMap(side Side) *treemap.TreeMap[decimal.Decimal, int64] {
	if side == Buy {
		return ab.bid
	}
	return ab.ask
}

// Apply adjusts the aggregate size at a price level by diff. Levels that
// reach zero are removed. A resting insert applies a positive diff on the
// order's side; a cancel or match applies a negative diff on the resting
// (maker) side.
func (ab *AggregatedBook) Apply(side Side, price decimal.Decimal, diff int64) {
	m := ab.sideMap(side)

	size, _ := m.Get(price)
	size += diff
	if size <= 0 {
		m.Del(price)
		return
	}
	m.Set(price, size)
}

// Depth returns the aggregated size at a specific price level for the given
// side, or zero if the level does not exist.
func (ab *AggregatedBook) Depth(side Side, price decimal.Decimal) int64 {
	size, _ := ab.sideMap(side).Get(price)
	return size
}

// Best returns the best price level of one side and its aggregate size.
// A zero size means the side is empty.
func (ab *AggregatedBook) Best(side Side) (decimal.Decimal, int64) {
	it := ab.sideMap(side).Iterator()
	if !it.Valid() {
		return decimal.Zero, 0
	}
	return it.Key(), it.Value()
}

// Levels returns the number of price levels on one side.
func (ab *AggregatedBook) Levels(side Side) int {
	return ab.sideMap(side).Len()
}
