package exchange

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marketgrid/exchange/protocol"
)

// TradePublisher receives the trades produced by one command. The engine
// calls it after releasing the instrument's exclusive region, so
// implementations may block without stalling matching.
type TradePublisher interface {
	PublishTrades(trades ...*Trade)
}

// instrument bundles everything guarded by one exclusive region: the book,
// the derived stock state, and the aggregated depth view.
type instrument struct {
	mu    sync.Mutex
	book  *OrderBook
	state *StockState
	agg   *AggregatedBook
}

// Engine owns every instrument's book and dispatches decoded commands
// against them. Commands for the same instrument are serialized by that
// instrument's mutex; commands for different instruments proceed fully in
// parallel. All book mutation enters through Handle; nothing else holds a
// reference to a live book.
type Engine struct {
	isShutdown  atomic.Bool
	instruments sync.Map // uint32 -> *instrument
	publisher   TradePublisher
}

// NewEngine creates a new engine. Trades are handed to the publisher in
// match order, outside the exclusive region that produced them.
func NewEngine(publisher TradePublisher) *Engine {
	return &Engine{
		publisher: publisher,
	}
}

// instrument returns the state for an instrument ID, creating it lazily on
// first reference. Instruments live for the process lifetime.
func (e *Engine) instrument(id uint32) *instrument {
	v, found := e.instruments.Load(id)
	if !found {
		v, _ = e.instruments.LoadOrStore(id, &instrument{
			book:  NewOrderBook(id),
			state: NewStockState(id),
			agg:   NewAggregatedBook(),
		})
	}

	ins, _ := v.(*instrument)
	return ins
}

// Handle executes one decoded command on behalf of a connection. The reply,
// when non-empty, is for the originating connection only; trades are pushed
// to the publisher. A returned error means the command was rejected and no
// state was mutated.
func (e *Engine) Handle(connID string, cmd *protocol.Command) (reply string, err error) {
	if e.isShutdown.Load() {
		return "", ErrShutdown
	}
	if cmd == nil {
		return "", ErrInvalidParam
	}

	switch cmd.Kind {
	case protocol.KindNewOrder:
		return "", e.handleNewOrder(connID, cmd)
	case protocol.KindCancel:
		return e.handleCancel(cmd)
	case protocol.KindQuote:
		q := e.Quote(cmd.Instrument)
		return protocol.FormatQuote(q.Instrument, q.LastPrice, q.Volume, q.BidPrice, q.AskPrice, q.BidSize, q.AskSize), nil
	default:
		return "", fmt.Errorf("%w: kind %d", protocol.ErrMalformedCommand, cmd.Kind)
	}
}

func (e *Engine) handleNewOrder(connID string, cmd *protocol.Command) error {
	order := &Order{
		ID:         cmd.OrderID,
		Instrument: cmd.Instrument,
		Side:       cmd.Side,
		Price:      cmd.Price,
		Quantity:   cmd.Quantity,
		Remaining:  cmd.Quantity,
		ConnID:     connID,
	}

	ins := e.instrument(cmd.Instrument)

	ins.mu.Lock()
	if ins.book.Contains(order.ID) {
		ins.mu.Unlock()
		return ErrDuplicateOrder
	}
	// Arrival time is assigned under the lock so the FIFO tie-break agrees
	// with the effective match order.
	order.Timestamp = time.Now().UnixNano()
	trades := matchOrder(ins.book, ins.state, ins.agg, order)
	ins.mu.Unlock()

	if len(trades) > 0 {
		e.publisher.PublishTrades(trades...)
	}

	return nil
}

func (e *Engine) handleCancel(cmd *protocol.Command) (string, error) {
	ins := e.instrument(cmd.Instrument)

	ins.mu.Lock()
	order, err := ins.book.Cancel(cmd.OrderID)
	if err == nil {
		ins.agg.Apply(order.Side, order.Price, -order.Remaining)
	}
	ins.mu.Unlock()

	if err != nil {
		return "", err
	}

	return protocol.FormatCancelled(cmd.Instrument, cmd.OrderID), nil
}

// Quote returns a consistent point-in-time view of one instrument.
func (e *Engine) Quote(id uint32) Quote {
	ins := e.instrument(id)

	ins.mu.Lock()
	defer ins.mu.Unlock()

	q := Quote{
		Instrument: id,
		LastPrice:  ins.state.LastPrice(),
		Volume:     ins.state.Volume(),
	}
	q.BidPrice, q.BidSize = ins.agg.Best(Buy)
	q.AskPrice, q.AskSize = ins.agg.Best(Sell)
	return q
}

// Snapshot copies both sides of an instrument's book in priority order.
func (e *Engine) Snapshot(id uint32) (bids, asks []Order) {
	ins := e.instrument(id)

	ins.mu.Lock()
	defer ins.mu.Unlock()
	return ins.book.Snapshot()
}

// Shutdown stops the engine from accepting further commands. In-flight
// commands complete normally.
func (e *Engine) Shutdown() {
	e.isShutdown.Store(true)
}
