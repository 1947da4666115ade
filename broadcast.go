package exchange

import (
	"log/slog"
	"sync"

	"github.com/marketgrid/exchange/protocol"
	"github.com/rs/xid"
)

// Sink is the outbound side of one connection. Send must not block
// indefinitely; a full or closed sink returns an error and the notification
// is dropped for that recipient only.
type Sink interface {
	Send(line string) error
}

// Registry tracks live connections and fans trade notifications out to all
// of them except the originator. Its membership map has its own lock,
// independent of any instrument's exclusive region, and broadcast iterates
// a snapshot of the membership so concurrent register/deregister never
// corrupts an in-progress fan-out.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Sink

	startThreshold int
	startOnce      sync.Once
	onThreshold    func()
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Sink),
	}
}

// OnConnCount arms a one-shot signal fired the first time the live
// connection count reaches threshold. Used to start the market data feed.
func (r *Registry) OnConnCount(threshold int, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startThreshold = threshold
	r.onThreshold = fn
}

// Register adds a connection and returns its assigned connection ID. The ID
// is the origin tag carried on every command and used for echo suppression.
func (r *Registry) Register(sink Sink) string {
	id := xid.New().String()

	r.mu.Lock()
	r.conns[id] = sink
	count := len(r.conns)
	threshold, fn := r.startThreshold, r.onThreshold
	r.mu.Unlock()

	if fn != nil && threshold > 0 && count >= threshold {
		r.startOnce.Do(func() {
			go fn()
		})
	}

	logger.Info("connection registered", slog.String("conn_id", id), slog.Int("count", count))
	return id
}

// Deregister removes a connection. It is idempotent and safe to call
// concurrently with an in-flight broadcast.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	delete(r.conns, id)
	count := len(r.conns)
	r.mu.Unlock()

	logger.Info("connection deregistered", slog.String("conn_id", id), slog.Int("count", count))
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// PublishTrades delivers each trade to every registered connection except
// the trade's originator. Send failures are isolated per recipient: the
// notification is dropped and delivery to the remaining sinks continues.
func (r *Registry) PublishTrades(trades ...*Trade) {
	r.mu.RLock()
	snapshot := make(map[string]Sink, len(r.conns))
	for id, sink := range r.conns {
		snapshot[id] = sink
	}
	r.mu.RUnlock()

	for _, trade := range trades {
		line := protocol.FormatTrade(
			trade.Instrument, trade.Price, trade.Quantity,
			trade.BuyOrderID, trade.SellOrderID, trade.Timestamp.UnixNano())

		for id, sink := range snapshot {
			if id == trade.TakerConnID {
				continue
			}
			if err := sink.Send(line); err != nil {
				logger.Warn("dropping trade notification",
					slog.String("conn_id", id),
					slog.String("err", err.Error()))
			}
		}
	}
}

// MemorySink stores sent lines in memory, useful for testing.
type MemorySink struct {
	mu    sync.RWMutex
	lines []string
}

// NewMemorySink creates a new MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Send appends the line to the in-memory slice.
func (m *MemorySink) Send(line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, line)
	return nil
}

// Count returns the number of lines received.
func (m *MemorySink) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lines)
}

// Lines returns a copy of all lines received.
func (m *MemorySink) Lines() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lines := make([]string, len(m.lines))
	copy(lines, m.lines)
	return lines
}
