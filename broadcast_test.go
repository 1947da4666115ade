package exchange

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTrade(taker string) *Trade {
	return &Trade{
		Instrument:  1,
		Price:       decimal.NewFromInt(100),
		Quantity:    3,
		BuyOrderID:  2,
		SellOrderID: 1,
		BuyConnID:   taker,
		SellConnID:  "conn-b",
		TakerConnID: taker,
		Timestamp:   time.Now().UTC(),
	}
}

func TestRegistryRegisterDeregister(t *testing.T) {
	registry := NewRegistry()

	idA := registry.Register(NewMemorySink())
	idB := registry.Register(NewMemorySink())
	assert.NotEqual(t, idA, idB)
	assert.Equal(t, 2, registry.Count())

	registry.Deregister(idA)
	assert.Equal(t, 1, registry.Count())

	// Deregistration is idempotent.
	registry.Deregister(idA)
	assert.Equal(t, 1, registry.Count())
}

func TestBroadcastExcludesOriginator(t *testing.T) {
	// Connections {A, B, C}: a trade originated by A's order crossing B's
	// resting order reaches B and C but never A.
	registry := NewRegistry()

	sinkA := NewMemorySink()
	sinkB := NewMemorySink()
	sinkC := NewMemorySink()
	idA := registry.Register(sinkA)
	_ = registry.Register(sinkB)
	_ = registry.Register(sinkC)

	registry.PublishTrades(testTrade(idA))

	assert.Equal(t, 0, sinkA.Count())
	require.Equal(t, 1, sinkB.Count())
	assert.Equal(t, 1, sinkC.Count())
	assert.Contains(t, sinkB.Lines()[0], "T,1,100,3,2,1,")
}

type failingSink struct {
	calls atomic.Int32
}

func (s *failingSink) Send(string) error {
	s.calls.Add(1)
	return errors.New("broken pipe")
}

func TestBroadcastIsolatesSendFailures(t *testing.T) {
	registry := NewRegistry()

	broken := &failingSink{}
	healthy := NewMemorySink()
	_ = registry.Register(broken)
	_ = registry.Register(healthy)

	registry.PublishTrades(testTrade("someone-else"))

	// The failing sink was attempted, the healthy one still delivered.
	assert.Equal(t, int32(1), broken.calls.Load())
	assert.Equal(t, 1, healthy.Count())
}

type deregisteringSink struct {
	registry *Registry
	id       string
	once     sync.Once
	received atomic.Int32
}

func (s *deregisteringSink) Send(string) error {
	// A connection closing mid-broadcast must not crash or deadlock the
	// broadcaster.
	s.once.Do(func() {
		s.registry.Deregister(s.id)
	})
	s.received.Add(1)
	return nil
}

func TestBroadcastSurvivesConcurrentDeregister(t *testing.T) {
	registry := NewRegistry()

	sink := &deregisteringSink{registry: registry}
	sink.id = registry.Register(sink)
	other := NewMemorySink()
	_ = registry.Register(other)

	done := make(chan struct{})
	go func() {
		registry.PublishTrades(testTrade("someone-else"), testTrade("someone-else"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast deadlocked")
	}

	assert.Equal(t, 2, other.Count())
	assert.Equal(t, 1, registry.Count()) // only the surviving connection remains
}

func TestRegistryThresholdSignalFiresOnce(t *testing.T) {
	registry := NewRegistry()

	var fired atomic.Int32
	registry.OnConnCount(2, func() {
		fired.Add(1)
	})

	idA := registry.Register(NewMemorySink())
	assert.Equal(t, int32(0), fired.Load())

	_ = registry.Register(NewMemorySink())
	assert.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// Dropping below and crossing the threshold again does not re-fire.
	registry.Deregister(idA)
	_ = registry.Register(NewMemorySink())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}
