package exchange

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFeedFile(t *testing.T, lines string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

func TestMarketDataFeedReplay(t *testing.T) {
	registry := NewRegistry()
	engine := NewEngine(registry)

	path := writeFeedFile(t,
		"N,1,S,100,5,1\n"+
			"N,1,B,100,3,2\n"+
			"garbage line\n"+
			"X,1,1\n")

	feed := NewMarketDataFeed(path, time.Millisecond, engine)
	feed.Start(context.Background())

	select {
	case <-feed.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not finish")
	}

	// Sell 5@100 rested, buy 3@100 matched against it, the malformed line
	// was skipped, and the cancel removed the 2 remaining.
	q := engine.Quote(1)
	assert.True(t, q.LastPrice.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, int64(3), q.Volume)

	bids, asks := engine.Snapshot(1)
	assert.Empty(t, bids)
	assert.Empty(t, asks)
}

func TestMarketDataFeedTradesCarrySyntheticOrigin(t *testing.T) {
	registry := NewRegistry()
	engine := NewEngine(registry)

	observer := NewMemorySink()
	_ = registry.Register(observer)

	path := writeFeedFile(t, "N,1,S,100,5,1\nN,1,B,100,5,2\n")

	feed := NewMarketDataFeed(path, time.Millisecond, engine)
	feed.Start(context.Background())
	<-feed.Done()

	// The feed self-crossed; its own synthetic connection is the taker, so
	// the registered observer still receives the trade.
	assert.Eventually(t, func() bool {
		return observer.Count() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, feed.ConnID(), "feed-")
}

func TestMarketDataFeedStartsOnce(t *testing.T) {
	registry := NewRegistry()
	engine := NewEngine(registry)

	path := writeFeedFile(t, "N,1,B,100,5,1\n")

	feed := NewMarketDataFeed(path, time.Millisecond, engine)
	feed.Start(context.Background())
	feed.Start(context.Background()) // second call is a no-op
	<-feed.Done()

	bids, _ := engine.Snapshot(1)
	assert.Len(t, bids, 1)
}

func TestMarketDataFeedCancelledContext(t *testing.T) {
	registry := NewRegistry()
	engine := NewEngine(registry)

	path := writeFeedFile(t, "N,1,B,100,5,1\nN,1,B,99,5,2\nN,1,B,98,5,3\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	feed := NewMarketDataFeed(path, time.Hour, engine)
	feed.Start(ctx)

	select {
	case <-feed.Done():
	case <-time.After(time.Second):
		t.Fatal("feed did not observe cancellation")
	}

	bids, _ := engine.Snapshot(1)
	assert.Empty(t, bids)
}
