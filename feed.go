package exchange

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/marketgrid/exchange/protocol"
	"github.com/rs/xid"
)

// MarketDataFeed replays a historical command file into the engine at a
// bounded rate, as if the commands came from one more trader connection.
// Its synthetic connection ID flows through the same dispatch path, so
// echo suppression treats feed-originated trades uniformly.
//
// Start is one-shot: the registry fires it once the live connection count
// first reaches its threshold, and later threshold crossings are ignored.
type MarketDataFeed struct {
	path     string
	interval time.Duration
	engine   *Engine
	connID   string

	startOnce sync.Once
	done      chan struct{}
}

// NewMarketDataFeed creates a feed for the given command file. interval is
// the pacing delay between replayed commands.
func NewMarketDataFeed(path string, interval time.Duration, engine *Engine) *MarketDataFeed {
	return &MarketDataFeed{
		path:     path,
		interval: interval,
		engine:   engine,
		connID:   "feed-" + xid.New().String(),
		done:     make(chan struct{}),
	}
}

// ConnID returns the synthetic connection ID the feed's commands carry.
func (f *MarketDataFeed) ConnID() string {
	return f.connID
}

// Start launches the replay goroutine. Only the first call has any effect.
func (f *MarketDataFeed) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		go f.run(ctx)
	})
}

// Done is closed when the source is exhausted or the context is cancelled.
func (f *MarketDataFeed) Done() <-chan struct{} {
	return f.done
}

func (f *MarketDataFeed) run(ctx context.Context) {
	defer close(f.done)

	file, err := os.Open(f.path)
	if err != nil {
		logger.Error("market data feed failed to open source", slog.String("path", f.path), slog.String("err", err.Error()))
		return
	}
	defer file.Close()

	logger.Info("market data feed started", slog.String("path", f.path), slog.String("conn_id", f.connID))

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	var replayed, skipped int
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			logger.Info("market data feed stopped", slog.Int("replayed", replayed))
			return
		case <-ticker.C:
		}

		cmd, err := protocol.ParseCommand(scanner.Text())
		if err != nil {
			skipped++
			logger.Warn("skipping malformed feed line", slog.String("err", err.Error()))
			continue
		}

		if _, err := f.engine.Handle(f.connID, cmd); err != nil {
			if errors.Is(err, ErrShutdown) {
				return
			}
			// Rejections (e.g. cancel of an already-matched order) are
			// expected when replaying a historical stream.
			skipped++
			continue
		}
		replayed++
	}

	if err := scanner.Err(); err != nil {
		logger.Error("market data feed read failed", slog.String("err", err.Error()))
	}

	logger.Info("market data feed exhausted",
		slog.Int("replayed", replayed),
		slog.Int("skipped", skipped))
}
