package collector

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockwatch/internal/metrics"
	"stockwatch/internal/source"
	"stockwatch/internal/storage"
)

// LatestSink receives the freshly appended row for cheap "latest" reads.
type LatestSink interface {
	SetLatest(ctx context.Context, row storage.Row) error
}

// Options parameterise the collector.
type Options struct {
	Tickers      []string
	FetchTimeout time.Duration
}

// Collector assembles one row per tick: a single shared capture timestamp
// plus the current price of every configured ticker, fetched concurrently.
// A ticker whose fetch fails, times out, or returns no value is recorded as
// absent; the tick itself always completes and always appends its row.
type Collector struct {
	opts   Options
	quotes source.QuoteSource
	store  storage.RowAppender
	sink   LatestSink
	logger zerolog.Logger
}

// New constructs a Collector. sink may be nil.
func New(opts Options, quotes source.QuoteSource, store storage.RowAppender, sink LatestSink, logger zerolog.Logger) *Collector {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	return &Collector{
		opts:   opts,
		quotes: quotes,
		store:  store,
		sink:   sink,
		logger: logger.With().Str("component", "collector").Logger(),
	}
}

// Tick samples every ticker and appends the assembled row. The returned
// error covers the append only; fetch failures never escape a tick.
func (c *Collector) Tick(ctx context.Context, ts time.Time) error {
	row := storage.Row{
		CapturedAt: ts,
		Prices:     make(map[string]*decimal.Decimal, len(c.opts.Tickers)),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, ticker := range c.opts.Tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
			defer cancel()

			price, ok, err := c.quotes.Fetch(fetchCtx, ticker)
			if err != nil {
				metrics.FetchFailuresTotal.WithLabelValues(ticker).Inc()
				c.logger.Warn().Err(err).Str("ticker", ticker).Msg("fetch failed, recording absent value")
				ok = false
			} else if !ok {
				metrics.FetchFailuresTotal.WithLabelValues(ticker).Inc()
			}

			mu.Lock()
			defer mu.Unlock()
			if !ok {
				row.Prices[ticker] = nil
				return
			}
			value := price
			row.Prices[ticker] = &value
		}(ticker)
	}
	wg.Wait()

	metrics.TicksTotal.Inc()

	if err := c.store.Append(ctx, row); err != nil {
		metrics.AppendFailuresTotal.Inc()
		// No immediate retry; the next tick produces the next row.
		return err
	}
	metrics.RowsAppendedTotal.Inc()

	if c.sink != nil {
		if err := c.sink.SetLatest(ctx, row); err != nil {
			c.logger.Warn().Err(err).Msg("failed to update latest-row cache")
		}
	}

	c.logger.Info().
		Time("captured_at", ts).
		Int("tickers", len(c.opts.Tickers)).
		Int("absent", countAbsent(row)).
		Msg("row recorded")
	return nil
}

func countAbsent(row storage.Row) int {
	n := 0
	for _, p := range row.Prices {
		if p == nil {
			n++
		}
	}
	return n
}
