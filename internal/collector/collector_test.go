package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockwatch/internal/storage"
)

// fakeSource returns canned behaviour per ticker: a fixed price, an absent
// value, a transport error, or a hang that only the fetch context ends.
type fakeSource struct {
	prices map[string]float64
	absent map[string]bool
	errs   map[string]bool
	hangs  map[string]bool
}

func (f *fakeSource) Fetch(ctx context.Context, ticker string) (decimal.Decimal, bool, error) {
	if f.hangs[ticker] {
		<-ctx.Done()
		return decimal.Decimal{}, false, ctx.Err()
	}
	if f.errs[ticker] {
		return decimal.Decimal{}, false, errors.New("connection refused")
	}
	if f.absent[ticker] {
		return decimal.Decimal{}, false, nil
	}
	return decimal.NewFromFloat(f.prices[ticker]), true, nil
}

type fakeStore struct {
	mu   sync.Mutex
	rows []storage.Row
	fail bool
}

func (f *fakeStore) Append(ctx context.Context, row storage.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("%w: connection refused", storage.ErrWriteFailed)
	}
	f.rows = append(f.rows, row)
	return nil
}

func tickerList(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("TICK%d", i+1)
	}
	return out
}

func TestTickIsolatesFetchFailures(t *testing.T) {
	tickers := tickerList(10)
	src := &fakeSource{
		prices: map[string]float64{},
		absent: map[string]bool{},
		errs:   map[string]bool{"TICK4": true},
	}
	for i, ticker := range tickers {
		src.prices[ticker] = float64(100 + i)
	}

	store := &fakeStore{}
	c := New(Options{Tickers: tickers, FetchTimeout: time.Second}, src, store, nil, zerolog.Nop())

	if err := c.Tick(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("tick should complete despite a failing ticker: %v", err)
	}

	if len(store.rows) != 1 {
		t.Fatalf("expected one appended row, got %d", len(store.rows))
	}
	row := store.rows[0]
	if len(row.Prices) != 10 {
		t.Fatalf("row should carry an entry for all 10 tickers, got %d", len(row.Prices))
	}

	present := 0
	for ticker, price := range row.Prices {
		if ticker == "TICK4" {
			if price != nil {
				t.Fatal("failing ticker must be recorded as absent")
			}
			continue
		}
		if price == nil {
			t.Fatalf("ticker %s should have a value", ticker)
		}
		present++
	}
	if present != 9 {
		t.Fatalf("expected 9 numeric values, got %d", present)
	}
}

func TestTickAppendsAllAbsentRow(t *testing.T) {
	tickers := tickerList(3)
	src := &fakeSource{errs: map[string]bool{"TICK1": true, "TICK2": true, "TICK3": true}}
	store := &fakeStore{}
	c := New(Options{Tickers: tickers, FetchTimeout: time.Second}, src, store, nil, zerolog.Nop())

	ts := time.Now().UTC()
	if err := c.Tick(context.Background(), ts); err != nil {
		t.Fatalf("all-absent tick should still append: %v", err)
	}

	if len(store.rows) != 1 {
		t.Fatalf("expected one row, got %d", len(store.rows))
	}
	row := store.rows[0]
	if !row.CapturedAt.Equal(ts) {
		t.Fatal("row must carry the tick timestamp")
	}
	for ticker, price := range row.Prices {
		if price != nil {
			t.Fatalf("ticker %s should be absent", ticker)
		}
	}
}

func TestTickSharesOneTimestamp(t *testing.T) {
	tickers := tickerList(4)
	src := &fakeSource{prices: map[string]float64{"TICK1": 1, "TICK2": 2, "TICK3": 3, "TICK4": 4}}
	store := &fakeStore{}
	c := New(Options{Tickers: tickers, FetchTimeout: time.Second}, src, store, nil, zerolog.Nop())

	ts := time.Date(2025, 11, 3, 9, 15, 0, 0, time.UTC)
	if err := c.Tick(context.Background(), ts); err != nil {
		t.Fatal(err)
	}
	if !store.rows[0].CapturedAt.Equal(ts) {
		t.Fatalf("captured_at = %v, want %v", store.rows[0].CapturedAt, ts)
	}
}

func TestTickReportsAppendFailure(t *testing.T) {
	tickers := tickerList(2)
	src := &fakeSource{prices: map[string]float64{"TICK1": 1, "TICK2": 2}}
	store := &fakeStore{fail: true}
	c := New(Options{Tickers: tickers, FetchTimeout: time.Second}, src, store, nil, zerolog.Nop())

	err := c.Tick(context.Background(), time.Now().UTC())
	if !errors.Is(err, storage.ErrWriteFailed) {
		t.Fatalf("expected write failure to surface, got %v", err)
	}
}

func TestTickBoundsHungFetch(t *testing.T) {
	tickers := []string{"TICK1", "TICK2"}
	src := &fakeSource{
		prices: map[string]float64{"TICK2": 42},
		hangs:  map[string]bool{"TICK1": true},
	}
	store := &fakeStore{}
	c := New(Options{Tickers: tickers, FetchTimeout: 50 * time.Millisecond}, src, store, nil, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		done <- c.Tick(context.Background(), time.Now().UTC())
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("tick should complete: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hung fetch delayed the tick past its timeout")
	}

	row := store.rows[0]
	if row.Prices["TICK1"] != nil {
		t.Fatal("hung ticker must be recorded as absent")
	}
	if row.Prices["TICK2"] == nil {
		t.Fatal("healthy ticker must still be recorded")
	}
}
