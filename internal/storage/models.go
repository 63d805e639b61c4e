package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row is one persisted multi-ticker observation. Prices maps ticker symbol
// to the captured price; a nil entry means the source had no value for that
// ticker at capture time, which is distinct from a zero price.
type Row struct {
	CapturedAt time.Time
	Prices     map[string]*decimal.Decimal
	CreatedAt  time.Time
}

// Price returns the captured value for ticker and whether one was present.
func (r Row) Price(ticker string) (decimal.Decimal, bool) {
	p, ok := r.Prices[ticker]
	if !ok || p == nil {
		return decimal.Decimal{}, false
	}
	return *p, true
}
