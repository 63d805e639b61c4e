package source

import (
	"context"

	"github.com/shopspring/decimal"
)

// QuoteSource retrieves the current traded price for one ticker symbol.
// "No value available" is a normal result (ok=false), not an error; errors
// are reserved for transport failures.
type QuoteSource interface {
	Fetch(ctx context.Context, ticker string) (price decimal.Decimal, ok bool, err error)
}
