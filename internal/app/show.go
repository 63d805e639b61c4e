package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recent rows, one line per tick, absent values as "-".
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show rows")
	}
	defer closeStore()

	rows, err := store.ReadRecent(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no rows found")
		return nil
	}

	tickers := a.Config.Collector.Tickers

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	header := "Time (UTC)"
	for _, t := range tickers {
		header += "\t" + t
	}
	fmt.Fprintln(writer, header)

	for _, row := range rows {
		line := row.CapturedAt.UTC().Format(time.RFC3339)
		for _, t := range tickers {
			if price, ok := row.Price(t); ok {
				line += "\t" + price.StringFixed(2)
			} else {
				line += "\t-"
			}
		}
		fmt.Fprintln(writer, line)
	}

	return writer.Flush()
}
