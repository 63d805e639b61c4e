package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"stockwatch/internal/storage"
)

// Export renders one ticker's history as CSV and/or a PNG trend chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Ticker == "" {
		return errors.New("--ticker is required")
	}
	if !containsTicker(a.Config.Collector.Tickers, opts.Ticker) {
		return fmt.Errorf("ticker %s is not in the configured watchlist", opts.Ticker)
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	defer closeStore()

	rows, err := store.ReadAll(ctx)
	if err != nil {
		return err
	}

	rows = filterWindow(rows, opts.From, opts.To)
	if len(rows) == 0 {
		a.Logger.Info().Msg("no rows found for export window")
		return nil
	}

	downsampled := downsampleRows(rows, opts.MaxPoints)
	a.Logger.Info().
		Int("total", len(rows)).
		Int("exported", len(downsampled)).
		Str("ticker", opts.Ticker).
		Msg("exporting history")

	if opts.CSVPath != "" {
		if err := writeHistoryCSV(opts.CSVPath, opts.Ticker, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeHistoryPNG(opts.PNGPath, opts.Ticker, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func containsTicker(tickers []string, ticker string) bool {
	for _, t := range tickers {
		if t == ticker {
			return true
		}
	}
	return false
}

func filterWindow(rows []storage.Row, from, to *time.Time) []storage.Row {
	out := rows[:0]
	for _, row := range rows {
		if from != nil && row.CapturedAt.Before(*from) {
			continue
		}
		if to != nil && !row.CapturedAt.Before(*to) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func downsampleRows(rows []storage.Row, max int) []storage.Row {
	if max <= 0 || len(rows) <= max {
		return rows
	}

	result := make([]storage.Row, 0, max)
	step := float64(len(rows)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(rows) {
			idx = len(rows) - 1
		}
		result = append(result, rows[idx])
	}
	return result
}

func writeHistoryCSV(path, ticker string, rows []storage.Row) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"captured_at", "ticker", "price"}); err != nil {
		return err
	}

	for _, row := range rows {
		value := ""
		if price, ok := row.Price(ticker); ok {
			value = price.String()
		}
		record := []string{row.CapturedAt.Format(time.RFC3339), ticker, value}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeHistoryPNG(path, ticker string, rows []storage.Row) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, 0, len(rows))
	y := make([]float64, 0, len(rows))
	for _, row := range rows {
		price, ok := row.Price(ticker)
		if !ok {
			// Absent readings are gaps, not zeroes; skip them so the
			// trend line connects real observations only.
			continue
		}
		x = append(x, row.CapturedAt)
		y = append(y, price.InexactFloat64())
	}
	if len(x) == 0 {
		return fmt.Errorf("no recorded prices for %s in the export window", ticker)
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    ticker,
				XValues: x,
				YValues: y,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
