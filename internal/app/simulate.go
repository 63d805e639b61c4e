package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"stockwatch/internal/alerting"
	"stockwatch/internal/storage"
)

// SimulateAlert drives the alert engine once with a synthetic price so the
// delivery path can be verified end to end without a database.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if opts.Recipient == "" {
		return errors.New("a recipient is required; pass --recipient or configure a rule for the ticker")
	}

	rule := alerting.Rule{
		Ticker:    opts.Ticker,
		Threshold: opts.Threshold,
		Recipient: opts.Recipient,
	}
	engine := alerting.NewEngine([]alerting.Rule{rule}, a.newNotifier(), a.Logger)

	price := opts.Price
	row := storage.Row{
		CapturedAt: time.Now().UTC(),
		Prices:     map[string]*decimal.Decimal{opts.Ticker: &price},
	}

	engine.Evaluate(ctx, row)

	if engine.Armed(opts.Ticker) {
		a.Logger.Info().
			Str("ticker", opts.Ticker).
			Str("price", price.String()).
			Str("threshold", opts.Threshold.String()).
			Msg("price at or below threshold; no alert fired")
	}
	return nil
}

// ResolveSimulateRule fills threshold and recipient from the configured rule
// for the ticker when the CLI did not override them.
func (a *App) ResolveSimulateRule(opts SimulateOptions) SimulateOptions {
	for _, rc := range a.Config.Alerts.Rules {
		if rc.Ticker != opts.Ticker {
			continue
		}
		if opts.Threshold.IsZero() {
			opts.Threshold = decimal.NewFromFloat(rc.Threshold)
		}
		if opts.Recipient == "" {
			opts.Recipient = rc.Recipient
		}
	}
	return opts
}
