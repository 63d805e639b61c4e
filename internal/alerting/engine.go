package alerting

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockwatch/internal/metrics"
	"stockwatch/internal/storage"
)

// Rule configures one ticker's threshold alert: notify recipient once the
// price rises strictly above the threshold.
type Rule struct {
	Ticker    string
	Threshold decimal.Decimal
	Recipient string
}

func (r Rule) equal(other Rule) bool {
	return r.Ticker == other.Ticker &&
		r.Threshold.Equal(other.Threshold) &&
		r.Recipient == other.Recipient
}

// tickerState tracks one ticker's debounce position. armed means eligible to
// fire; it flips to false when an alert is emitted and back to true when the
// price returns to or below the threshold, or when the rule changes.
type tickerState struct {
	armed bool
	rule  Rule
}

// Engine evaluates latest prices against the configured rules, firing at
// most one notification per crossing episode. It owns all alert state; rule
// updates may arrive concurrently from the operator API.
type Engine struct {
	mu       sync.Mutex
	rules    map[string]Rule
	states   map[string]*tickerState
	notifier Notifier
	logger   zerolog.Logger
}

// NewEngine constructs an Engine with the given initial rules. Every ticker
// starts armed.
func NewEngine(rules []Rule, notifier Notifier, logger zerolog.Logger) *Engine {
	e := &Engine{
		rules:    make(map[string]Rule, len(rules)),
		states:   make(map[string]*tickerState, len(rules)),
		notifier: notifier,
		logger:   logger.With().Str("component", "alert_engine").Logger(),
	}
	for _, r := range rules {
		e.rules[r.Ticker] = r
	}
	return e
}

// Rules returns a snapshot of the current rule set.
func (e *Engine) Rules() []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	return out
}

// Rule returns the rule for ticker, if one exists.
func (e *Engine) Rule(ticker string) (Rule, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rules[ticker]
	return r, ok
}

// SetRule replaces the ticker's rule wholesale. The next evaluation detects
// the changed snapshot and re-arms the ticker regardless of current price.
func (e *Engine) SetRule(rule Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[rule.Ticker] = rule
}

// DeleteRule removes a ticker's rule and its state.
func (e *Engine) DeleteRule(ticker string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rules, ticker)
	delete(e.states, ticker)
}

// Evaluate runs every rule against the given row. For each ticker:
//
//	armed  && price >  threshold  -> notify once, disarm
//	armed  && price <= threshold  -> stay armed
//	!armed && price >  threshold  -> stay disarmed (already notified)
//	!armed && price <= threshold  -> re-arm
//
// Absent prices are skipped entirely. A rule whose threshold or recipient
// changed since the last evaluation is re-armed before being evaluated.
// Notification failures are logged and counted; the state still advances, so
// a failed delivery is not retried within the same episode.
func (e *Engine) Evaluate(ctx context.Context, row storage.Row) {
	for _, alert := range e.transition(row) {
		if err := e.notifier.Send(ctx, alert); err != nil {
			metrics.AlertSendFailuresTotal.WithLabelValues(alert.Ticker).Inc()
			e.logger.Error().Err(err).
				Str("ticker", alert.Ticker).
				Str("alert_id", alert.ID.String()).
				Str("recipient", alert.Recipient).
				Msg("failed to deliver alert")
			continue
		}
		e.logger.Info().
			Str("ticker", alert.Ticker).
			Str("alert_id", alert.ID.String()).
			Str("price", alert.Price.String()).
			Str("threshold", alert.Threshold.String()).
			Msg("alert sent")
	}
}

// transition applies the state machine under the lock and returns the alerts
// to emit. Sending happens outside the lock so a slow SMTP round trip cannot
// block rule updates.
func (e *Engine) transition(row storage.Row) []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	var fired []Alert
	for ticker, rule := range e.rules {
		st := e.states[ticker]
		if st == nil {
			st = &tickerState{armed: true, rule: rule}
			e.states[ticker] = st
		} else if !st.rule.equal(rule) {
			// Reconfiguration re-arms unconditionally so the new rule
			// gets a fresh evaluation.
			st.armed = true
			st.rule = rule
		}

		price, ok := row.Price(ticker)
		if !ok {
			continue
		}

		switch {
		case st.armed && price.GreaterThan(rule.Threshold):
			st.armed = false
			metrics.AlertsFiredTotal.WithLabelValues(ticker).Inc()
			fired = append(fired, Alert{
				ID:         uuid.New(),
				Ticker:     ticker,
				Price:      price,
				Threshold:  rule.Threshold,
				Recipient:  rule.Recipient,
				CapturedAt: row.CapturedAt,
			})
		case !st.armed && price.LessThanOrEqual(rule.Threshold):
			st.armed = true
		}
	}
	return fired
}

// Armed reports whether the ticker is currently eligible to fire. Tickers
// never evaluated yet report true.
func (e *Engine) Armed(ticker string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.states[ticker]
	if st == nil {
		return true
	}
	return st.armed
}
