package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// priceSelector matches the current-price node on a Google Finance quote
// page. Markup-dependent; when Google changes the class names, quotes simply
// come back absent until this is updated.
const priceSelector = ".YMlKec.fxKbKc"

// GoogleFinanceOptions parameterise the quote scraper.
type GoogleFinanceOptions struct {
	BaseURL   string
	Exchange  string
	Timeout   time.Duration
	UserAgent string
}

// GoogleFinance scrapes current prices from Google Finance quote pages.
type GoogleFinance struct {
	opts    GoogleFinanceOptions
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewGoogleFinance constructs the scraper.
func NewGoogleFinance(opts GoogleFinanceOptions, logger zerolog.Logger) *GoogleFinance {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.google.com/finance/quote"
	}
	if opts.Exchange == "" {
		opts.Exchange = "NSE"
	}

	return &GoogleFinance{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		logger:  logger.With().Str("component", "google_finance").Logger(),
	}
}

// Fetch loads the quote page for ticker and extracts the current price. A
// missing or unparseable price node yields ok=false with no error.
func (g *GoogleFinance) Fetch(ctx context.Context, ticker string) (decimal.Decimal, bool, error) {
	url := fmt.Sprintf("%s/%s:%s", g.baseURL, ticker, g.opts.Exchange)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	ua := strings.TrimSpace(g.opts.UserAgent)
	if ua == "" {
		ua = "Mozilla/5.0"
	}
	req.Header.Set("User-Agent", ua)

	resp, err := g.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("fetch quote page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.logger.Debug().Str("ticker", ticker).Int("status", resp.StatusCode).Msg("quote page returned non-200")
		return decimal.Decimal{}, false, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("parse quote page: %w", err)
	}

	text := doc.Find(priceSelector).First().Text()
	price, ok := parsePrice(text)
	if !ok {
		g.logger.Debug().Str("ticker", ticker).Str("raw", text).Msg("price node missing or unparseable")
		return decimal.Decimal{}, false, nil
	}
	return price, true, nil
}

// parsePrice strips currency glyphs and grouping separators from the raw
// node text and parses the remainder as a decimal.
func parsePrice(raw string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ',':
			// thousands separator
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.Decimal{}, false
	}
	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return price, true
}

var _ QuoteSource = (*GoogleFinance)(nil)
