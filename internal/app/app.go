package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"stockwatch/internal/alerting"
	"stockwatch/internal/api"
	"stockwatch/internal/cache"
	"stockwatch/internal/collector"
	"stockwatch/internal/config"
	"stockwatch/internal/scheduler"
	"stockwatch/internal/service"
	"stockwatch/internal/source"
	"stockwatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newQuoteSource() source.QuoteSource {
	return source.NewGoogleFinance(source.GoogleFinanceOptions{
		BaseURL:   a.Config.Collector.SourceBaseURL,
		Exchange:  a.Config.Collector.Exchange,
		Timeout:   a.Config.Collector.FetchTimeout,
		UserAgent: a.Config.Collector.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	return alerting.NewSMTPNotifier(alerting.SMTPOptions{
		Host:     a.Config.SMTP.Host,
		Port:     a.Config.SMTP.Port,
		Username: a.Config.SMTP.Username,
		Password: a.Config.SMTP.Password,
		Sender:   a.Config.SMTP.Sender,
		Timeout:  a.Config.SMTP.Timeout,
	}, a.Logger)
}

func (a *App) newEngine(notifier alerting.Notifier) *alerting.Engine {
	rules := make([]alerting.Rule, 0, len(a.Config.Alerts.Rules))
	for _, rc := range a.Config.Alerts.Rules {
		rules = append(rules, alerting.Rule{
			Ticker:    rc.Ticker,
			Threshold: decimal.NewFromFloat(rc.Threshold),
			Recipient: rc.Recipient,
		})
	}
	return alerting.NewEngine(rules, notifier, a.Logger)
}

func (a *App) newCache() *cache.LatestCache {
	if a.Config.Redis.Addr == "" {
		return nil
	}
	return cache.New(a.Config.Redis.Addr, a.Config.Redis.DB, a.Config.Redis.TTL, a.Logger)
}

// openStore connects the quote store and ensures its schema exists.
func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool, a.Config.Collector.Tickers)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running collection and alerting service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn is required to run the collector")
	}
	defer closeStore()

	latest := a.newCache()
	if latest != nil {
		if err := latest.Ping(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("redis unreachable; latest-row cache disabled")
			latest = nil
		} else {
			defer latest.Close()
		}
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Collector.Interval,
		StartupDelay: a.Config.Collector.StartupDelay,
	}, a.Logger)

	var sink collector.LatestSink
	if latest != nil {
		sink = latest
	}
	coll := collector.New(collector.Options{
		Tickers:      a.Config.Collector.Tickers,
		FetchTimeout: a.Config.Collector.FetchTimeout,
	}, a.newQuoteSource(), store, sink, a.Logger)

	// The engine exists even when alerting is disabled so the operator api
	// can still read and edit rules; only the evaluation loop is gated.
	engine := a.newEngine(a.newNotifier())

	svc := service.New(service.Options{
		TotalDuration: a.Config.Collector.TotalDuration,
		AlertInterval: a.Config.Alerts.Interval,
		AlertsEnabled: a.Config.Alerts.Enabled,
	}, sched, coll, engine, store, a.Logger)

	// The api listener lives exactly as long as the service: a bounded run
	// ending cleanly must also stop the listener.
	runCtx, stopAll := context.WithCancel(ctx)
	defer stopAll()

	var g errgroup.Group
	g.Go(func() error {
		defer stopAll()
		return svc.Run(runCtx)
	})

	if a.Config.HTTP.Enabled {
		var latestReader api.LatestReader
		if latest != nil {
			latestReader = latest
		}
		handler := api.NewServer(store, latestReader, engine, a.Logger)
		g.Go(func() error {
			a.Logger.Info().Str("addr", a.Config.HTTP.Addr).Msg("starting operator api")
			return api.Serve(runCtx, a.Config.HTTP.Addr, handler, a.Logger)
		})
	}

	a.Logger.Info().
		Int("tickers", len(a.Config.Collector.Tickers)).
		Dur("interval", a.Config.Collector.Interval).
		Msg("starting collection service")

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("collection service stopped")
	return nil
}

// ExportOptions hold parameters for exporting history.
type ExportOptions struct {
	Ticker    string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SimulateOptions configure one synthetic alert evaluation.
type SimulateOptions struct {
	Ticker    string
	Price     decimal.Decimal
	Threshold decimal.Decimal
	Recipient string
}
