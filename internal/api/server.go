package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"stockwatch/internal/alerting"
	"stockwatch/internal/storage"
)

// LatestReader serves "latest" reads, typically cache-first.
type LatestReader interface {
	GetLatest(ctx context.Context) (storage.Row, bool, error)
}

// Server exposes the operator surface: latest prices, history, and the
// alert rule configuration.
type Server struct {
	store  storage.RowReader
	cache  LatestReader
	engine *alerting.Engine
	logger zerolog.Logger
}

// NewServer builds the HTTP handler. cache may be nil.
func NewServer(store storage.RowReader, cache LatestReader, engine *alerting.Engine, logger zerolog.Logger) http.Handler {
	s := &Server{
		store:  store,
		cache:  cache,
		engine: engine,
		logger: logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/v1/prices/latest", s.handleLatest)
	mux.HandleFunc("GET /api/v1/prices/history", s.handleHistory)
	mux.HandleFunc("GET /api/v1/alerts", s.handleListRules)
	mux.HandleFunc("PUT /api/v1/alerts/{ticker}", s.handlePutRule)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Serve runs the listener until ctx is cancelled, then shuts down cleanly.
func Serve(ctx context.Context, addr string, handler http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http shutdown failed")
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
