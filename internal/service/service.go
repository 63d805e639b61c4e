package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"stockwatch/internal/alerting"
	"stockwatch/internal/collector"
	"stockwatch/internal/scheduler"
	"stockwatch/internal/storage"
)

// Options bound the service run.
type Options struct {
	// TotalDuration stops collection after the given elapsed time;
	// zero means run until cancelled.
	TotalDuration time.Duration
	// AlertInterval is the alert loop's evaluation cadence.
	AlertInterval time.Duration
	// AlertsEnabled gates the alert loop entirely.
	AlertsEnabled bool
}

// Service supervises the two loops of the system: the collector writing rows
// on its fixed cadence and the alert engine re-reading the latest row on its
// own. The loops share no in-process state; storage is the only coupling.
type Service struct {
	opts      Options
	scheduler *scheduler.Scheduler
	collector *collector.Collector
	engine    *alerting.Engine
	reader    storage.RowReader
	logger    zerolog.Logger
}

// New constructs the service.
func New(opts Options, sched *scheduler.Scheduler, coll *collector.Collector, engine *alerting.Engine, reader storage.RowReader, logger zerolog.Logger) *Service {
	if opts.AlertInterval <= 0 {
		opts.AlertInterval = 5 * time.Second
	}
	return &Service{
		opts:      opts,
		scheduler: sched,
		collector: coll,
		engine:    engine,
		reader:    reader,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// Run blocks until the context is cancelled or the configured total duration
// elapses. An elapsed duration is a clean stop, not an error.
func (s *Service) Run(ctx context.Context) error {
	if s.opts.TotalDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TotalDuration)
		defer cancel()
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.scheduler.Run(ctx, s.collector.Tick)
	})

	if s.opts.AlertsEnabled && s.engine != nil && s.reader != nil {
		g.Go(func() error {
			return s.alertLoop(ctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// alertLoop polls the most recently committed row and feeds it to the
// engine. A read failure means no data this cycle; the loop always continues
// on its next tick.
func (s *Service) alertLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.AlertInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		row, ok, err := s.reader.Latest(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("latest row unavailable, skipping evaluation cycle")
			continue
		}
		if !ok {
			continue
		}
		s.engine.Evaluate(ctx, row)
	}
}
