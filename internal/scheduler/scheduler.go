// Package scheduler keeps the RealEarth timestamp cache warm so satellite
// frame swaps rarely wait on the products API.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// jobTimeout bounds one refresh run.
const jobTimeout = 30 * time.Second

// Refresher re-fetches the latest timestamps of products and returns how
// many succeeded.
type Refresher interface {
	Refresh(ctx context.Context, products []string) int
}

// Scheduler periodically refreshes the latest timestamp of each product.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	products  []string
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a Scheduler. Nothing runs until Start.
func New(refresher Refresher, products []string, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: refresher,
		products:  products,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the refresh job, runs it once immediately and starts the
// scheduler. Runs are skipped once ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.products) == 0 {
		s.logger.Info("scheduler: no products to refresh")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = 4 * time.Minute
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		s.run(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "products", len(s.products), "interval", interval)
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	ok := s.refresher.Refresh(ctx, s.products)
	s.logger.Debug("timestamp refresh completed",
		"refreshed", ok,
		"products", len(s.products),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	if ok < len(s.products) {
		s.logger.Warn("timestamp refresh incomplete", "refreshed", ok, "products", len(s.products))
	}
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
