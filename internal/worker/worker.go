// Package worker runs the periodic claim sweep and the delivery worker pool.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/mlorenc/birthday-notify/internal/model"
	"github.com/mlorenc/birthday-notify/internal/service"
)

// Runner wires the cron-triggered sweep to a bounded pool of delivery
// workers. Several runners may point at the same database; the claim
// transaction keeps them from stepping on each other.
type Runner struct {
	claims   *service.ClaimCoordinator
	delivery *service.DeliveryCoordinator
	spec     string
	batch    int
	workers  int
	log      zerolog.Logger

	cron *cron.Cron
	jobs chan *model.Event
	wg   sync.WaitGroup
}

// NewRunner constructs a Runner. spec is a cron expression with seconds
// granularity, e.g. "*/30 * * * * *".
func NewRunner(claims *service.ClaimCoordinator, delivery *service.DeliveryCoordinator, spec string, batch, workers int, log zerolog.Logger) *Runner {
	return &Runner{
		claims:   claims,
		delivery: delivery,
		spec:     spec,
		batch:    batch,
		workers:  workers,
		log:      log.With().Str("component", "worker").Logger(),
	}
}

// Start launches the worker pool and the sweep schedule. It returns once the
// schedule is running; work happens on background goroutines until Stop.
func (r *Runner) Start(ctx context.Context) error {
	r.jobs = make(chan *model.Event, r.batch)

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	r.cron = cron.New(cron.WithSeconds())
	if _, err := r.cron.AddFunc(r.spec, func() { r.sweep(ctx) }); err != nil {
		return fmt.Errorf("register sweep schedule %q: %w", r.spec, err)
	}
	r.cron.Start()

	r.log.Info().Str("spec", r.spec).Int("workers", r.workers).Int("batch", r.batch).
		Msg("runner started")
	return nil
}

// Stop halts the sweep schedule, drains in-flight deliveries, and waits for
// the pool to exit or ctx to give up.
func (r *Runner) Stop(ctx context.Context) error {
	// Stop firing new sweeps, then wait out any sweep still enqueueing.
	<-r.cron.Stop().Done()
	close(r.jobs)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info().Msg("runner stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("runner shutdown timed out: %w", ctx.Err())
	}
}

// sweep claims one batch of due events and hands them to the pool. Claimed
// events are already InFlight, so an overlapping sweep cannot pick them up
// again even while this one is still enqueueing.
func (r *Runner) sweep(ctx context.Context) {
	events, err := r.claims.ClaimReady(ctx, r.batch, time.Now().UTC())
	if err != nil {
		r.log.Error().Err(err).Msg("claim sweep failed")
		return
	}
	for _, e := range events {
		select {
		case r.jobs <- e:
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.log.With().Int("worker", id).Logger()
	for e := range r.jobs {
		if err := r.delivery.Process(ctx, e); err != nil {
			log.Error().Err(err).Str("event_id", e.ID).Msg("delivery processing failed")
		}
	}
}
