// Package controller drives the search loop: load state, then generate,
// filter, verify and reduce one batch per cycle, checkpointing as coverage
// changes, until a stop is requested.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/monkeys/internal/domain"
	"github.com/kailas-cloud/monkeys/internal/metrics"
	"github.com/kailas-cloud/monkeys/internal/repository/hitlog"
)

// Defaults.
const (
	DefaultBatchSize       = 1_000_000
	DefaultMaxFailures     = 5
	DefaultShutdownTimeout = 30 * time.Second
)

// Config holds the loop parameters.
type Config struct {
	BatchSize int
	K         int
	// CheckpointEvery forces a checkpoint after that many cycles without
	// one. Zero checkpoints only when hits arrive.
	CheckpointEvery uint64
	// MaxFailures consecutive failed checkpoints end the run.
	MaxFailures int
	// MaxIterations stops the run once the counter reaches it. Zero is unbounded.
	MaxIterations uint64
}

// Validate checks loop parameters.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.K <= 0 {
		return fmt.Errorf("window length must be positive, got %d", c.K)
	}
	if c.MaxFailures <= 0 {
		return fmt.Errorf("max checkpoint failures must be positive, got %d", c.MaxFailures)
	}
	return nil
}

// Controller runs one search session.
type Controller struct {
	cfg             Config
	loader          Loader
	gen             Generator
	stop            StopFunc
	hits            HitLog
	publisher       Publisher
	runID           string
	shutdownTimeout time.Duration
	onState         func(State)
	logger          *zap.Logger

	stopRequested atomic.Bool
	status        atomic.Pointer[Status]
}

// New creates a controller.
func New(cfg Config, loader Loader, gen Generator, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		cfg:             cfg,
		loader:          loader,
		gen:             gen,
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          logger,
	}
	c.status.Store(&Status{State: StateInit, UpdatedAt: time.Now()})
	return c
}

// WithStop sets the external stop predicate.
func (c *Controller) WithStop(fn StopFunc) *Controller {
	c.stop = fn
	return c
}

// WithHitLog enables the per-checkpoint hit log.
func (c *Controller) WithHitLog(h HitLog) *Controller {
	c.hits = h
	return c
}

// WithPublisher enables report rendering after each checkpoint.
func (c *Controller) WithPublisher(p Publisher) *Controller {
	c.publisher = p
	return c
}

// WithRunID tags status snapshots and logs.
func (c *Controller) WithRunID(id string) *Controller {
	c.runID = id
	return c
}

// WithShutdownTimeout bounds the final save after cancellation.
func (c *Controller) WithShutdownTimeout(d time.Duration) *Controller {
	if d > 0 {
		c.shutdownTimeout = d
	}
	return c
}

// WithOnState registers a hook called on every state transition.
func (c *Controller) WithOnState(fn func(State)) *Controller {
	c.onState = fn
	return c
}

// Status returns the latest published snapshot.
func (c *Controller) Status() Status {
	return *c.status.Load()
}

// RequestStop asks the loop to stop after the current cycle.
func (c *Controller) RequestStop() error {
	if c.Status().State == StateStopped {
		return domain.ErrStopped
	}
	c.stopRequested.Store(true)
	return nil
}

// HealthCheck fails once the loop has stopped.
func (c *Controller) HealthCheck(_ context.Context) error {
	if s := c.Status().State; s == StateStopping || s == StateStopped {
		return fmt.Errorf("run is %s: %w", s, domain.ErrStopped)
	}
	return nil
}

// run is the mutable loop state.
type run struct {
	session         Session
	iterations      uint64
	sinceCheckpoint uint64
	failures        int
	pending         []hitlog.Entry
	lastCheckpoint  time.Time
}

// Run executes the state machine until a stop or a fatal error. A requested
// stop, the stop predicate, MaxIterations and context cancellation all end
// with a nil error after a final save.
func (c *Controller) Run(ctx context.Context) error {
	log := c.logger.With(zap.String("run_id", c.runID))

	c.transition(StateInit)
	if err := c.cfg.Validate(); err != nil {
		c.transition(StateStopped)
		return fmt.Errorf("invalid run config: %w", err)
	}

	c.transition(StateLoading)
	session, err := c.loader.Load(ctx)
	if err != nil {
		c.transition(StateStopped)
		return fmt.Errorf("load state: %w", err)
	}
	r := &run{session: session, iterations: session.Tracker.Iterations()}
	log.Info("State loaded", zap.Uint64("iterations", r.iterations))

	c.transition(StateRunning)
	c.publishStatus(r, StateRunning)

	for {
		if reason := c.shouldStop(ctx, r); reason != "" {
			log.Info("Stopping", zap.String("reason", reason), zap.Uint64("iterations", r.iterations))
			return c.shutdown(ctx, r)
		}

		hit, err := c.cycle(ctx, r)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Stopping", zap.String("reason", "canceled"), zap.Uint64("iterations", r.iterations))
				return c.shutdown(ctx, r)
			}
			c.transition(StateStopped)
			return err
		}

		if c.checkpointDue(r, hit) {
			if err := c.checkpoint(ctx, r); err != nil {
				c.transition(StateStopped)
				return err
			}
		}

		if c.stop != nil {
			stop, err := c.stop(ctx)
			switch {
			case err != nil:
				log.Warn("Stop predicate failed", zap.Error(err))
			case stop:
				c.stopRequested.Store(true)
			}
		}
	}
}

func (c *Controller) shouldStop(ctx context.Context, r *run) string {
	switch {
	case ctx.Err() != nil:
		return "canceled"
	case c.stopRequested.Load():
		return "requested"
	case c.cfg.MaxIterations > 0 && r.iterations >= c.cfg.MaxIterations:
		return "max iterations"
	}
	return ""
}

// cycle runs one batch through the pipeline and reduces it into the tracker.
func (c *Controller) cycle(ctx context.Context, r *run) (bool, error) {
	id := r.iterations + 1

	start := time.Now()
	batch, err := c.gen.Next(ctx, id, c.cfg.BatchSize, c.cfg.K)
	if err != nil {
		return false, fmt.Errorf("generate batch %d: %w", id, err)
	}
	metrics.StageDuration.WithLabelValues("generate").Observe(time.Since(start).Seconds())

	res, err := r.session.Pipeline.Run(ctx, batch)
	if err != nil {
		return false, fmt.Errorf("process batch %d: %w", id, err)
	}

	start = time.Now()
	added, err := r.session.Tracker.Apply(res.Hits, c.cfg.K)
	if err != nil {
		return false, fmt.Errorf("apply batch %d: %w", id, err)
	}
	for _, m := range res.Matches {
		r.pending = append(r.pending, hitlog.Entry{Iteration: id, Match: m})
	}
	r.iterations = id
	r.sinceCheckpoint++
	r.session.Tracker.SetIterations(id)
	metrics.StageDuration.WithLabelValues("reduce").Observe(time.Since(start).Seconds())
	metrics.IterationsCompleted.Set(float64(id))

	if res.Stats.Hits > 0 {
		c.logger.Info("Hits found",
			zap.Uint64("iteration", id),
			zap.Int("hits", res.Stats.Hits),
			zap.Int("new_chars", added),
			zap.Strings("matches", res.Matches),
		)
	}
	c.publishStatus(r, StateRunning)
	return res.Stats.Hits > 0, nil
}

func (c *Controller) checkpointDue(r *run, hit bool) bool {
	switch {
	case hit:
		return true
	case c.cfg.CheckpointEvery > 0 && r.sinceCheckpoint >= c.cfg.CheckpointEvery:
		return true
	case r.failures > 0 && r.session.Tracker.Dirty():
		return true
	}
	return false
}

// checkpoint saves coverage, then appends the hit log and publishes the
// report. Only the coverage save counts toward MaxFailures.
func (c *Controller) checkpoint(ctx context.Context, r *run) error {
	c.transition(StateCheckpointing)
	defer c.transition(StateRunning)

	start := time.Now()
	if err := r.session.Tracker.Save(ctx); err != nil {
		r.failures++
		c.logger.Error("Checkpoint failed",
			zap.Uint64("iteration", r.iterations),
			zap.Int("consecutive_failures", r.failures),
			zap.Error(err),
		)
		if r.failures >= c.cfg.MaxFailures {
			return fmt.Errorf("checkpoint failed %d times: %w", r.failures, err)
		}
		return nil
	}
	r.failures = 0
	r.sinceCheckpoint = 0
	r.lastCheckpoint = time.Now()
	metrics.StageDuration.WithLabelValues("checkpoint").Observe(time.Since(start).Seconds())

	c.afterSave(ctx, r)
	c.publishStatus(r, StateCheckpointing)
	return nil
}

func (c *Controller) afterSave(ctx context.Context, r *run) {
	if c.hits != nil && len(r.pending) > 0 {
		if err := c.hits.Write(ctx, r.iterations, r.pending); err != nil {
			c.logger.Warn("Failed to write hit log", zap.Uint64("iteration", r.iterations), zap.Error(err))
		} else {
			r.pending = nil
		}
	}
	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, r.session.Tracker.View()); err != nil {
			c.logger.Warn("Failed to publish report", zap.Uint64("iteration", r.iterations), zap.Error(err))
		}
	}
}

// shutdown performs the final save when anything changed since the last one.
func (c *Controller) shutdown(ctx context.Context, r *run) error {
	c.transition(StateStopping)
	defer c.transition(StateStopped)

	if r.sinceCheckpoint == 0 && !r.session.Tracker.Dirty() {
		return nil
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.shutdownTimeout)
	defer cancel()

	if err := r.session.Tracker.Save(saveCtx); err != nil {
		return fmt.Errorf("final checkpoint: %w", err)
	}
	r.sinceCheckpoint = 0
	r.lastCheckpoint = time.Now()
	c.afterSave(saveCtx, r)
	return nil
}

func (c *Controller) transition(s State) {
	prev := c.status.Load()
	next := *prev
	next.State = s
	next.UpdatedAt = time.Now()
	c.status.Store(&next)
	c.logger.Debug("State transition", zap.String("from", string(prev.State)), zap.String("to", string(s)))
	if c.onState != nil {
		c.onState(s)
	}
}

func (c *Controller) publishStatus(r *run, s State) {
	c.status.Store(&Status{
		State:          s,
		RunID:          c.runID,
		Iterations:     r.iterations,
		LastCheckpoint: r.lastCheckpoint,
		Coverage:       r.session.Tracker.AllStats(),
		UpdatedAt:      time.Now(),
	})
}

// ExitCode maps a Run result to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, domain.ErrConfigMismatch):
		return 2
	case errors.Is(err, domain.ErrRandomness):
		return 3
	default:
		return 1
	}
}
