package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/monkeys/internal/domain/candidate"
	"github.com/kailas-cloud/monkeys/internal/metrics"
	"github.com/kailas-cloud/monkeys/internal/repository/control"
	"github.com/kailas-cloud/monkeys/internal/repository/hitlog"
	chiTransport "github.com/kailas-cloud/monkeys/internal/transport/chi"
	"github.com/kailas-cloud/monkeys/internal/usecase/controller"
	healthuc "github.com/kailas-cloud/monkeys/internal/usecase/health"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var (
		maxIterations  uint64
		clearStaleStop bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the search until stopped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("max-iterations") {
				a.cfg.Run.MaxIterations = maxIterations
			}
			return runSearch(cmd.Context(), a, clearStaleStop)
		},
	}
	cmd.Flags().Uint64Var(&maxIterations, "max-iterations", 0, "stop after this many iterations (0 = unbounded)")
	cmd.Flags().BoolVar(&clearStaleStop, "clear-stale-stop", false, "remove a stop request left over from a previous run instead of honoring it")
	return cmd
}

func runSearch(ctx context.Context, a *app, clearStaleStop bool) error {
	runID := uuid.NewString()
	logger := a.logger.With(zap.String("run_id", runID))

	stop := control.NewStop(a.store, a.cfg.Checkpoint.StopKey)
	pending, err := stop.Requested(ctx)
	if err != nil {
		return err
	}
	if pending {
		if !clearStaleStop {
			logger.Info("Stop already requested, not starting",
				zap.String("key", stop.Key()),
				zap.String("hint", "remove the key or pass --clear-stale-stop"),
			)
			return nil
		}
		logger.Warn("Removing stale stop request", zap.String("key", stop.Key()))
		if err := stop.Clear(ctx); err != nil {
			return err
		}
	}

	loader, err := a.loader(runID)
	if err != nil {
		return err
	}
	gen, err := candidate.NewGenerator(rand.Reader, a.workers())
	if err != nil {
		return err
	}

	ctrl := controller.New(controller.Config{
		BatchSize:       a.cfg.Run.BatchSize,
		K:               a.cfg.Run.WindowLength,
		CheckpointEvery: a.cfg.Checkpoint.Every,
		MaxFailures:     a.cfg.Checkpoint.MaxFailures,
		MaxIterations:   a.cfg.Run.MaxIterations,
	}, loader, gen, logger).
		WithStop(stop.Requested).
		WithHitLog(hitlog.New(a.store)).
		WithPublisher(a.publisher()).
		WithRunID(runID).
		WithShutdownTimeout(time.Duration(a.cfg.Checkpoint.ShutdownTimeoutSec) * time.Second)

	if a.cfg.HTTP.Enabled {
		srv := newStatusServer(a, ctrl, logger)
		go func() {
			logger.Info("Starting status server", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Status server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error during status server shutdown", zap.Error(err))
			}
		}()
	}

	logger.Info("Starting search",
		zap.Int("window_length", a.cfg.Run.WindowLength),
		zap.Int("batch_size", a.cfg.Run.BatchSize),
		zap.Int("workers", a.workers()),
	)
	if err := ctrl.Run(ctx); err != nil {
		return err
	}
	logger.Info("Search stopped", zap.Uint64("iterations", ctrl.Status().Iterations))
	return nil
}

func newStatusServer(a *app, ctrl *controller.Controller, logger *zap.Logger) *http.Server {
	metrics.RegisterHTTPMetrics()
	health := healthuc.New(a.store, ctrl)
	server := chiTransport.NewServer(health, ctrl, ctrl, logger)
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.HTTP.Port),
		Handler:      chiTransport.NewRouter(server, a.cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}
}

func newStopCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask a running search to stop after its current iteration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			stop := control.NewStop(a.store, a.cfg.Checkpoint.StopKey)
			if err := stop.Request(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stop requested (%s)\n", stop.Key())
			return nil
		},
	}
}
