package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/monkeys/internal/config"
	"github.com/kailas-cloud/monkeys/internal/db"
	dbBadger "github.com/kailas-cloud/monkeys/internal/db/badger"
	dbFS "github.com/kailas-cloud/monkeys/internal/db/fs"
	dbMemory "github.com/kailas-cloud/monkeys/internal/db/memory"
	dbRedis "github.com/kailas-cloud/monkeys/internal/db/redis"
	"github.com/kailas-cloud/monkeys/internal/domain/bloom"
	"github.com/kailas-cloud/monkeys/internal/domain/corpus"
	logpkg "github.com/kailas-cloud/monkeys/internal/logger"
	"github.com/kailas-cloud/monkeys/internal/metrics"
	"github.com/kailas-cloud/monkeys/internal/report"
	corpusrepo "github.com/kailas-cloud/monkeys/internal/repository/corpus"
	coveragerepo "github.com/kailas-cloud/monkeys/internal/repository/coverage"
	filterrepo "github.com/kailas-cloud/monkeys/internal/repository/filter"
	"github.com/kailas-cloud/monkeys/internal/usecase/session"
	"github.com/kailas-cloud/monkeys/internal/version"
)

// app is the composition root shared by every command.
type app struct {
	env    string
	cfg    config.Config
	flags  *globalFlags
	logger *zap.Logger
	store  db.Store
}

func newApp(ctx context.Context, flags *globalFlags) (*app, error) {
	env := flags.env
	if env == "" {
		env = config.GetEnv()
	}

	var (
		cfg config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.corpusPath != "" {
		cfg.Corpus.Path = flags.corpusPath
	}

	level := cfg.Logging.Level
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	logger, err := logpkg.NewLogger(env, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.Debug("Configuration loaded", append(version.Fields(), zap.String("env", env))...)

	metrics.RegisterRunMetrics()

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &app{env: env, cfg: cfg, flags: flags, logger: logger, store: store}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close storage", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// openStore selects the backend and wraps it with retries.
func openStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (db.Store, error) {
	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverFS:
		store, err = dbFS.NewStore(cfg.Path)
	case config.DriverMemory:
		store = dbMemory.NewStore()
	case config.DriverBadger:
		bc := dbBadger.DefaultConfig(cfg.Path)
		bc.SyncWrites = cfg.SyncWrites
		bc.GCInterval = time.Duration(cfg.GCIntervalSec) * time.Second
		bc.Logger = logger
		store, err = dbBadger.NewStore(bc)
	case config.DriverRedis:
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Addrs,
			Username:  cfg.Username,
			Password:  cfg.Password,
			DB:        cfg.DB,
			Namespace: cfg.Namespace,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Driver, err)
	}

	if err := db.WaitForReady(ctx, store, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%s storage not ready: %w", cfg.Driver, err)
	}
	logger.Info("Storage ready", zap.String("driver", cfg.Driver))

	return db.NewRetryingStore(store, db.RetryConfig{
		MaxTries:        uint(cfg.Retry.MaxTries),
		InitialInterval: time.Duration(cfg.Retry.InitialIntervalMs) * time.Millisecond,
		MaxInterval:     time.Duration(cfg.Retry.MaxIntervalMs) * time.Millisecond,
	}, logger), nil
}

func (a *app) corpusSource() *corpusrepo.Source {
	if a.cfg.Corpus.Path != "" {
		return corpusrepo.FromFile(a.cfg.Corpus.Path)
	}
	return corpusrepo.FromStore(a.store, a.cfg.Corpus.Key)
}

func (a *app) segmentOptions() corpus.Options {
	opts := corpus.DefaultOptions()
	opts.Anchor = a.cfg.Corpus.Anchor
	if len(a.cfg.Corpus.Boilerplate) > 0 {
		opts.Boilerplate = a.cfg.Corpus.Boilerplate
	}
	return opts
}

func (a *app) filterParams() (bloom.Params, error) {
	family, err := bloom.ParseFamily(a.cfg.Filter.Family)
	if err != nil {
		return bloom.Params{}, err
	}
	p := bloom.Params{
		VectorBits:   a.cfg.Filter.VectorBits,
		HashCount:    uint8(a.cfg.Filter.HashCount),
		Family:       family,
		WindowLength: uint8(a.cfg.Run.WindowLength),
	}
	return p, p.Validate()
}

func (a *app) workers() int {
	if a.cfg.Run.Workers > 0 {
		return a.cfg.Run.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (a *app) coverageRepo() *coveragerepo.Repo {
	return coveragerepo.New(a.store, a.logger).WithCompression(a.cfg.Storage.Compression)
}

// loader builds the session loader; the filter cache is owned by the caller
// for the lifetime of the command.
func (a *app) loader(runID string) (*session.Loader, error) {
	params, err := a.filterParams()
	if err != nil {
		return nil, fmt.Errorf("filter params: %w", err)
	}
	cache := filterrepo.NewCache(filterrepo.New(a.store, a.logger), metrics.FilterCacheTotal)
	return session.New(session.Config{
		Segment:      a.segmentOptions(),
		Strategy:     corpus.Strategy(a.cfg.Corpus.Strategy),
		FilterPrefix: a.cfg.Filter.Prefix,
		FilterParams: params,
		Workers:      a.workers(),
		RunID:        runID,
	}, a.corpusSource(), cache, a.coverageRepo(), a.logger), nil
}

func (a *app) publisher() *report.Publisher {
	return report.NewPublisher(a.store, report.NewRenderer().WithWidth(a.cfg.Report.Width).WithBatchSize(a.cfg.Run.BatchSize), a.logger).
		WithLocalDir(a.cfg.Report.LocalDir)
}
