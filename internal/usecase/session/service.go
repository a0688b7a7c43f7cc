// Package session performs the loading phase of a run: corpus, index,
// membership filter and persisted coverage.
package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/monkeys/internal/domain"
	"github.com/kailas-cloud/monkeys/internal/domain/bloom"
	"github.com/kailas-cloud/monkeys/internal/domain/corpus"
	"github.com/kailas-cloud/monkeys/internal/metrics"
	"github.com/kailas-cloud/monkeys/internal/usecase/controller"
	"github.com/kailas-cloud/monkeys/internal/usecase/coverage"
	"github.com/kailas-cloud/monkeys/internal/usecase/pipeline"
)

// Config describes what to load.
type Config struct {
	Segment      corpus.Options
	Strategy     corpus.Strategy
	FilterPrefix string
	FilterParams bloom.Params
	Workers      int
	RunID        string
}

// State is everything a loaded session holds.
type State struct {
	Works    []domain.Work
	Index    *corpus.Index
	Filter   *bloom.Filter
	Tracker  *coverage.Tracker
	Pipeline *pipeline.Service
}

// Loader builds sessions.
type Loader struct {
	cfg      Config
	source   CorpusSource
	filters  FilterCache
	coverage CoverageRepository
	logger   *zap.Logger
}

var _ controller.Loader = (*Loader)(nil)

// New creates a loader.
func New(cfg Config, source CorpusSource, filters FilterCache, cov CoverageRepository, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cfg: cfg, source: source, filters: filters, coverage: cov, logger: logger}
}

// Corpus reads, segments and indexes the corpus.
func (l *Loader) Corpus(ctx context.Context) ([]domain.Work, *corpus.Index, error) {
	raw, err := l.source.Read(ctx)
	if err != nil {
		return nil, nil, err
	}
	works, err := corpus.Segment(raw, l.cfg.Segment)
	if err != nil {
		return nil, nil, fmt.Errorf("segment corpus: %w", err)
	}
	if len(works) == 0 {
		return nil, nil, fmt.Errorf("corpus has no works: %w", domain.ErrInvalidWork)
	}
	idx, err := corpus.NewIndex(works, l.cfg.Strategy)
	if err != nil {
		return nil, nil, fmt.Errorf("index corpus: %w", err)
	}
	return works, idx, nil
}

// FilterKey is the filter identity for an indexed corpus.
func (l *Loader) FilterKey(idx *corpus.Index) bloom.Key {
	return bloom.Key{Prefix: l.cfg.FilterPrefix, Params: l.cfg.FilterParams, Digest: idx.Digest()}
}

// Filter returns the persisted filter for the corpus, building it if absent.
func (l *Loader) Filter(ctx context.Context, works []domain.Work, idx *corpus.Index) (*bloom.Filter, error) {
	key := l.FilterKey(idx)
	f, err := l.filters.Get(ctx, key, func() (*bloom.Filter, error) {
		start := time.Now()
		defer func() {
			metrics.StageDuration.WithLabelValues("filter_build").Observe(time.Since(start).Seconds())
		}()
		l.logger.Info("Building membership filter", zap.String("name", key.Name()))
		return bloom.Build(works, key.Digest, key.Params)
	})
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", key.Name(), err)
	}
	return f, nil
}

// Prepare loads the full session state.
func (l *Loader) Prepare(ctx context.Context) (*State, error) {
	works, idx, err := l.Corpus(ctx)
	if err != nil {
		return nil, err
	}
	f, err := l.Filter(ctx, works, idx)
	if err != nil {
		return nil, err
	}
	l.logger.Info("Membership filter ready",
		zap.Uint64("inserted", f.Inserted()),
		zap.Float64("estimated_fpr", f.EstimatedFPR()),
	)

	tracker := coverage.New(l.coverage, works, l.cfg.RunID)
	if err := tracker.Load(ctx); err != nil {
		return nil, err
	}
	tracker.PublishMetrics()

	p := pipeline.New(f, idx, l.logger).WithWorkers(l.cfg.Workers)
	l.logger.Info("Corpus loaded", zap.Int("works", len(works)), zap.Uint64("iterations", tracker.Iterations()))
	return &State{Works: works, Index: idx, Filter: f, Tracker: tracker, Pipeline: p}, nil
}

// Load implements controller.Loader.
func (l *Loader) Load(ctx context.Context) (controller.Session, error) {
	st, err := l.Prepare(ctx)
	if err != nil {
		return controller.Session{}, err
	}
	return controller.Session{Pipeline: st.Pipeline, Tracker: st.Tracker}, nil
}
