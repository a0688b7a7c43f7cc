package pipeline

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/monkeys/internal/domain"
	"github.com/kailas-cloud/monkeys/internal/domain/candidate"
	"github.com/kailas-cloud/monkeys/internal/metrics"
)

// Stats counts what one batch went through.
type Stats struct {
	Candidates int
	Survivors  int
	Hits       int
	Malformed  int
}

// Result is the reduced output of one batch.
type Result struct {
	BatchID uint64
	Hits    []domain.Hit
	// Matches lists each distinct confirmed candidate once, in batch order.
	Matches []string
	Stats   Stats
}

// Service runs filter then verify over parallel shards of a batch. The filter
// and index are read-only; each shard writes only its own result slot.
type Service struct {
	filter  Filter
	index   Index
	workers int
	logger  *zap.Logger
}

// New creates a pipeline over a built filter and index.
func New(filter Filter, index Index, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{filter: filter, index: index, workers: runtime.GOMAXPROCS(0), logger: logger}
}

// WithWorkers sets the number of parallel shards.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

type shardResult struct {
	survivors int
	hits      []domain.Hit
	malformed []error
}

// Run processes one batch.
func (s *Service) Run(ctx context.Context, batch candidate.Batch) (Result, error) {
	start := time.Now()
	shards := batch.Shards(s.workers)
	results := make([]shardResult, len(shards))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			survivors := FilterStage(shard, s.filter)
			hits, malformed := VerifyStage(survivors, shard.K, s.index)
			results[i] = shardResult{survivors: len(survivors), hits: hits, malformed: malformed}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{BatchID: batch.ID, Stats: Stats{Candidates: batch.Len()}}
	seen := make(map[string]struct{})
	for _, r := range results {
		res.Stats.Survivors += r.survivors
		res.Stats.Malformed += len(r.malformed)
		for _, err := range r.malformed {
			s.logger.Warn("Skipping malformed candidate", zap.Uint64("batch", batch.ID), zap.Error(err))
		}
		for _, h := range r.hits {
			res.Hits = append(res.Hits, h)
			if _, ok := seen[h.Match]; !ok {
				seen[h.Match] = struct{}{}
				res.Matches = append(res.Matches, h.Match)
			}
		}
	}
	res.Stats.Hits = len(res.Hits)

	metrics.CandidatesTotal.Add(float64(res.Stats.Candidates))
	metrics.SurvivorsTotal.Add(float64(res.Stats.Survivors))
	metrics.HitsTotal.Add(float64(res.Stats.Hits))
	if res.Stats.Malformed > 0 {
		metrics.MalformedRecordsTotal.WithLabelValues("verify").Add(float64(res.Stats.Malformed))
	}
	metrics.StageDuration.WithLabelValues("pipeline").Observe(time.Since(start).Seconds())
	return res, nil
}
