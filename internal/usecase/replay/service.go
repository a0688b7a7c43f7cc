// Package replay rebuilds coverage from hit logs.
package replay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/monkeys/internal/metrics"
	"github.com/kailas-cloud/monkeys/internal/usecase/pipeline"
)

// Report summarizes a replay.
type Report struct {
	Files     int
	Entries   int
	Malformed int
	// Rejected counts well-formed entries that no longer occur in the corpus.
	Rejected     int
	Hits         int
	NewChars     int
	MaxIteration uint64
}

// Service re-verifies logged matches against the corpus and applies them.
type Service struct {
	logs   HitLogs
	index  pipeline.Index
	k      int
	logger *zap.Logger
}

// New creates a replay service for windows of length k.
func New(logs HitLogs, index pipeline.Index, k int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logs: logs, index: index, k: k, logger: logger}
}

// Run replays every hit log in key order into t and saves it. Malformed lines
// and entries are logged, counted and skipped.
func (s *Service) Run(ctx context.Context, t Tracker) (Report, error) {
	var rep Report
	keys, err := s.logs.Keys(ctx)
	if err != nil {
		return rep, err
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		entries, bad, err := s.logs.Read(ctx, key)
		if err != nil {
			return rep, err
		}
		rep.Files++
		for _, m := range bad {
			s.logger.Warn("Skipping malformed hit log line",
				zap.String("key", m.Key), zap.Int("line", m.Line), zap.String("text", m.Text))
		}
		rep.Malformed += len(bad)

		for _, e := range entries {
			rep.Entries++
			rep.MaxIteration = max(rep.MaxIteration, e.Iteration)
			hits, malformed := pipeline.VerifyStage([][]byte{[]byte(e.Match)}, s.k, s.index)
			if len(malformed) > 0 {
				rep.Malformed++
				s.logger.Warn("Skipping malformed hit log entry", zap.String("key", key), zap.Error(malformed[0]))
				continue
			}
			if len(hits) == 0 {
				rep.Rejected++
				s.logger.Warn("Logged match not found in corpus", zap.String("key", key), zap.String("match", e.Match))
				continue
			}
			added, err := t.Apply(hits, s.k)
			if err != nil {
				return rep, fmt.Errorf("apply %s: %w", key, err)
			}
			rep.Hits += len(hits)
			rep.NewChars += added
		}
	}
	if rep.Malformed > 0 {
		metrics.MalformedRecordsTotal.WithLabelValues("replay").Add(float64(rep.Malformed))
	}

	advanced := rep.MaxIteration > t.Iterations()
	if advanced {
		t.SetIterations(rep.MaxIteration)
	}
	if advanced || t.Dirty() {
		if err := t.Save(ctx); err != nil {
			return rep, err
		}
	}
	s.logger.Info("Replay complete",
		zap.Int("files", rep.Files),
		zap.Int("entries", rep.Entries),
		zap.Int("malformed", rep.Malformed),
		zap.Int("rejected", rep.Rejected),
		zap.Int("new_chars", rep.NewChars),
	)
	return rep, nil
}
