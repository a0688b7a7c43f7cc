package session

import (
	"context"

	"github.com/kailas-cloud/monkeys/internal/domain/bloom"
	"github.com/kailas-cloud/monkeys/internal/repository/filter"
	"github.com/kailas-cloud/monkeys/internal/usecase/coverage"
)

// CorpusSource yields the raw corpus text.
type CorpusSource interface {
	Read(ctx context.Context) (string, error)
}

// FilterCache returns the filter for a key, building it when absent.
type FilterCache interface {
	Get(ctx context.Context, k bloom.Key, build filter.BuildFunc) (*bloom.Filter, error)
}

// CoverageRepository persists checkpoints.
type CoverageRepository = coverage.Repository
