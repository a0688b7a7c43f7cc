package controller

import (
	"context"

	"github.com/kailas-cloud/monkeys/internal/domain"
	"github.com/kailas-cloud/monkeys/internal/domain/candidate"
	"github.com/kailas-cloud/monkeys/internal/domain/checkpoint"
	"github.com/kailas-cloud/monkeys/internal/repository/hitlog"
	"github.com/kailas-cloud/monkeys/internal/usecase/pipeline"
)

// Generator produces candidate batches.
type Generator interface {
	Next(ctx context.Context, id uint64, size, k int) (candidate.Batch, error)
}

// Pipeline filters and verifies one batch.
type Pipeline interface {
	Run(ctx context.Context, batch candidate.Batch) (pipeline.Result, error)
}

// Tracker accumulates coverage and persists it.
type Tracker interface {
	Apply(hits []domain.Hit, k int) (int, error)
	Iterations() uint64
	SetIterations(n uint64)
	Dirty() bool
	Save(ctx context.Context) error
	View() checkpoint.View
	AllStats() []domain.Coverage
}

// Session is everything LOADING_STATE produces.
type Session struct {
	Pipeline Pipeline
	Tracker  Tracker
}

// Loader loads the corpus, the filter and the persisted coverage.
type Loader interface {
	Load(ctx context.Context) (Session, error)
}

// HitLog appends confirmed matches after a checkpoint.
type HitLog interface {
	Write(ctx context.Context, iteration uint64, entries []hitlog.Entry) error
}

// Publisher renders report artifacts.
type Publisher interface {
	Publish(ctx context.Context, view checkpoint.View) error
}

// StopFunc is the external stop predicate, checked once per cycle.
type StopFunc func(ctx context.Context) (bool, error)
