package replay

import (
	"context"

	"github.com/kailas-cloud/monkeys/internal/domain"
	"github.com/kailas-cloud/monkeys/internal/repository/hitlog"
)

// HitLogs reads persisted hit logs.
type HitLogs interface {
	Keys(ctx context.Context) ([]string, error)
	Read(ctx context.Context, key string) ([]hitlog.Entry, []hitlog.Malformed, error)
}

// Tracker receives replayed hits.
type Tracker interface {
	Apply(hits []domain.Hit, k int) (int, error)
	Iterations() uint64
	SetIterations(n uint64)
	Dirty() bool
	Save(ctx context.Context) error
}
