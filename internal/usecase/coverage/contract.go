package coverage

import (
	"context"

	"github.com/kailas-cloud/monkeys/internal/domain/checkpoint"
)

// Repository persists checkpoints.
type Repository interface {
	Load(ctx context.Context) (checkpoint.Checkpoint, error)
	// Save writes cp as the next generation and returns it.
	Save(ctx context.Context, cp checkpoint.Checkpoint) (uint64, error)
}
