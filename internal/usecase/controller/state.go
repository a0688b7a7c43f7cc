package controller

import (
	"time"

	"github.com/kailas-cloud/monkeys/internal/domain"
)

// State is a controller lifecycle state.
type State string

// Lifecycle states in order.
const (
	StateInit          State = "init"
	StateLoading       State = "loading_state"
	StateRunning       State = "running"
	StateCheckpointing State = "checkpointing"
	StateStopping      State = "stopping"
	StateStopped       State = "stopped"
)

// Status is an immutable snapshot published after every reduction.
type Status struct {
	State          State
	RunID          string
	Iterations     uint64
	LastCheckpoint time.Time
	Coverage       []domain.Coverage
	UpdatedAt      time.Time
}
