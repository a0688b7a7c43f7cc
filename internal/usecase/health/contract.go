package health

import "context"

// StorePinger checks blob store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// RunChecker checks that the search loop is alive.
type RunChecker interface {
	HealthCheck(ctx context.Context) error
}
