package pipeline

import "github.com/kailas-cloud/monkeys/internal/domain"

// Filter answers approximate membership. False must be definitive.
type Filter interface {
	Test(window []byte) bool
}

// Index answers exact occurrence queries per work position.
type Index interface {
	Works() []domain.Work
	FindAllAt(i int, s []byte) []int
}
