// Package corpus reads the raw corpus and exports segmented works.
package corpus

import (
	"context"
	"fmt"
	"os"

	"github.com/kailas-cloud/monkeys/internal/domain"
)

// DefaultKey is the corpus blob name.
const DefaultKey = "input.txt"

// CombinedName is the export key holding every work concatenated in order.
const CombinedName = "corpus_out.txt"

type reader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

type writer interface {
	Put(ctx context.Context, key string, value []byte) error
}

// Source yields the raw corpus text from a store blob or a local file.
type Source struct {
	store reader
	key   string
	path  string
}

// FromStore reads the corpus from key in s.
func FromStore(s reader, key string) *Source {
	if key == "" {
		key = DefaultKey
	}
	return &Source{store: s, key: key}
}

// FromFile reads the corpus from a local path.
func FromFile(path string) *Source {
	return &Source{path: path}
}

// String describes where the corpus comes from.
func (s *Source) String() string {
	if s.path != "" {
		return "file:" + s.path
	}
	return "store:" + s.key
}

// Read returns the raw corpus text.
func (s *Source) Read(ctx context.Context) (string, error) {
	if s.path != "" {
		data, err := os.ReadFile(s.path)
		if err != nil {
			return "", fmt.Errorf("read corpus %s: %w", s.path, err)
		}
		return string(data), nil
	}
	data, err := s.store.Get(ctx, s.key)
	if err != nil {
		return "", fmt.Errorf("read corpus %s: %w", s.key, err)
	}
	return string(data), nil
}

// Export writes each work to "<Name>.txt" and the concatenation of all works
// to CombinedName.
func Export(ctx context.Context, w writer, works []domain.Work) error {
	total := 0
	for _, work := range works {
		total += work.Len()
	}
	combined := make([]byte, 0, total)
	for _, work := range works {
		if err := w.Put(ctx, work.Name()+".txt", []byte(work.Text())); err != nil {
			return fmt.Errorf("export %s: %w", work.Name(), err)
		}
		combined = append(combined, work.Text()...)
	}
	if err := w.Put(ctx, CombinedName, combined); err != nil {
		return fmt.Errorf("export %s: %w", CombinedName, err)
	}
	return nil
}
