package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/monkeys/internal/domain/checkpoint"
)

// store is the consumer interface for artifacts (ISP).
type store interface {
	Put(ctx context.Context, key string, value []byte) error
}

// Publisher renders a view and writes the artifacts to the store and,
// optionally, to a local mirror directory.
type Publisher struct {
	store    store
	renderer *Renderer
	localDir string
	logger   *zap.Logger
}

// NewPublisher creates a publisher.
func NewPublisher(s store, r *Renderer, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{store: s, renderer: r, logger: logger}
}

// WithLocalDir mirrors every artifact under dir.
func (p *Publisher) WithLocalDir(dir string) *Publisher {
	p.localDir = dir
	return p
}

// Publish writes all artifacts. It stops at the first store failure; the
// local mirror is best effort.
func (p *Publisher) Publish(ctx context.Context, v checkpoint.View) error {
	artifacts, err := p.renderer.Render(v)
	if err != nil {
		return err
	}
	for _, a := range artifacts {
		if err := p.store.Put(ctx, a.Key, a.Data); err != nil {
			return fmt.Errorf("publish %s: %w", a.Key, err)
		}
		if p.localDir != "" {
			if err := writeLocal(p.localDir, a); err != nil {
				p.logger.Warn("Failed to mirror artifact", zap.String("key", a.Key), zap.Error(err))
			}
		}
	}
	for _, w := range v.Works {
		p.logger.Debug(Summary(w.Coverage()))
	}
	return nil
}

func writeLocal(dir string, a Artifact) error {
	path := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(a.Key, keyPrefix)))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, a.Data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
