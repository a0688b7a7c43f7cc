package coverage

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/monkeys/internal/db/memory"
	"github.com/kailas-cloud/monkeys/internal/domain"
	"github.com/kailas-cloud/monkeys/internal/domain/bitmap"
	"github.com/kailas-cloud/monkeys/internal/domain/checkpoint"
	repocov "github.com/kailas-cloud/monkeys/internal/repository/coverage"
)

// --- Mocks ---

type mockRepo struct {
	loadFn func(ctx context.Context) (checkpoint.Checkpoint, error)
	saveFn func(ctx context.Context, cp checkpoint.Checkpoint) (uint64, error)
	saved  []checkpoint.Checkpoint
}

func (m *mockRepo) Load(ctx context.Context) (checkpoint.Checkpoint, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx)
	}
	return checkpoint.Checkpoint{}, nil
}

func (m *mockRepo) Save(ctx context.Context, cp checkpoint.Checkpoint) (uint64, error) {
	m.saved = append(m.saved, cp)
	if m.saveFn != nil {
		return m.saveFn(ctx, cp)
	}
	return cp.Generation + 1, nil
}

var threeWorks = []domain.Work{
	domain.ReconstructWork("Hamlet", "tobeornottobe"),
	domain.ReconstructWork("Macbeth", "fairisfoul"),
	domain.ReconstructWork("Lear", "nothing"),
}

// --- Tests ---

func TestLoad_NoCheckpointInitializesEmpty(t *testing.T) {
	tr := New(&mockRepo{}, threeWorks, "run")
	if err := tr.Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats := tr.AllStats()
	if len(stats) != 3 {
		t.Fatalf("expected 3 bitmaps, got %d", len(stats))
	}
	for i, s := range stats {
		if s.Found != 0 || s.Total != threeWorks[i].Len() {
			t.Errorf("work %s: expected 0/%d, got %d/%d", s.Work, threeWorks[i].Len(), s.Found, s.Total)
		}
	}
}

func TestLoad_BitmapCountMismatch(t *testing.T) {
	repo := &mockRepo{loadFn: func(context.Context) (checkpoint.Checkpoint, error) {
		return checkpoint.Checkpoint{Generation: 4, Bitmaps: map[string]*bitmap.Bitmap{
			"Hamlet":  bitmap.New(13),
			"Macbeth": bitmap.New(10),
		}}, nil
	}}
	err := New(repo, threeWorks, "run").Load(context.Background())
	if !errors.Is(err, domain.ErrConfigMismatch) {
		t.Fatalf("expected ErrConfigMismatch, got %v", err)
	}
	var mm *domain.MismatchError
	if !errors.As(err, &mm) || mm.Persisted != "2" || mm.Live != "3" {
		t.Errorf("expected persisted 2 live 3, got %v", err)
	}
}

func TestLoad_RenamedOrResizedWork(t *testing.T) {
	cases := map[string]map[string]*bitmap.Bitmap{
		"renamed": {"Hamlet": bitmap.New(13), "Macbeth": bitmap.New(10), "Othello": bitmap.New(7)},
		"resized": {"Hamlet": bitmap.New(12), "Macbeth": bitmap.New(10), "Lear": bitmap.New(7)},
	}
	for name, bitmaps := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &mockRepo{loadFn: func(context.Context) (checkpoint.Checkpoint, error) {
				return checkpoint.Checkpoint{Generation: 1, Bitmaps: bitmaps}, nil
			}}
			if err := New(repo, threeWorks, "run").Load(context.Background()); !errors.Is(err, domain.ErrConfigMismatch) {
				t.Errorf("expected ErrConfigMismatch, got %v", err)
			}
		})
	}
}

func TestLoad_RepositoryError(t *testing.T) {
	repo := &mockRepo{loadFn: func(context.Context) (checkpoint.Checkpoint, error) {
		return checkpoint.Checkpoint{}, domain.ErrTransientIO
	}}
	if err := New(repo, threeWorks, "run").Load(context.Background()); !errors.Is(err, domain.ErrTransientIO) {
		t.Errorf("expected ErrTransientIO, got %v", err)
	}
}

func TestApplyHits_OverlappingAndIdempotent(t *testing.T) {
	tr := New(&mockRepo{}, threeWorks, "run")

	added, err := tr.ApplyHits("Hamlet", []int{0, 9}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 8 {
		t.Errorf("expected 8 new bits, got %d", added)
	}
	s, _ := tr.Stats("Hamlet")
	if math.Abs(s.Percent()-61.538) > 0.01 {
		t.Errorf("expected ~61.5%%, got %f", s.Percent())
	}
	if !tr.Dirty() {
		t.Error("expected dirty after new bits")
	}

	added, _ = tr.ApplyHits("Hamlet", []int{0, 9}, 4)
	if added != 0 {
		t.Errorf("expected re-application to add nothing, got %d", added)
	}
	s2, _ := tr.Stats("Hamlet")
	if s2 != s {
		t.Errorf("expected stats unchanged, got %+v", s2)
	}
}

func TestApplyHits_UnknownWork(t *testing.T) {
	tr := New(&mockRepo{}, threeWorks, "run")
	if _, err := tr.ApplyHits("Tempest", []int{0}, 3); !errors.Is(err, domain.ErrWorkNotFound) {
		t.Errorf("expected ErrWorkNotFound, got %v", err)
	}
	if _, err := tr.Stats("Tempest"); !errors.Is(err, domain.ErrWorkNotFound) {
		t.Errorf("expected ErrWorkNotFound, got %v", err)
	}
}

func TestSave_FailureKeepsDirty(t *testing.T) {
	repo := &mockRepo{saveFn: func(context.Context, checkpoint.Checkpoint) (uint64, error) {
		return 0, domain.ErrTransientIO
	}}
	tr := New(repo, threeWorks, "run")
	_, _ = tr.ApplyHits("Lear", []int{0}, 3)

	if err := tr.Save(context.Background()); !errors.Is(err, domain.ErrTransientIO) {
		t.Fatalf("expected ErrTransientIO, got %v", err)
	}
	if !tr.Dirty() {
		t.Error("expected tracker to stay dirty after failed save")
	}

	repo.saveFn = nil
	if err := tr.Save(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Dirty() {
		t.Error("expected clean after successful save")
	}
	if got := repo.saved[1].Generation; got != 0 {
		t.Errorf("expected retry from generation 0, got %d", got)
	}
}

func TestSaveLoad_ThroughRepository(t *testing.T) {
	ctx := context.Background()
	repo := repocov.New(memory.NewStore(), nil).WithCompression(repocov.CompressionSnappy)

	tr := New(repo, threeWorks, "run-a")
	if err := tr.Load(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _ = tr.Apply([]domain.Hit{{Work: "Hamlet", Offset: 0}, {Work: "Hamlet", Offset: 9}, {Work: "Lear", Offset: 3}}, 4)
	tr.SetIterations(17)
	if err := tr.Save(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	restored := New(repo, threeWorks, "run-b")
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored.Iterations() != 17 {
		t.Errorf("expected 17 iterations, got %d", restored.Iterations())
	}
	for _, name := range []string{"Hamlet", "Macbeth", "Lear"} {
		a, _ := tr.Stats(name)
		b, _ := restored.Stats(name)
		if a != b {
			t.Errorf("%s: expected %+v, got %+v", name, a, b)
		}
	}

	// Fewer works than persisted bitmaps is a mismatch.
	if err := New(repo, threeWorks[:2], "run-c").Load(ctx); !errors.Is(err, domain.ErrConfigMismatch) {
		t.Errorf("expected ErrConfigMismatch, got %v", err)
	}
}

func TestView_IsACopy(t *testing.T) {
	tr := New(&mockRepo{}, threeWorks, "run")
	v := tr.View()
	_, _ = tr.ApplyHits("Macbeth", []int{0}, 4)
	if v.Works[1].Bitmap.Count() != 0 {
		t.Error("view must not observe later hits")
	}
	if v.Works[1].Name != "Macbeth" {
		t.Errorf("expected load order, got %s", v.Works[1].Name)
	}
}
