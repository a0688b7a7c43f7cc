package hitlog

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/kailas-cloud/monkeys/internal/db"
	"github.com/kailas-cloud/monkeys/internal/domain"
)

type mockStore struct {
	blobs map[string][]byte
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.blobs[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) Put(_ context.Context, key string, value []byte) error {
	m.blobs[key] = value
	return nil
}

func (m *mockStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func TestKeyOrdering(t *testing.T) {
	if Key(9) >= Key(10) {
		t.Errorf("expected %s < %s", Key(9), Key(10))
	}
	if Key(7) != "hits/00000000000000000007.tsv" {
		t.Errorf("unexpected key %s", Key(7))
	}
}

func TestWriteRead(t *testing.T) {
	ctx := context.Background()
	r := New(&mockStore{blobs: map[string][]byte{}})

	entries := []Entry{{Iteration: 5, Match: "tobeornot"}, {Iteration: 5, Match: "ornottobe"}}
	if err := r.Write(ctx, 5, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Write(ctx, 6, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keys, err := r.Keys(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 blob, got %v", keys)
	}

	got, bad, err := r.Read(ctx, keys[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bad) != 0 {
		t.Errorf("unexpected malformed lines: %v", bad)
	}
	if !slices.Equal(got, entries) {
		t.Errorf("expected %v, got %v", entries, got)
	}
}

func TestDecodeSkipsMalformedLines(t *testing.T) {
	data := []byte("1\tabc,\nnot a record\n2\tABC,\n\n 3 def, \nxyz,\n4\tghi\n")
	entries, bad := Decode("k", data)

	want := []Entry{{Iteration: 1, Match: "abc"}, {Iteration: 3, Match: "def"}, {Iteration: 0, Match: "xyz"}}
	if !slices.Equal(entries, want) {
		t.Errorf("expected %v, got %v", want, entries)
	}
	if len(bad) != 3 {
		t.Fatalf("expected 3 malformed lines, got %d: %v", len(bad), bad)
	}
	if bad[0].Line != 2 || bad[1].Line != 3 || bad[2].Line != 7 {
		t.Errorf("unexpected malformed line numbers: %d %d %d", bad[0].Line, bad[1].Line, bad[2].Line)
	}
	for _, b := range bad {
		if !errors.Is(b.Err, domain.ErrMalformedRecord) {
			t.Errorf("expected ErrMalformedRecord, got %v", b.Err)
		}
	}
}

func TestReadMissing(t *testing.T) {
	r := New(&mockStore{blobs: map[string][]byte{}})
	if _, _, err := r.Read(context.Background(), "hits/x.tsv"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}
