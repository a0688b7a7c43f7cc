// Package hitlog stores confirmed matches as tab-separated blobs, one per
// checkpoint, so coverage can be rebuilt by replaying them.
package hitlog

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/kailas-cloud/monkeys/internal/domain"
)

const keyPrefix = "hits/"

// Entry is one confirmed candidate.
type Entry struct {
	Iteration uint64
	Match     string
}

// Malformed describes a skipped line.
type Malformed struct {
	Key  string
	Line int
	Text string
	Err  error
}

// store is the consumer interface for hit logs (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Repo reads and writes hit logs.
type Repo struct {
	store store
}

// New creates a hit log repository.
func New(s store) *Repo { return &Repo{store: s} }

// Key returns the blob key for a checkpoint at iteration. Zero padding keeps
// lexical and numeric order equal.
func Key(iteration uint64) string {
	return fmt.Sprintf("%s%020d.tsv", keyPrefix, iteration)
}

// Write stores entries under the checkpoint iteration. Empty input is a no-op.
func (r *Repo) Write(ctx context.Context, iteration uint64, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.store.Put(ctx, Key(iteration), Encode(entries)); err != nil {
		return fmt.Errorf("write hit log: %w", err)
	}
	return nil
}

// Keys lists hit log blobs in iteration order.
func (r *Repo) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.store.List(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list hit logs: %w", err)
	}
	return keys, nil
}

// Read parses one blob. Lines that do not parse are returned separately and
// never abort the read.
func (r *Repo) Read(ctx context.Context, key string) ([]Entry, []Malformed, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, nil, fmt.Errorf("read hit log %s: %w", key, err)
	}
	entries, bad := Decode(key, data)
	return entries, bad, nil
}

// Encode renders entries as "<iteration>\t<match>," lines.
func Encode(entries []Entry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		buf.WriteString(strconv.FormatUint(e.Iteration, 10))
		buf.WriteByte('\t')
		buf.WriteString(e.Match)
		buf.WriteString(",\n")
	}
	return buf.Bytes()
}

// lineRE accepts an optional iteration, whitespace, a lowercase string and a
// trailing comma.
var lineRE = regexp.MustCompile(`^\s*(\d*)\s*([a-z]+),\s*$`)

// Decode parses a hit log. Blank lines are ignored.
func Decode(key string, data []byte) ([]Entry, []Malformed) {
	var (
		entries []Entry
		bad     []Malformed
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if len(bytes.TrimSpace([]byte(line))) == 0 {
			continue
		}
		m := lineRE.FindStringSubmatch(line)
		if m == nil {
			bad = append(bad, Malformed{Key: key, Line: n, Text: line, Err: domain.ErrMalformedRecord})
			continue
		}
		var it uint64
		if m[1] != "" {
			v, err := strconv.ParseUint(m[1], 10, 64)
			if err != nil {
				bad = append(bad, Malformed{Key: key, Line: n, Text: line, Err: fmt.Errorf("%w: %w", domain.ErrMalformedRecord, err)})
				continue
			}
			it = v
		}
		entries = append(entries, Entry{Iteration: it, Match: m[2]})
	}
	return entries, bad
}
