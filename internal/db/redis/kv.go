package redis

import (
	"context"
	"slices"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/monkeys/internal/db"
)

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.b().Get().Key(s.key(key)).Build()
	data, err := s.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Key: key, Err: err}
	}
	return data, nil
}

// Put stores a value; SET replaces the previous value atomically.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := db.ValidateKey(key); err != nil {
		return err
	}
	cmd := s.b().Set().Key(s.key(key)).Value(rueidis.BinaryString(value)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpPut, Key: key, Err: err}
	}
	return nil
}

// Delete deletes a key.
func (s *Store) Delete(ctx context.Context, key string) error {
	cmd := s.b().Del().Key(s.key(key)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDelete, Key: key, Err: err}
	}
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	cmd := s.b().Exists().Key(s.key(key)).Build()
	count, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Key: key, Err: err}
	}
	return count > 0, nil
}

// List scans keys under prefix and returns them sorted, without the namespace.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var cursor uint64
	pattern := escapeGlob(s.key(prefix)) + "*"

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpList, Key: prefix, Err: err}
		}
		for _, k := range res.Elements {
			keys = append(keys, strings.TrimPrefix(k, s.namespace))
		}
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	slices.Sort(keys)
	return slices.Compact(keys), nil
}

func escapeGlob(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
