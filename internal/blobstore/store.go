package blobstore

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/cockroachdb/pebble"
)

// Store manages durable blob persistence backed by Pebble.
type Store struct {
	db   *pebble.DB
	path string
}

// Open initializes or connects to the blob database at the given path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores a value under the given key, replacing any previous value.
func (s *Store) Put(key string, value []byte) error {
	if err := s.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("put blob %q: %w", key, err)
	}
	return nil
}

// Get returns a copy of the value for the given key. A missing key is not an
// error; it is reported through the second return value.
func (s *Store) Get(key string) ([]byte, bool, error) {
	value, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get blob %q: %w", key, err)
	}
	defer closer.Close()
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Delete removes the key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	if err := s.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("delete blob %q: %w", key, err)
	}
	return nil
}

// OptimizedKey returns the blob key holding the transcoded result for an upload.
func OptimizedKey(id string) string {
	return id + "_optimized"
}

// DescriptorKey returns the blob key caching the persisted-media descriptor.
func DescriptorKey(id string) string {
	return id + "_descriptor"
}

func segmentKey(id string, index int) string {
	if index == 0 {
		return id
	}
	return id + "_seg" + strconv.Itoa(index)
}

// PutSegments stores the raw payload segments for an upload in order. The
// first segment lives under the bare id so single-segment uploads keep the
// plain key shape.
func (s *Store) PutSegments(id string, segments [][]byte) error {
	if len(segments) == 0 {
		return errors.New("no segments to store")
	}
	for i, segment := range segments {
		if err := s.Put(segmentKey(id, i), segment); err != nil {
			return err
		}
	}
	return nil
}

// Segments returns the raw payload segments for an upload in storage order.
// A missing base key yields an empty slice, not an error.
func (s *Store) Segments(id string) ([][]byte, error) {
	var segments [][]byte
	for i := 0; ; i++ {
		value, ok, err := s.Get(segmentKey(id, i))
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		segments = append(segments, value)
	}
	return segments, nil
}

// RemoveUpload deletes every key associated with an upload id: raw segments,
// the optimized result, and the cached descriptor. Already-absent keys are
// skipped silently so repeated cleanup stays idempotent.
func (s *Store) RemoveUpload(id string) error {
	for i := 0; ; i++ {
		key := segmentKey(id, i)
		_, ok, err := s.Get(key)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := s.Delete(key); err != nil {
			return err
		}
	}
	if err := s.Delete(OptimizedKey(id)); err != nil {
		return err
	}
	return s.Delete(DescriptorKey(id))
}
