// Package results implements the Results Store (C8): a write-once,
// read-many, TTL-bounded store for the large payloads a job's progress
// stream must never carry directly.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shelfscan/shelfd/internal/apperr"
	"github.com/shelfscan/shelfd/internal/cache"
)

// ttl matches spec.md §4.8: 24 hours from job completion.
const ttl = 24 * time.Hour

// maxPayloadBytes matches the ~10 MiB ceiling spec.md names for a stored
// object.
const maxPayloadBytes = 10 * 1024 * 1024

// ErrTooLarge is returned by Put when value exceeds maxPayloadBytes.
var ErrTooLarge = errors.New("results: payload exceeds 10MiB limit")

// ErrAlreadyWritten is returned by Put when jobID already has a stored
// result; the store is write-once.
var ErrAlreadyWritten = errors.New("results: already written")

// KV is the narrow T2 surface this store needs, satisfied by
// (*cache.Cache).KV().
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// Store is the Results Store.
type Store struct {
	kv KV
}

// New builds a Store over c's T2 tier.
func New(c *cache.Cache) *Store {
	return &Store{kv: c.KV()}
}

// Put writes value under pipeline/jobID exactly once. A second call for the
// same pipeline/jobID returns ErrAlreadyWritten without overwriting.
func (s *Store) Put(ctx context.Context, pipeline, jobID string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if len(raw) > maxPayloadBytes {
		return ErrTooLarge
	}

	ok, err := s.kv.SetNX(ctx, cache.ResultsKey(pipeline, jobID), string(raw), ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyWritten
	}
	return nil
}

// Get reads back a previously stored result. Absent key is reported as
// apperr.ErrNotFound per spec.md §4.8.
func (s *Store) Get(ctx context.Context, pipeline, jobID string, dest any) error {
	raw, ok, err := s.kv.Get(ctx, cache.ResultsKey(pipeline, jobID))
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotFound
	}
	return json.Unmarshal([]byte(raw), dest)
}
